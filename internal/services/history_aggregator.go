package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crossretail/retail-intel-go/internal/models"
)

type historyBucket struct {
	productID   string
	site        string
	date        string
	sum         decimal.Decimal
	min         decimal.Decimal
	max         decimal.Decimal
	count       int
	currency    string
	currencyObs models.StoredObservation
}

// AggregateHistory buckets observations by (site, UTC day) and computes
// avg/min/max over non-null prices plus the qualifying observation
// count. Days without a priced observation are omitted. The currency of
// a bucket is the one on the latest priced observation of that day.
// Output is ordered by date ascending, then site ascending.
func AggregateHistory(observations []models.StoredObservation) []models.PriceHistoryPoint {
	type bucketKey struct {
		site string
		date string
	}

	buckets := make(map[bucketKey]*historyBucket)
	for _, obs := range observations {
		if obs.Price == nil {
			continue
		}
		date := obs.ScrapedAt.UTC().Format(time.DateOnly)
		key := bucketKey{site: obs.Site, date: date}
		b, ok := buckets[key]
		if !ok {
			b = &historyBucket{
				productID:   obs.ProductID,
				site:        obs.Site,
				date:        date,
				min:         *obs.Price,
				max:         *obs.Price,
				currency:    obs.Currency,
				currencyObs: obs,
			}
			buckets[key] = b
		} else {
			if obs.Price.LessThan(b.min) {
				b.min = *obs.Price
			}
			if obs.Price.GreaterThan(b.max) {
				b.max = *obs.Price
			}
			if obs.After(b.currencyObs) {
				b.currency = obs.Currency
				b.currencyObs = obs
			}
		}
		b.sum = b.sum.Add(*obs.Price)
		b.count++
	}

	points := make([]models.PriceHistoryPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, models.PriceHistoryPoint{
			ProductID:  b.productID,
			Site:       b.site,
			Date:       b.date,
			AvgPrice:   b.sum.Div(decimal.NewFromInt(int64(b.count))),
			MinPrice:   b.min,
			MaxPrice:   b.max,
			Currency:   b.currency,
			DataPoints: b.count,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Date != points[j].Date {
			return points[i].Date < points[j].Date
		}
		return points[i].Site < points[j].Site
	})
	return points
}
