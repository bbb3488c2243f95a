package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/crossretail/retail-intel-go/internal/models"
)

type brandBucket struct {
	products map[string]struct{}
	sites    map[string]struct{}
	sum      decimal.Decimal
	min      decimal.Decimal
	max      decimal.Decimal
	priced   int
}

// AggregateBrandStats groups a latest-price resolution by brand,
// skipping rows without one. Product and retailer counts cover every
// row of the brand; the price aggregates cover only rows carrying a
// price and stay nil when none does. Output is ordered by product count
// descending, then brand ascending.
func AggregateBrandStats(latest map[models.PairKey]models.StoredObservation) []models.BrandStats {
	buckets := make(map[string]*brandBucket)
	for key, obs := range latest {
		if obs.Brand == "" {
			continue
		}
		b, ok := buckets[obs.Brand]
		if !ok {
			b = &brandBucket{
				products: make(map[string]struct{}),
				sites:    make(map[string]struct{}),
			}
			buckets[obs.Brand] = b
		}
		b.products[key.ProductID] = struct{}{}
		b.sites[key.Site] = struct{}{}
		if obs.Price != nil {
			if b.priced == 0 || obs.Price.LessThan(b.min) {
				b.min = *obs.Price
			}
			if b.priced == 0 || obs.Price.GreaterThan(b.max) {
				b.max = *obs.Price
			}
			b.sum = b.sum.Add(*obs.Price)
			b.priced++
		}
	}

	stats := make([]models.BrandStats, 0, len(buckets))
	for brand, b := range buckets {
		s := models.BrandStats{
			Brand:         brand,
			ProductCount:  len(b.products),
			RetailerCount: len(b.sites),
		}
		if b.priced > 0 {
			avg := b.sum.Div(decimal.NewFromInt(int64(b.priced)))
			minCopy, maxCopy := b.min, b.max
			s.AvgPrice, s.MinPrice, s.MaxPrice = &avg, &minCopy, &maxCopy
		}
		stats = append(stats, s)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].ProductCount != stats[j].ProductCount {
			return stats[i].ProductCount > stats[j].ProductCount
		}
		return stats[i].Brand < stats[j].Brand
	})
	return stats
}
