package services

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/crossretail/retail-intel-go/internal/models"
)

// ProductFilter restricts a latest-price listing. Zero values mean "no
// restriction"; a set price bound excludes rows without a price.
type ProductFilter struct {
	Query     string
	Brands    []string
	Retailers []string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
}

// FilterLatestPrices applies the filter over a latest-price resolution.
// Output is ordered by price ascending with unpriced rows last, then by
// the freshest observation first, then product and site ascending.
func FilterLatestPrices(latest map[models.PairKey]models.StoredObservation, f ProductFilter) []models.LatestPrice {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	brands := stringSet(f.Brands)
	retailers := stringSet(f.Retailers)

	var matches []models.LatestPrice
	for _, obs := range latest {
		if query != "" && !strings.Contains(strings.ToLower(obs.Title), query) {
			continue
		}
		if len(brands) > 0 {
			if _, ok := brands[obs.Brand]; !ok {
				continue
			}
		}
		if len(retailers) > 0 {
			if _, ok := retailers[obs.Site]; !ok {
				continue
			}
		}
		if f.MinPrice != nil && (obs.Price == nil || obs.Price.LessThan(*f.MinPrice)) {
			continue
		}
		if f.MaxPrice != nil && (obs.Price == nil || obs.Price.GreaterThan(*f.MaxPrice)) {
			continue
		}
		matches = append(matches, models.LatestPriceFromObservation(obs))
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		switch {
		case a.Price == nil && b.Price != nil:
			return false
		case a.Price != nil && b.Price == nil:
			return true
		case a.Price != nil && b.Price != nil:
			if c := a.Price.Cmp(*b.Price); c != 0 {
				return c < 0
			}
		}
		if !a.ScrapedAt.Equal(b.ScrapedAt) {
			return a.ScrapedAt.After(b.ScrapedAt)
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.Site < b.Site
	})
	return matches
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
