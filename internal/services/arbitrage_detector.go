package services

import (
	"runtime"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/crossretail/retail-intel-go/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ArbitrageThresholds filter detected opportunities. Both conditions
// must hold for a product to qualify.
type ArbitrageThresholds struct {
	MinMarginPct decimal.Decimal
	MinPriceDiff decimal.Decimal
}

// DetectArbitrage computes cross-retailer spreads over a latest-price
// resolution and returns at most limit opportunities sorted by margin
// descending, then price difference descending, then product id
// ascending.
//
// Per product: at least two retailers must carry a non-null price, and a
// zero or negative minimum excludes the product outright (the margin
// would be undefined). When several retailers share the minimum or
// maximum price, the lexicographically smallest site name wins on both
// ends.
func DetectArbitrage(latest map[models.PairKey]models.StoredObservation, thresholds ArbitrageThresholds, limit int) []models.ArbitrageOpportunity {
	byProduct := make(map[string][]models.StoredObservation)
	for key, obs := range latest {
		if obs.Price == nil {
			continue
		}
		byProduct[key.ProductID] = append(byProduct[key.ProductID], obs)
	}

	productIDs := make([]string, 0, len(byProduct))
	for id := range byProduct {
		productIDs = append(productIDs, id)
	}

	// Each shard is a pure reduction over disjoint products; the merge
	// below is a plain concatenation followed by the total-order sort.
	workers := runtime.NumCPU()
	if workers > len(productIDs) {
		workers = len(productIDs)
	}
	if workers < 1 {
		workers = 1
	}

	partials := make([][]models.ArbitrageOpportunity, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var local []models.ArbitrageOpportunity
			for i := w; i < len(productIDs); i += workers {
				if opp, ok := detectProduct(productIDs[i], byProduct[productIDs[i]], thresholds); ok {
					local = append(local, opp)
				}
			}
			partials[w] = local
		}(w)
	}
	wg.Wait()

	var opportunities []models.ArbitrageOpportunity
	for _, partial := range partials {
		opportunities = append(opportunities, partial...)
	}

	sort.Slice(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if c := a.ProfitMarginPct.Cmp(b.ProfitMarginPct); c != 0 {
			return c > 0
		}
		if c := a.PriceDiff.Cmp(b.PriceDiff); c != 0 {
			return c > 0
		}
		return a.ProductID < b.ProductID
	})

	if limit > 0 && len(opportunities) > limit {
		opportunities = opportunities[:limit]
	}
	return opportunities
}

func detectProduct(productID string, rows []models.StoredObservation, thresholds ArbitrageThresholds) (models.ArbitrageOpportunity, bool) {
	if len(rows) < 2 {
		return models.ArbitrageOpportunity{}, false
	}

	var cheapest, expensive models.StoredObservation
	for i, row := range rows {
		if i == 0 {
			cheapest, expensive = row, row
			continue
		}
		if c := row.Price.Cmp(*cheapest.Price); c < 0 || (c == 0 && row.Site < cheapest.Site) {
			cheapest = row
		}
		if c := row.Price.Cmp(*expensive.Price); c > 0 || (c == 0 && row.Site < expensive.Site) {
			expensive = row
		}
	}

	minPrice, maxPrice := *cheapest.Price, *expensive.Price
	if !minPrice.IsPositive() {
		return models.ArbitrageOpportunity{}, false
	}

	priceDiff := maxPrice.Sub(minPrice)
	marginPct := priceDiff.Div(minPrice).Mul(hundred)

	if marginPct.LessThan(thresholds.MinMarginPct) || priceDiff.LessThan(thresholds.MinPriceDiff) {
		return models.ArbitrageOpportunity{}, false
	}

	return models.ArbitrageOpportunity{
		ProductID:         productID,
		Title:             cheapest.Title,
		MinPrice:          minPrice,
		MaxPrice:          maxPrice,
		PriceDiff:         priceDiff,
		ProfitMarginPct:   marginPct,
		RetailerCount:     len(rows),
		CheapestRetailer:  cheapest.Site,
		ExpensiveRetailer: expensive.Site,
	}, true
}
