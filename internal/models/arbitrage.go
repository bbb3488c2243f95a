package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitrageOpportunity is a product whose cross-retailer price spread
// clears the configured margin and difference thresholds.
type ArbitrageOpportunity struct {
	ProductID         string          `json:"product_id"`
	Title             string          `json:"title,omitempty"`
	MinPrice          decimal.Decimal `json:"min_price"`
	MaxPrice          decimal.Decimal `json:"max_price"`
	PriceDiff         decimal.Decimal `json:"price_diff"`
	ProfitMarginPct   decimal.Decimal `json:"profit_margin_pct"`
	RetailerCount     int             `json:"retailer_count"`
	CheapestRetailer  string          `json:"cheapest_retailer"`
	ExpensiveRetailer string          `json:"expensive_retailer"`
}

// ArbitrageRequest carries the caller-supplied thresholds and paging
// for the opportunities listing.
type ArbitrageRequest struct {
	MinMarginPct float64 `json:"min_margin_pct" form:"min_margin_pct"`
	MinPriceDiff float64 `json:"min_price_diff" form:"min_price_diff"`
	Limit        int     `json:"limit" form:"limit"`
	Page         int     `json:"page" form:"page"`
	PerPage      int     `json:"per_page" form:"per_page"`
}

// ArbitrageOpportunitiesResponse is the response envelope for the
// opportunities listing.
type ArbitrageOpportunitiesResponse struct {
	Opportunities []ArbitrageOpportunity `json:"opportunities"`
	Count         int                    `json:"count"`
	MinMarginPct  float64                `json:"min_margin_pct"`
	MinPriceDiff  float64                `json:"min_price_diff"`
	Timestamp     time.Time              `json:"timestamp"`
}
