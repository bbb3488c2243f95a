package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BrandStats aggregates the latest prices carrying one brand. Price
// aggregates are nil when no row in the group has a price; the counts
// still cover every row.
type BrandStats struct {
	Brand         string           `json:"brand"`
	ProductCount  int              `json:"product_count"`
	RetailerCount int              `json:"retailer_count"`
	AvgPrice      *decimal.Decimal `json:"avg_price"`
	MinPrice      *decimal.Decimal `json:"min_price"`
	MaxPrice      *decimal.Decimal `json:"max_price"`
}

// BrandStatsRequest carries paging for the brand statistics listing.
type BrandStatsRequest struct {
	Limit   int `json:"limit" form:"limit"`
	Page    int `json:"page" form:"page"`
	PerPage int `json:"per_page" form:"per_page"`
}

// BrandStatsResponse is the response envelope for brand statistics.
type BrandStatsResponse struct {
	Brands    []BrandStats `json:"brands"`
	Count     int          `json:"count"`
	Timestamp time.Time    `json:"timestamp"`
}
