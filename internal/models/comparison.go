package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductComparison lines up the latest price of one product across
// every retailer currently carrying it. Retailers are ordered by price
// ascending with unpriced rows last.
type ProductComparison struct {
	ProductID         string           `json:"product_id"`
	Retailers         []LatestPrice    `json:"retailers"`
	MinPrice          *decimal.Decimal `json:"min_price"`
	MaxPrice          *decimal.Decimal `json:"max_price"`
	PriceDifference   *decimal.Decimal `json:"price_difference"`
	BestPriceRetailer string           `json:"best_price_retailer,omitempty"`
}

// CompareRequest names the products to compare. The set must be
// nonempty.
type CompareRequest struct {
	ProductIDs []string `json:"product_ids" binding:"required"`
}

// ComparisonResponse is the response envelope for product comparison.
type ComparisonResponse struct {
	Comparisons []ProductComparison `json:"comparisons"`
	Count       int                 `json:"count"`
	Timestamp   time.Time           `json:"timestamp"`
}
