package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceHistoryPoint is one day of aggregated prices for a
// product/retailer pair. Days with no priced observations are omitted
// from series, never emitted as zero.
type PriceHistoryPoint struct {
	ProductID  string          `json:"product_id"`
	Site       string          `json:"site"`
	Date       string          `json:"date"`
	AvgPrice   decimal.Decimal `json:"avg_price"`
	MinPrice   decimal.Decimal `json:"min_price"`
	MaxPrice   decimal.Decimal `json:"max_price"`
	Currency   string          `json:"currency"`
	DataPoints int             `json:"data_points"`
}

// HistoryRequest selects the observation window for a price history
// series. Site is optional; Days must stay within the retention
// ceiling.
type HistoryRequest struct {
	ProductID string `json:"product_id"`
	Site      string `json:"site" form:"site"`
	Days      int    `json:"days" form:"days"`
}

// PriceHistoryResponse is the response envelope for a history series.
type PriceHistoryResponse struct {
	ProductID string              `json:"product_id"`
	Points    []PriceHistoryPoint `json:"points"`
	Count     int                 `json:"count"`
	Timestamp time.Time           `json:"timestamp"`
}
