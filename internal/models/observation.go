package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is one scraped price reading for a product at a
// retailer at a point in time. Observations are immutable once appended;
// (ProductID, Site, ScrapedAt) is unique and the most recently appended
// duplicate wins.
type PriceObservation struct {
	ProductID    string           `json:"product_id" db:"product_id"`
	Site         string           `json:"site" db:"site"`
	Price        *decimal.Decimal `json:"price" db:"price"`
	Currency     string           `json:"currency" db:"currency"`
	Title        string           `json:"title" db:"title"`
	Description  string           `json:"description,omitempty" db:"description"`
	URL          string           `json:"url,omitempty" db:"url"`
	ImageURLs    []string         `json:"image_urls,omitempty" db:"image_urls"`
	Rating       *decimal.Decimal `json:"rating,omitempty" db:"rating"`
	ReviewCount  *int             `json:"review_count,omitempty" db:"review_count"`
	Availability string           `json:"availability,omitempty" db:"availability"`
	Brand        string           `json:"brand,omitempty" db:"brand"`
	Model        string           `json:"model,omitempty" db:"model"`
	Category     string           `json:"category,omitempty" db:"category"`
	SKU          string           `json:"sku,omitempty" db:"sku"`
	ScrapedAt    time.Time        `json:"scraped_at" db:"scraped_at"`
	RawRef       string           `json:"raw_ref,omitempty" db:"raw_ref"`
}

// StoredObservation is an observation as recorded by the store. Seq is
// assigned at append time and totally orders ingestion; it breaks ties
// between observations sharing a ScrapedAt.
type StoredObservation struct {
	PriceObservation
	Seq int64 `json:"seq" db:"seq"`
}

// After reports whether o wins over other under (ScrapedAt, Seq)
// lexicographic order.
func (o StoredObservation) After(other StoredObservation) bool {
	if !o.ScrapedAt.Equal(other.ScrapedAt) {
		return o.ScrapedAt.After(other.ScrapedAt)
	}
	return o.Seq > other.Seq
}

// PairKey identifies a (product, retailer) pair.
type PairKey struct {
	ProductID string
	Site      string
}

// LatestPrice is the most recent observation for a product/retailer pair
// within the recency window. Field selection mirrors what the read API
// exposes per retailer.
type LatestPrice struct {
	ProductID    string           `json:"product_id"`
	Site         string           `json:"site"`
	Price        *decimal.Decimal `json:"price"`
	Currency     string           `json:"currency"`
	Title        string           `json:"title"`
	URL          string           `json:"url,omitempty"`
	ImageURL     string           `json:"image_url,omitempty"`
	Rating       *decimal.Decimal `json:"rating,omitempty"`
	ReviewCount  *int             `json:"review_count,omitempty"`
	Availability string           `json:"availability,omitempty"`
	Brand        string           `json:"brand,omitempty"`
	Model        string           `json:"model,omitempty"`
	ScrapedAt    time.Time        `json:"scraped_at"`
	Seq          int64            `json:"-"`
}

// LatestPriceFromObservation projects a stored observation into the
// LatestPrice view shape.
func LatestPriceFromObservation(o StoredObservation) LatestPrice {
	lp := LatestPrice{
		ProductID:    o.ProductID,
		Site:         o.Site,
		Price:        o.Price,
		Currency:     o.Currency,
		Title:        o.Title,
		URL:          o.URL,
		Rating:       o.Rating,
		ReviewCount:  o.ReviewCount,
		Availability: o.Availability,
		Brand:        o.Brand,
		Model:        o.Model,
		ScrapedAt:    o.ScrapedAt,
		Seq:          o.Seq,
	}
	if len(o.ImageURLs) > 0 {
		lp.ImageURL = o.ImageURLs[0]
	}
	return lp
}
