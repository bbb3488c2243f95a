package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStoredObservationAfter(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	a := StoredObservation{PriceObservation: PriceObservation{ScrapedAt: t0}, Seq: 1}
	b := StoredObservation{PriceObservation: PriceObservation{ScrapedAt: t0.Add(time.Hour)}, Seq: 2}
	assert.True(t, b.After(a))
	assert.False(t, a.After(b))

	// Same timestamp: the higher sequence number wins.
	c := StoredObservation{PriceObservation: PriceObservation{ScrapedAt: t0}, Seq: 9}
	assert.True(t, c.After(a))
	assert.False(t, a.After(c))

	// An observation never wins against itself.
	assert.False(t, a.After(a))
}

func TestLatestPriceFromObservation(t *testing.T) {
	price := decimal.NewFromFloat(149.99)
	obs := StoredObservation{
		PriceObservation: PriceObservation{
			ProductID: "P1",
			Site:      "amazon",
			Price:     &price,
			Currency:  "USD",
			Title:     "Cordless Drill",
			Brand:     "Acme",
			ImageURLs: []string{"https://img.example/1.jpg", "https://img.example/2.jpg"},
			ScrapedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		Seq: 42,
	}

	lp := LatestPriceFromObservation(obs)
	assert.Equal(t, "P1", lp.ProductID)
	assert.Equal(t, "amazon", lp.Site)
	assert.Equal(t, "Cordless Drill", lp.Title)
	assert.Equal(t, "Acme", lp.Brand)
	assert.Equal(t, "https://img.example/1.jpg", lp.ImageURL)
	assert.Equal(t, int64(42), lp.Seq)

	// No images, no ImageURL.
	obs.ImageURLs = nil
	assert.Empty(t, LatestPriceFromObservation(obs).ImageURL)
}
