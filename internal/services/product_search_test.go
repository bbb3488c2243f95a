package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossretail/retail-intel-go/internal/models"
)

func titled(seq int64, productID, site, title string, price *decimal.Decimal, scrapedAt time.Time) models.StoredObservation {
	obs := stored(seq, productID, site, price, scrapedAt)
	obs.Title = title
	return obs
}

func boundOf(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestFilterLatestPrices_QueryMatchesTitle(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	latest := latestSet(
		titled(1, "P1", "amazon", "Cordless Drill 18V", priceOf(100), t0),
		titled(2, "P2", "amazon", "Claw Hammer", priceOf(20), t0),
	)

	matches := FilterLatestPrices(latest, ProductFilter{Query: "drill"})
	require.Len(t, matches, 1)
	assert.Equal(t, "P1", matches[0].ProductID)

	// Case-insensitive on both sides.
	matches = FilterLatestPrices(latest, ProductFilter{Query: "  HAMMER "})
	require.Len(t, matches, 1)
	assert.Equal(t, "P2", matches[0].ProductID)

	assert.Empty(t, FilterLatestPrices(latest, ProductFilter{Query: "wrench"}))
}

func TestFilterLatestPrices_BrandAndRetailerSets(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	latest := latestSet(
		branded(1, "P1", "amazon", "Acme", priceOf(100), t0),
		branded(2, "P2", "walmart", "Brio", priceOf(50), t0),
		branded(3, "P3", "kohls", "Acme", priceOf(70), t0),
	)

	matches := FilterLatestPrices(latest, ProductFilter{Brands: []string{"Acme"}})
	require.Len(t, matches, 2)

	matches = FilterLatestPrices(latest, ProductFilter{Retailers: []string{"walmart", "kohls"}})
	require.Len(t, matches, 2)

	matches = FilterLatestPrices(latest, ProductFilter{Brands: []string{"Acme"}, Retailers: []string{"kohls"}})
	require.Len(t, matches, 1)
	assert.Equal(t, "P3", matches[0].ProductID)
}

func TestFilterLatestPrices_PriceBounds(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	latest := latestSet(
		stored(1, "P1", "amazon", priceOf(20), t0),
		stored(2, "P2", "amazon", priceOf(50), t0),
		stored(3, "P3", "amazon", priceOf(90), t0),
		stored(4, "P4", "amazon", nil, t0),
	)

	matches := FilterLatestPrices(latest, ProductFilter{MinPrice: boundOf(50)})
	require.Len(t, matches, 2)

	matches = FilterLatestPrices(latest, ProductFilter{MinPrice: boundOf(30), MaxPrice: boundOf(60)})
	require.Len(t, matches, 1)
	assert.Equal(t, "P2", matches[0].ProductID)

	// A price bound excludes unpriced rows; without bounds they match.
	matches = FilterLatestPrices(latest, ProductFilter{MaxPrice: boundOf(1000)})
	assert.Len(t, matches, 3)
	matches = FilterLatestPrices(latest, ProductFilter{})
	assert.Len(t, matches, 4)
}

func TestFilterLatestPrices_Ordering(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	latest := latestSet(
		stored(1, "P1", "amazon", priceOf(50), t0),
		stored(2, "P2", "amazon", priceOf(20), t0),
		stored(3, "P3", "amazon", nil, t0),
		stored(4, "P4", "amazon", priceOf(50), t0.Add(time.Hour)),
	)

	matches := FilterLatestPrices(latest, ProductFilter{})
	require.Len(t, matches, 4)
	assert.Equal(t, "P2", matches[0].ProductID)
	// Equal prices order freshest first.
	assert.Equal(t, "P4", matches[1].ProductID)
	assert.Equal(t, "P1", matches[2].ProductID)
	// Unpriced rows sort last.
	assert.Equal(t, "P3", matches[3].ProductID)
}

func TestFilterLatestPrices_Deterministic(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var observations []models.StoredObservation
	for i := 0; i < 30; i++ {
		observations = append(observations,
			titled(int64(i), "P"+string(rune('A'+i%10)), []string{"amazon", "walmart", "kohls"}[i%3],
				"Widget", priceOf(float64(10+i%7)), t0))
	}
	latest := latestSet(observations...)

	assert.Equal(t, FilterLatestPrices(latest, ProductFilter{}), FilterLatestPrices(latest, ProductFilter{}))
}
