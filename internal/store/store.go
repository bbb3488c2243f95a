// Package store holds the append-only observation log. It owns
// durability, the (product_id, site, scraped_at) uniqueness invariant
// and retention pruning; every derived view is recomputed from scans of
// this log.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crossretail/retail-intel-go/internal/models"
	"github.com/crossretail/retail-intel-go/internal/utils"
)

// AppendStatus reports how the store resolved an append.
type AppendStatus string

const (
	// AppendAccepted means a new observation was recorded.
	AppendAccepted AppendStatus = "accepted"
	// AppendDeduplicated means an observation with the same
	// (product_id, site, scraped_at) already existed; the new append
	// replaced it, so the most recently appended duplicate wins.
	AppendDeduplicated AppendStatus = "deduplicated"
)

// AppendResult carries the outcome of an append and the sequence number
// the observation now holds.
type AppendResult struct {
	Status AppendStatus
	Seq    int64
}

// Filter restricts a scan. Zero values mean "no restriction". Since is
// inclusive, Until exclusive.
type Filter struct {
	ProductID string
	Site      string
	Since     time.Time
	Until     time.Time
}

// ObservationStore is the append-only record of price observations.
// Scans return observations ordered by (scraped_at, seq) ascending.
// Prune enforces retention and reports how many rows were dropped.
type ObservationStore interface {
	Append(ctx context.Context, obs models.PriceObservation) (AppendResult, error)
	Scan(ctx context.Context, f Filter) ([]models.StoredObservation, error)
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// DefaultCurrency is assumed when an observation carries none.
const DefaultCurrency = "USD"

var ratingMax = decimal.NewFromInt(5)

// Normalize fills schema defaults on an observation before it is
// appended.
func Normalize(obs *models.PriceObservation) {
	obs.ProductID = strings.TrimSpace(obs.ProductID)
	obs.Site = strings.TrimSpace(strings.ToLower(obs.Site))
	if obs.Currency == "" {
		obs.Currency = DefaultCurrency
	}
}

// Validate checks the observation schema. Violations reject the
// observation at the ingest boundary; business-rule non-matches never
// do.
func Validate(obs models.PriceObservation) error {
	if obs.ProductID == "" {
		return utils.NewValidationError("product_id is required")
	}
	if obs.Site == "" {
		return utils.NewValidationError("site is required")
	}
	if obs.ScrapedAt.IsZero() {
		return utils.NewValidationError("scraped_at is required")
	}
	if obs.Price != nil && obs.Price.IsNegative() {
		return utils.NewValidationErrorf("price must be non-negative, got %s", obs.Price)
	}
	if obs.Rating != nil && (obs.Rating.IsNegative() || obs.Rating.GreaterThan(ratingMax)) {
		return utils.NewValidationErrorf("rating must be within 0-5, got %s", obs.Rating)
	}
	if obs.ReviewCount != nil && *obs.ReviewCount < 0 {
		return utils.NewValidationErrorf("review_count must be non-negative, got %d", *obs.ReviewCount)
	}
	return nil
}

// PruneCutoff is the oldest scraped_at retention may touch. Pruning is
// bounded by the larger of the retention and recency windows so the
// latest-price view never loses its only in-window row to retention.
func PruneCutoff(now time.Time, retention, recency time.Duration) time.Time {
	window := retention
	if recency > window {
		window = recency
	}
	return now.Add(-window)
}
