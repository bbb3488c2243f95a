package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/models"
)

// PgxPool is the subset of pgxpool.Pool the store uses. pgxmock
// implements it for tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema is the DDL backing the durable observation log. seq is a
// BIGSERIAL so ingestion order survives restarts.
const Schema = `
CREATE TABLE IF NOT EXISTS price_observations (
	seq          BIGSERIAL PRIMARY KEY,
	product_id   TEXT NOT NULL,
	site         TEXT NOT NULL,
	price        NUMERIC,
	currency     TEXT NOT NULL DEFAULT 'USD',
	title        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	image_urls   TEXT[] NOT NULL DEFAULT '{}',
	rating       NUMERIC,
	review_count INTEGER,
	availability TEXT NOT NULL DEFAULT '',
	brand        TEXT NOT NULL DEFAULT '',
	model        TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	sku          TEXT NOT NULL DEFAULT '',
	scraped_at   TIMESTAMPTZ NOT NULL,
	raw_ref      TEXT NOT NULL DEFAULT '',
	UNIQUE (product_id, site, scraped_at)
);
CREATE INDEX IF NOT EXISTS idx_price_observations_pair
	ON price_observations (product_id, site, scraped_at DESC);
CREATE INDEX IF NOT EXISTS idx_price_observations_scraped_at
	ON price_observations (scraped_at);
`

const observationColumns = `seq, product_id, site, price, currency, title, description, url,
	image_urls, rating, review_count, availability, brand, model, category, sku,
	scraped_at, raw_ref`

// PostgresStore is the durable observation log backed by a
// price_observations table.
type PostgresStore struct {
	db        PgxPool
	retention time.Duration
	recency   time.Duration
	logger    *logrus.Logger
}

// NewPostgresStore wraps a pgx pool as an ObservationStore.
func NewPostgresStore(db PgxPool, retention, recency time.Duration, logger *logrus.Logger) *PostgresStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &PostgresStore{db: db, retention: retention, recency: recency, logger: logger}
}

// EnsureSchema creates the observation table and indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure observation schema: %w", err)
	}
	return nil
}

// Append upserts one observation. The uniqueness constraint resolves
// exact duplicates; the later append wins and the surviving row keeps
// its original sequence number, since only one row per key remains.
func (s *PostgresStore) Append(ctx context.Context, obs models.PriceObservation) (AppendResult, error) {
	Normalize(&obs)
	if err := Validate(obs); err != nil {
		return AppendResult{}, err
	}

	query := `
		INSERT INTO price_observations (
			product_id, site, price, currency, title, description, url, image_urls,
			rating, review_count, availability, brand, model, category, sku,
			scraped_at, raw_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (product_id, site, scraped_at) DO UPDATE SET
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			url = EXCLUDED.url,
			image_urls = EXCLUDED.image_urls,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			availability = EXCLUDED.availability,
			brand = EXCLUDED.brand,
			model = EXCLUDED.model,
			category = EXCLUDED.category,
			sku = EXCLUDED.sku,
			raw_ref = EXCLUDED.raw_ref
		RETURNING seq, (xmax = 0) AS inserted
	`

	var seq int64
	var inserted bool
	err := s.db.QueryRow(ctx, query,
		obs.ProductID, obs.Site, obs.Price, obs.Currency, obs.Title, obs.Description,
		obs.URL, obs.ImageURLs, obs.Rating, obs.ReviewCount, obs.Availability,
		obs.Brand, obs.Model, obs.Category, obs.SKU, obs.ScrapedAt, obs.RawRef,
	).Scan(&seq, &inserted)
	if err != nil {
		return AppendResult{}, fmt.Errorf("failed to append observation: %w", err)
	}

	status := AppendAccepted
	if !inserted {
		status = AppendDeduplicated
	}
	return AppendResult{Status: status, Seq: seq}, nil
}

// Scan returns observations matching the filter ordered by
// (scraped_at, seq) ascending.
func (s *PostgresStore) Scan(ctx context.Context, f Filter) ([]models.StoredObservation, error) {
	query := fmt.Sprintf("SELECT %s FROM price_observations WHERE 1=1", observationColumns)
	args := []any{}

	if f.ProductID != "" {
		args = append(args, f.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if f.Site != "" {
		args = append(args, f.Site)
		query += fmt.Sprintf(" AND site = $%d", len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(" AND scraped_at >= $%d", len(args))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		query += fmt.Sprintf(" AND scraped_at < $%d", len(args))
	}
	query += " ORDER BY scraped_at ASC, seq ASC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan observations: %w", err)
	}
	defer rows.Close()

	var observations []models.StoredObservation
	for rows.Next() {
		var obs models.StoredObservation
		err := rows.Scan(
			&obs.Seq, &obs.ProductID, &obs.Site, &obs.Price, &obs.Currency,
			&obs.Title, &obs.Description, &obs.URL, &obs.ImageURLs, &obs.Rating,
			&obs.ReviewCount, &obs.Availability, &obs.Brand, &obs.Model,
			&obs.Category, &obs.SKU, &obs.ScrapedAt, &obs.RawRef,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observation rows: %w", err)
	}
	return observations, nil
}

// Prune deletes observations older than the retention cutoff while
// keeping the current winner of every (product, site) pair.
func (s *PostgresStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	cutoff := PruneCutoff(now, s.retention, s.recency)

	query := `
		DELETE FROM price_observations
		WHERE scraped_at < $1
		  AND seq NOT IN (
			SELECT DISTINCT ON (product_id, site) seq
			FROM price_observations
			ORDER BY product_id, site, scraped_at DESC, seq DESC
		  )
	`
	tag, err := s.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune observations: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.WithFields(logrus.Fields{
			"removed": tag.RowsAffected(),
			"cutoff":  cutoff,
		}).Info("Pruned expired observations")
	}
	return tag.RowsAffected(), nil
}
