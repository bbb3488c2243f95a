package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crossretail/retail-intel-go/internal/models"
)

// MemoryStore is an in-process observation log. Appends are guarded by a
// mutex; scans copy the matching rows so readers never share slices
// with the writer.
type MemoryStore struct {
	mu           sync.RWMutex
	observations map[string]models.StoredObservation
	nextSeq      int64
	retention    time.Duration
	recency      time.Duration
}

// NewMemoryStore creates an empty in-memory store. retention bounds how
// long observations are kept; recency is the latest-price window that
// caps how aggressively Prune may cut.
func NewMemoryStore(retention, recency time.Duration) *MemoryStore {
	return &MemoryStore{
		observations: make(map[string]models.StoredObservation),
		retention:    retention,
		recency:      recency,
	}
}

func dedupKey(obs models.PriceObservation) string {
	return fmt.Sprintf("%s|%s|%d", obs.ProductID, obs.Site, obs.ScrapedAt.UnixNano())
}

// Append records one observation. An exact duplicate of an existing
// (product_id, site, scraped_at) replaces the previous record under a
// fresh sequence number, keeping appends idempotent and commutative.
func (s *MemoryStore) Append(ctx context.Context, obs models.PriceObservation) (AppendResult, error) {
	Normalize(&obs)
	if err := Validate(obs); err != nil {
		return AppendResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey(obs)
	status := AppendAccepted
	if _, exists := s.observations[key]; exists {
		status = AppendDeduplicated
	}

	s.nextSeq++
	stored := models.StoredObservation{PriceObservation: obs, Seq: s.nextSeq}
	s.observations[key] = stored

	return AppendResult{Status: status, Seq: stored.Seq}, nil
}

// Scan returns observations matching the filter ordered by
// (scraped_at, seq) ascending.
func (s *MemoryStore) Scan(ctx context.Context, f Filter) ([]models.StoredObservation, error) {
	s.mu.RLock()
	matched := make([]models.StoredObservation, 0, len(s.observations))
	for _, obs := range s.observations {
		if f.ProductID != "" && obs.ProductID != f.ProductID {
			continue
		}
		if f.Site != "" && obs.Site != f.Site {
			continue
		}
		if !f.Since.IsZero() && obs.ScrapedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !obs.ScrapedAt.Before(f.Until) {
			continue
		}
		matched = append(matched, obs)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ScrapedAt.Equal(matched[j].ScrapedAt) {
			return matched[i].ScrapedAt.Before(matched[j].ScrapedAt)
		}
		return matched[i].Seq < matched[j].Seq
	})
	return matched, nil
}

// Prune drops observations older than the retention cutoff, except the
// current winner of each (product, site) pair.
func (s *MemoryStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	cutoff := PruneCutoff(now, s.retention, s.recency)

	s.mu.Lock()
	defer s.mu.Unlock()

	winners := make(map[models.PairKey]int64, len(s.observations))
	best := make(map[models.PairKey]models.StoredObservation, len(s.observations))
	for _, obs := range s.observations {
		key := models.PairKey{ProductID: obs.ProductID, Site: obs.Site}
		if cur, ok := best[key]; !ok || obs.After(cur) {
			best[key] = obs
			winners[key] = obs.Seq
		}
	}

	var removed int64
	for key, obs := range s.observations {
		if !obs.ScrapedAt.Before(cutoff) {
			continue
		}
		pair := models.PairKey{ProductID: obs.ProductID, Site: obs.Site}
		if winners[pair] == obs.Seq {
			continue
		}
		delete(s.observations, key)
		removed++
	}
	return removed, nil
}

// Len reports how many observations the store currently holds.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observations)
}
