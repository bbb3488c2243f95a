// Package services holds the derived-view reducers and the query facade
// that serves them. Every reducer is a pure function over an explicit
// observation slice: recomputing on the same snapshot yields identical
// output, and partial results merge associatively across shards.
package services

import (
	"runtime"
	"sync"

	"github.com/crossretail/retail-intel-go/internal/models"
)

// Inputs below this size are reduced serially; sharding only pays for
// itself on large scans.
const resolveShardThreshold = 4096

// ResolveLatestPrices reduces observations to the winning observation
// per (product, site) pair: the maximum under (scraped_at, seq)
// lexicographic order. Large inputs are split into contiguous shards
// reduced in parallel and folded with MergeLatestPrices; the result is
// identical either way. Callers supply only in-window observations; an
// absent key means "unknown", never zero.
func ResolveLatestPrices(observations []models.StoredObservation) map[models.PairKey]models.StoredObservation {
	if len(observations) < resolveShardThreshold {
		return resolveChunk(observations)
	}

	workers := runtime.NumCPU()
	if workers < 2 {
		return resolveChunk(observations)
	}
	shardSize := (len(observations) + workers - 1) / workers

	partials := make([]map[models.PairKey]models.StoredObservation, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * shardSize
		if lo >= len(observations) {
			break
		}
		hi := lo + shardSize
		if hi > len(observations) {
			hi = len(observations)
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			partials[w] = resolveChunk(observations[lo:hi])
		}(w, lo, hi)
	}
	wg.Wait()

	return MergeLatestPrices(partials...)
}

func resolveChunk(observations []models.StoredObservation) map[models.PairKey]models.StoredObservation {
	latest := make(map[models.PairKey]models.StoredObservation)
	for _, obs := range observations {
		key := models.PairKey{ProductID: obs.ProductID, Site: obs.Site}
		if cur, ok := latest[key]; !ok || obs.After(cur) {
			latest[key] = obs
		}
	}
	return latest
}

// MergeLatestPrices folds shard-local resolutions into one. The merge
// uses the same (scraped_at, seq) arithmetic as the per-shard pass, so
// the result is independent of shard boundaries.
func MergeLatestPrices(partials ...map[models.PairKey]models.StoredObservation) map[models.PairKey]models.StoredObservation {
	merged := make(map[models.PairKey]models.StoredObservation)
	for _, partial := range partials {
		for key, obs := range partial {
			if cur, ok := merged[key]; !ok || obs.After(cur) {
				merged[key] = obs
			}
		}
	}
	return merged
}
