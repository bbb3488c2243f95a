// Package cache provides the Redis-backed snapshot cache behind the
// query facade. Cached values are immutable JSON snapshots: a refresh
// writes a whole new value, so readers never observe a partially
// rebuilt view.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Stats tracks cache performance counters.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Sets       int64 `json:"sets"`
	StaleServe int64 `json:"stale_serves"`
	mu         sync.Mutex
}

// QueryCache caches query facade snapshots keyed by operation and
// parameter tuple. Every Set also writes a long-lived stale copy used
// when a refresh fails; within the TTL all callers observe the same
// snapshot.
type QueryCache struct {
	redis    *redis.Client
	prefix   string
	staleTTL time.Duration
	stats    *Stats
	logger   *logrus.Logger
}

// NewQueryCache creates a cache over an existing Redis client. staleTTL
// bounds how long a last-good snapshot stays servable after its primary
// entry expired.
func NewQueryCache(client *redis.Client, staleTTL time.Duration, logger *logrus.Logger) *QueryCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &QueryCache{
		redis:    client,
		prefix:   "query_cache:",
		staleTTL: staleTTL,
		stats:    &Stats{},
		logger:   logger,
	}
}

// Key builds a deterministic cache key from an operation name and its
// canonicalized parameters. Each parameter is hashed with a length
// prefix, so parameter values containing separator characters cannot
// collide with a differently split tuple.
func Key(operation string, params ...string) string {
	h := md5.New()
	for _, p := range params {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return fmt.Sprintf("%s:%s", operation, hex.EncodeToString(h.Sum(nil)))
}

// Get loads a cached snapshot into dest. Redis failures are logged and
// reported as a miss so queries fall through to recomputation.
func (c *QueryCache) Get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.redis.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		c.count(func(s *Stats) { s.Misses++ })
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		c.count(func(s *Stats) { s.Misses++ })
		return false
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache entry corrupt, treating as miss")
		c.count(func(s *Stats) { s.Misses++ })
		return false
	}
	c.count(func(s *Stats) { s.Hits++ })
	return true
}

// GetStale loads the last good snapshot for a key, regardless of the
// primary entry's TTL.
func (c *QueryCache) GetStale(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.redis.Get(ctx, c.prefix+"stale:"+key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("key", key).Warn("Stale cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Stale cache entry corrupt")
		return false
	}
	c.count(func(s *Stats) { s.StaleServe++ })
	return true
}

// Set stores a snapshot under the primary key with the given TTL and
// refreshes the stale copy. Failures are logged, not surfaced: the
// cache is an optimization, never a source of truth.
func (c *QueryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Failed to serialize cache entry")
		return
	}
	if err := c.redis.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		return
	}
	if err := c.redis.Set(ctx, c.prefix+"stale:"+key, data, c.staleTTL).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Stale cache write failed")
	}
	c.count(func(s *Stats) { s.Sets++ })
}

// Clear removes every cached snapshot, stale copies included.
func (c *QueryCache) Clear(ctx context.Context) error {
	var keys []string
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}
	return nil
}

// GetStats returns a copy of the current counters.
func (c *QueryCache) GetStats() Stats {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return Stats{
		Hits:       c.stats.Hits,
		Misses:     c.stats.Misses,
		Sets:       c.stats.Sets,
		StaleServe: c.stats.StaleServe,
	}
}

func (c *QueryCache) count(update func(*Stats)) {
	c.stats.mu.Lock()
	update(c.stats)
	c.stats.mu.Unlock()
}
