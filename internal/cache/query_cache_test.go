package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*QueryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewQueryCache(client, 24*time.Hour, logger), mr
}

func TestQueryCache_SetAndGet(t *testing.T) {
	qc, _ := newTestCache(t)
	ctx := context.Background()

	qc.Set(ctx, "op:abc", snapshot{Name: "arbitrage", Count: 3}, time.Minute)

	var got snapshot
	require.True(t, qc.Get(ctx, "op:abc", &got))
	assert.Equal(t, "arbitrage", got.Name)
	assert.Equal(t, 3, got.Count)
}

func TestQueryCache_MissOnUnknownKey(t *testing.T) {
	qc, _ := newTestCache(t)

	var got snapshot
	assert.False(t, qc.Get(context.Background(), "op:unknown", &got))
}

func TestQueryCache_TTLExpiry(t *testing.T) {
	qc, mr := newTestCache(t)
	ctx := context.Background()

	qc.Set(ctx, "op:abc", snapshot{Name: "history"}, time.Minute)
	mr.FastForward(2 * time.Minute)

	var got snapshot
	assert.False(t, qc.Get(ctx, "op:abc", &got))
}

func TestQueryCache_StaleOutlivesPrimary(t *testing.T) {
	qc, mr := newTestCache(t)
	ctx := context.Background()

	qc.Set(ctx, "op:abc", snapshot{Name: "history", Count: 7}, time.Minute)
	mr.FastForward(2 * time.Minute)

	var got snapshot
	require.False(t, qc.Get(ctx, "op:abc", &got))
	require.True(t, qc.GetStale(ctx, "op:abc", &got))
	assert.Equal(t, 7, got.Count)

	// Past the stale TTL even the last good snapshot is gone.
	mr.FastForward(25 * time.Hour)
	assert.False(t, qc.GetStale(ctx, "op:abc", &got))
}

func TestQueryCache_SetOverwrites(t *testing.T) {
	qc, _ := newTestCache(t)
	ctx := context.Background()

	qc.Set(ctx, "op:abc", snapshot{Count: 1}, time.Minute)
	qc.Set(ctx, "op:abc", snapshot{Count: 2}, time.Minute)

	var got snapshot
	require.True(t, qc.Get(ctx, "op:abc", &got))
	assert.Equal(t, 2, got.Count)
	require.True(t, qc.GetStale(ctx, "op:abc", &got))
	assert.Equal(t, 2, got.Count)
}

func TestQueryCache_Clear(t *testing.T) {
	qc, _ := newTestCache(t)
	ctx := context.Background()

	qc.Set(ctx, "op:abc", snapshot{Count: 1}, time.Minute)
	qc.Set(ctx, "op:def", snapshot{Count: 2}, time.Minute)

	require.NoError(t, qc.Clear(ctx))

	var got snapshot
	assert.False(t, qc.Get(ctx, "op:abc", &got))
	assert.False(t, qc.GetStale(ctx, "op:def", &got))

	// Clearing an empty cache is fine.
	assert.NoError(t, qc.Clear(ctx))
}

func TestQueryCache_Stats(t *testing.T) {
	qc, _ := newTestCache(t)
	ctx := context.Background()

	var got snapshot
	qc.Get(ctx, "op:abc", &got)
	qc.Set(ctx, "op:abc", snapshot{Count: 1}, time.Minute)
	qc.Get(ctx, "op:abc", &got)
	qc.GetStale(ctx, "op:abc", &got)

	stats := qc.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.StaleServe)
}

func TestKey_Deterministic(t *testing.T) {
	a := Key("arbitrage", "min_margin_pct=5", "limit=50")
	b := Key("arbitrage", "min_margin_pct=5", "limit=50")
	c := Key("arbitrage", "min_margin_pct=10", "limit=50")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "arbitrage:")
}

func TestKey_SeparatorsInParamsDoNotCollide(t *testing.T) {
	// A parameter value containing a separator must not hash like a
	// differently split tuple.
	assert.NotEqual(t, Key("op", "a&b"), Key("op", "a", "b"))
	assert.NotEqual(t, Key("op", "a,b"), Key("op", "a", "b"))
	assert.NotEqual(t, Key("compare", "P1,P2"), Key("compare", "P1", "P2"))
	assert.NotEqual(t, Key("op", "ab", ""), Key("op", "a", "b"))
}
