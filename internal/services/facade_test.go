package services

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossretail/retail-intel-go/internal/cache"
	"github.com/crossretail/retail-intel-go/internal/models"
	"github.com/crossretail/retail-intel-go/internal/store"
	"github.com/crossretail/retail-intel-go/internal/utils"
)

// flakyStore fails Scan on demand so stale-serving and error
// classification can be exercised.
type flakyStore struct {
	store.ObservationStore
	failScan atomic.Bool
	scanErr  error
}

func (s *flakyStore) Scan(ctx context.Context, f store.Filter) ([]models.StoredObservation, error) {
	if s.failScan.Load() {
		if s.scanErr != nil {
			return nil, s.scanErr
		}
		return nil, errors.New("connection refused")
	}
	return s.ObservationStore.Scan(ctx, f)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestFacade(t *testing.T, st store.ObservationStore) (*QueryFacade, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	qc := cache.NewQueryCache(client, 24*time.Hour, quietLogger())
	return NewQueryFacade(st, qc, FacadeConfig{}, quietLogger()), mr
}

func seedObservation(t *testing.T, st store.ObservationStore, productID, site string, price *decimal.Decimal, scrapedAt time.Time) {
	t.Helper()
	_, err := st.Append(context.Background(), models.PriceObservation{
		ProductID: productID,
		Site:      site,
		Price:     price,
		ScrapedAt: scrapedAt,
	})
	require.NoError(t, err)
}

func TestFacade_IngestReceipts(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()
	at := time.Now()

	obs := models.PriceObservation{ProductID: "P1", Site: "amazon", Price: priceOf(100), ScrapedAt: at}

	receipt, err := f.Ingest(ctx, obs)
	require.NoError(t, err)
	assert.Equal(t, models.IngestAccepted, receipt.Status)
	assert.NotEmpty(t, receipt.ID)
	assert.NotZero(t, receipt.Seq)

	// Same uniqueness key comes back deduplicated, not rejected.
	receipt, err = f.Ingest(ctx, obs)
	require.NoError(t, err)
	assert.Equal(t, models.IngestDeduplicated, receipt.Status)

	// Schema violations yield a rejected receipt without an error.
	receipt, err = f.Ingest(ctx, models.PriceObservation{Site: "amazon", ScrapedAt: at})
	require.NoError(t, err)
	assert.Equal(t, models.IngestRejected, receipt.Status)
	assert.NotEmpty(t, receipt.Reason)
}

func TestFacade_GetLatestPrice(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()
	now := time.Now()

	seedObservation(t, st, "P1", "amazon", priceOf(100), now.Add(-2*time.Hour))
	seedObservation(t, st, "P1", "amazon", priceOf(110), now.Add(-time.Hour))

	lp, err := f.GetLatestPrice(ctx, "P1", "amazon")
	require.NoError(t, err)
	assert.True(t, lp.Price.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, "amazon", lp.Site)
}

func TestFacade_GetLatestPriceNotFound(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()

	// An observation older than the recency window does not define a
	// current price.
	seedObservation(t, st, "P1", "amazon", priceOf(100), time.Now().Add(-40*24*time.Hour))

	_, err := f.GetLatestPrice(ctx, "P1", "amazon")
	var nfErr *utils.NotFoundError
	assert.ErrorAs(t, err, &nfErr)

	_, err = f.GetLatestPrice(ctx, "P2", "amazon")
	assert.ErrorAs(t, err, &nfErr)
}

func TestFacade_GetLatestPriceValidation(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)

	var vErr *utils.ValidationError
	_, err := f.GetLatestPrice(context.Background(), "", "amazon")
	assert.ErrorAs(t, err, &vErr)
	_, err = f.GetLatestPrice(context.Background(), "P1", "")
	assert.ErrorAs(t, err, &vErr)
}

func TestFacade_CompareProducts(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()
	now := time.Now()

	seedObservation(t, st, "P1", "amazon", priceOf(100), now.Add(-time.Hour))
	seedObservation(t, st, "P1", "walmart", priceOf(80), now.Add(-time.Hour))

	resp, err := f.CompareProducts(ctx, []string{"P1", "P1", " ", "P-missing"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)

	cmp := resp.Comparisons[0]
	assert.Equal(t, "P1", cmp.ProductID)
	require.Len(t, cmp.Retailers, 2)
	assert.Equal(t, "walmart", cmp.Retailers[0].Site)
	assert.Equal(t, "walmart", cmp.BestPriceRetailer)
	require.NotNil(t, cmp.PriceDifference)
	assert.True(t, cmp.PriceDifference.Equal(decimal.NewFromInt(20)))

	_, err = f.CompareProducts(ctx, []string{"", "  "})
	var vErr *utils.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestFacade_ArbitrageDefaultsAndValidation(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()
	now := time.Now()

	// 80 -> 100 clears the 5% / 1.0 defaults.
	seedObservation(t, st, "P1", "amazon", priceOf(100), now.Add(-time.Hour))
	seedObservation(t, st, "P1", "walmart", priceOf(80), now.Add(-time.Hour))

	resp, err := f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{
		MinMarginPct: DefaultMinMarginPct,
		MinPriceDiff: DefaultMinPriceDiff,
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "P1", resp.Opportunities[0].ProductID)

	var vErr *utils.ValidationError
	_, err = f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{MinMarginPct: -1})
	assert.ErrorAs(t, err, &vErr)
	_, err = f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{MinPriceDiff: -0.5})
	assert.ErrorAs(t, err, &vErr)

	var orErr *utils.OutOfRangeError
	_, err = f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{Limit: MaxLimit + 1})
	assert.ErrorAs(t, err, &orErr)
	_, err = f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{Limit: -1})
	assert.ErrorAs(t, err, &orErr)
}

func TestFacade_ArbitrageCachedWithinTTL(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, mr := newTestFacade(t, st)
	ctx := context.Background()
	now := time.Now()

	seedObservation(t, st, "P1", "amazon", priceOf(100), now.Add(-time.Hour))
	seedObservation(t, st, "P1", "walmart", priceOf(80), now.Add(-time.Hour))

	first, err := f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)

	// A write landing inside the TTL is not visible yet.
	seedObservation(t, st, "P2", "amazon", priceOf(10), now.Add(-time.Hour))
	seedObservation(t, st, "P2", "kohls", priceOf(40), now.Add(-time.Hour))

	second, err := f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Count)

	// Past the TTL the refresh picks the new data up.
	mr.FastForward(4 * time.Minute)
	third, err := f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, third.Count)
}

func TestFacade_ServesStaleWhenStoreFails(t *testing.T) {
	inner := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	flaky := &flakyStore{ObservationStore: inner}
	f, mr := newTestFacade(t, flaky)
	ctx := context.Background()
	now := time.Now()

	seedObservation(t, inner, "P1", "amazon", priceOf(100), now.Add(-time.Hour))
	seedObservation(t, inner, "P1", "walmart", priceOf(80), now.Add(-time.Hour))

	first, err := f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)

	// Primary entry expired, store down: the stale copy still serves.
	mr.FastForward(4 * time.Minute)
	flaky.failScan.Store(true)

	stale, err := f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{})
	require.NoError(t, err)
	require.Equal(t, first.Count, stale.Count)
	assert.Equal(t, first.Opportunities[0].ProductID, stale.Opportunities[0].ProductID)
	assert.True(t, stale.Opportunities[0].ProfitMarginPct.Equal(first.Opportunities[0].ProfitMarginPct))
}

func TestFacade_StoreUnavailableWithoutSnapshot(t *testing.T) {
	inner := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	flaky := &flakyStore{ObservationStore: inner}
	f, _ := newTestFacade(t, flaky)

	flaky.failScan.Store(true)

	_, err := f.GetArbitrageOpportunities(context.Background(), models.ArbitrageRequest{})
	var suErr *utils.StoreUnavailableError
	assert.ErrorAs(t, err, &suErr)
}

func TestFacade_BlownBudgetIsComputationTimeout(t *testing.T) {
	inner := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	flaky := &flakyStore{ObservationStore: inner, scanErr: context.DeadlineExceeded}
	flaky.failScan.Store(true)
	f, _ := newTestFacade(t, flaky)

	_, err := f.GetArbitrageOpportunities(context.Background(), models.ArbitrageRequest{})
	var ctErr *utils.ComputationTimeoutError
	assert.ErrorAs(t, err, &ctErr)
}

func TestFacade_PriceHistory(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()
	now := time.Now().UTC()

	seedObservation(t, st, "P1", "amazon", priceOf(100), now.Add(-2*24*time.Hour))
	seedObservation(t, st, "P1", "amazon", priceOf(110), now.Add(-24*time.Hour))
	// Outside the requested window.
	seedObservation(t, st, "P1", "amazon", priceOf(90), now.Add(-10*24*time.Hour))

	resp, err := f.GetPriceHistory(ctx, models.HistoryRequest{ProductID: "P1", Days: 5})
	require.NoError(t, err)
	assert.Equal(t, "P1", resp.ProductID)
	assert.Equal(t, 2, resp.Count)
}

func TestFacade_PriceHistoryValidation(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()

	var vErr *utils.ValidationError
	_, err := f.GetPriceHistory(ctx, models.HistoryRequest{Days: 10})
	assert.ErrorAs(t, err, &vErr)

	// Beyond the retention ceiling the request fails, it is not clamped.
	var orErr *utils.OutOfRangeError
	_, err = f.GetPriceHistory(ctx, models.HistoryRequest{ProductID: "P1", Days: MaxHistoryDays + 1})
	assert.ErrorAs(t, err, &orErr)
	_, err = f.GetPriceHistory(ctx, models.HistoryRequest{ProductID: "P1", Days: -1})
	assert.ErrorAs(t, err, &orErr)
}

func TestFacade_BrandStats(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()
	now := time.Now()

	for _, obs := range []models.PriceObservation{
		{ProductID: "P1", Site: "amazon", Brand: "Acme", Price: priceOf(100), ScrapedAt: now.Add(-time.Hour)},
		{ProductID: "P1", Site: "walmart", Brand: "Acme", Price: priceOf(90), ScrapedAt: now.Add(-time.Hour)},
		{ProductID: "P2", Site: "amazon", Brand: "Acme", Price: priceOf(50), ScrapedAt: now.Add(-time.Hour)},
	} {
		_, err := st.Append(ctx, obs)
		require.NoError(t, err)
	}

	resp, err := f.GetBrandStats(ctx, models.BrandStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Acme", resp.Brands[0].Brand)
	assert.Equal(t, 2, resp.Brands[0].ProductCount)
	assert.Equal(t, 2, resp.Brands[0].RetailerCount)

	var orErr *utils.OutOfRangeError
	_, err = f.GetBrandStats(ctx, models.BrandStatsRequest{Limit: MaxLimit + 1})
	assert.ErrorAs(t, err, &orErr)
	_, err = f.GetBrandStats(ctx, models.BrandStatsRequest{Page: -2})
	assert.ErrorAs(t, err, &orErr)
}

func TestFacade_HugePageRejectedNotPanic(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()
	now := time.Now()

	// Results must exist for the page window to be applied at all.
	seedObservation(t, st, "P1", "amazon", priceOf(100), now.Add(-time.Hour))
	seedObservation(t, st, "P1", "walmart", priceOf(80), now.Add(-time.Hour))

	var orErr *utils.OutOfRangeError
	_, err := f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{Page: math.MaxInt, PerPage: 50})
	require.ErrorAs(t, err, &orErr)
	assert.Equal(t, "page", orErr.Param)

	_, err = f.GetBrandStats(ctx, models.BrandStatsRequest{Page: math.MaxInt, PerPage: 50})
	assert.ErrorAs(t, err, &orErr)

	_, err = f.SearchProducts(ctx, models.ProductSearchRequest{Page: math.MaxInt, PerPage: 50})
	assert.ErrorAs(t, err, &orErr)

	// The largest accepted page serves an empty window, never a panic.
	resp, err := f.GetArbitrageOpportunities(ctx, models.ArbitrageRequest{Page: MaxPage, PerPage: 50})
	require.NoError(t, err)
	assert.Zero(t, resp.Count)
}

func TestFacade_SearchProducts(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()
	now := time.Now()

	for _, obs := range []models.PriceObservation{
		{ProductID: "P1", Site: "amazon", Brand: "Acme", Title: "Cordless Drill", Price: priceOf(100), ScrapedAt: now.Add(-time.Hour)},
		{ProductID: "P1", Site: "walmart", Brand: "Acme", Title: "Cordless Drill", Price: priceOf(80), ScrapedAt: now.Add(-time.Hour)},
		{ProductID: "P2", Site: "amazon", Brand: "Brio", Title: "Claw Hammer", Price: priceOf(20), ScrapedAt: now.Add(-time.Hour)},
	} {
		_, err := st.Append(ctx, obs)
		require.NoError(t, err)
	}

	resp, err := f.SearchProducts(ctx, models.ProductSearchRequest{Query: "drill"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "walmart", resp.Products[0].Site)

	resp, err = f.SearchProducts(ctx, models.ProductSearchRequest{Brands: []string{"Brio"}})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "P2", resp.Products[0].ProductID)

	// Paging splits the filtered set; Total still counts every match.
	resp, err = f.SearchProducts(ctx, models.ProductSearchRequest{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Count)

	negative := -1.0
	var vErr *utils.ValidationError
	_, err = f.SearchProducts(ctx, models.ProductSearchRequest{MinPrice: &negative})
	assert.ErrorAs(t, err, &vErr)
}

func TestFacade_GetProduct(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f, _ := newTestFacade(t, st)
	ctx := context.Background()
	now := time.Now()

	seedObservation(t, st, "P1", "amazon", priceOf(100), now.Add(-2*time.Hour))
	seedObservation(t, st, "P1", "walmart", priceOf(80), now.Add(-time.Hour))

	// The freshest observation wins regardless of retailer.
	product, err := f.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "walmart", product.Site)
	assert.True(t, product.Price.Equal(decimal.NewFromInt(80)))

	var nfErr *utils.NotFoundError
	_, err = f.GetProduct(ctx, "P-missing")
	assert.ErrorAs(t, err, &nfErr)

	var vErr *utils.ValidationError
	_, err = f.GetProduct(ctx, " ")
	assert.ErrorAs(t, err, &vErr)
}

func TestFacade_WorksWithoutCache(t *testing.T) {
	st := store.NewMemoryStore(90*24*time.Hour, 30*24*time.Hour)
	f := NewQueryFacade(st, nil, FacadeConfig{}, quietLogger())
	ctx := context.Background()

	seedObservation(t, st, "P1", "amazon", priceOf(100), time.Now().Add(-time.Hour))

	lp, err := f.GetLatestPrice(ctx, "P1", "amazon")
	require.NoError(t, err)
	assert.True(t, lp.Price.Equal(decimal.NewFromInt(100)))
}
