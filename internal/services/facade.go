package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/cache"
	"github.com/crossretail/retail-intel-go/internal/models"
	"github.com/crossretail/retail-intel-go/internal/store"
	"github.com/crossretail/retail-intel-go/internal/utils"
)

const (
	// DefaultRecencyWindow bounds how far back an observation may be
	// and still define a "current" price.
	DefaultRecencyWindow = 30 * 24 * time.Hour
	// DefaultRefreshBudget bounds one synchronous view recomputation.
	DefaultRefreshBudget = 10 * time.Second

	DefaultMinMarginPct = 5.0
	DefaultMinPriceDiff = 1.0

	DefaultLimit         = 50
	MaxLimit             = 200
	DefaultPerPage       = 50
	MaxPerPage           = 100
	MaxPage              = 10000
	DefaultSearchPerPage = 20
	DefaultHistoryDays   = 30
	MaxHistoryDays       = 90
)

// FacadeConfig tunes windows, budgets and cache TTLs of the query
// facade. Zero values fall back to the defaults above.
type FacadeConfig struct {
	RecencyWindow   time.Duration
	RefreshBudget   time.Duration
	CacheTTL        time.Duration
	HistoryCacheTTL time.Duration
}

// QueryFacade is the only read surface external callers use. It owns
// the recency window, the per-query cache and its staleness policy:
// results inside the TTL are served as-is (read-your-writes is not
// guaranteed), and a refresh that blows its budget or cannot reach the
// store falls back to the last good snapshot instead of blocking
// callers.
type QueryFacade struct {
	store  store.ObservationStore
	cache  *cache.QueryCache
	cfg    FacadeConfig
	logger *logrus.Logger
	now    func() time.Time
}

// NewQueryFacade wires a facade over an observation store. qc may be
// nil, which disables caching (used in tests).
func NewQueryFacade(st store.ObservationStore, qc *cache.QueryCache, cfg FacadeConfig, logger *logrus.Logger) *QueryFacade {
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = DefaultRecencyWindow
	}
	if cfg.RefreshBudget <= 0 {
		cfg.RefreshBudget = DefaultRefreshBudget
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 3 * time.Minute
	}
	if cfg.HistoryCacheTTL <= 0 {
		cfg.HistoryCacheTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &QueryFacade{
		store:  st,
		cache:  qc,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Ingest validates and appends one observation from the scraping
// collaborator. Schema violations come back as a rejected receipt, not
// an error; only a store failure is an error.
func (f *QueryFacade) Ingest(ctx context.Context, obs models.PriceObservation) (models.IngestReceipt, error) {
	receipt := models.IngestReceipt{ID: uuid.New().String()}

	store.Normalize(&obs)
	if err := store.Validate(obs); err != nil {
		receipt.Status = models.IngestRejected
		receipt.Reason = err.Error()
		return receipt, nil
	}

	result, err := f.store.Append(ctx, obs)
	if err != nil {
		var vErr *utils.ValidationError
		if errors.As(err, &vErr) {
			receipt.Status = models.IngestRejected
			receipt.Reason = vErr.Message
			return receipt, nil
		}
		return models.IngestReceipt{}, utils.NewStoreUnavailableError(err)
	}

	receipt.Seq = result.Seq
	switch result.Status {
	case store.AppendDeduplicated:
		receipt.Status = models.IngestDeduplicated
	default:
		receipt.Status = models.IngestAccepted
	}
	return receipt, nil
}

// GetLatestPrice returns the current price of one product at one
// retailer, or NotFound when the pair has no observation inside the
// recency window.
func (f *QueryFacade) GetLatestPrice(ctx context.Context, productID, site string) (*models.LatestPrice, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, utils.NewValidationError("product_id is required")
	}
	if strings.TrimSpace(site) == "" {
		return nil, utils.NewValidationError("site is required")
	}
	site = strings.ToLower(site)

	key := cache.Key("latest_price", "product_id="+productID, "site="+site)
	var cached models.LatestPrice
	if f.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	rctx, cancel := context.WithTimeout(ctx, f.cfg.RefreshBudget)
	defer cancel()

	observations, err := f.store.Scan(rctx, store.Filter{
		ProductID: productID,
		Site:      site,
		Since:     f.windowStart(),
	})
	if err != nil {
		if f.cacheGetStale(ctx, key, &cached) {
			f.logServingStale("latest_price", err)
			return &cached, nil
		}
		return nil, f.refreshErr("latest_price", err)
	}

	latest := ResolveLatestPrices(observations)
	winner, ok := latest[models.PairKey{ProductID: productID, Site: site}]
	if !ok {
		return nil, utils.NewNotFoundErrorf("no recent price for product %s at %s", productID, site)
	}

	lp := models.LatestPriceFromObservation(winner)
	f.cacheSet(ctx, key, lp, f.cfg.CacheTTL)
	return &lp, nil
}

// CompareProducts lines up the latest prices of the requested products
// across retailers. Products with no in-window observation are simply
// absent from the result.
func (f *QueryFacade) CompareProducts(ctx context.Context, productIDs []string) (*models.ComparisonResponse, error) {
	ids := canonicalIDs(productIDs)
	if len(ids) == 0 {
		return nil, utils.NewValidationError("product_ids must be a nonempty set")
	}

	key := cache.Key("compare_products", ids...)
	var cached models.ComparisonResponse
	if f.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	rctx, cancel := context.WithTimeout(ctx, f.cfg.RefreshBudget)
	defer cancel()

	observations, err := f.store.Scan(rctx, store.Filter{Since: f.windowStart()})
	if err != nil {
		if f.cacheGetStale(ctx, key, &cached) {
			f.logServingStale("compare_products", err)
			return &cached, nil
		}
		return nil, f.refreshErr("compare_products", err)
	}

	latest := ResolveLatestPrices(observations)
	comparisons := buildComparisons(latest, ids)

	resp := models.ComparisonResponse{
		Comparisons: comparisons,
		Count:       len(comparisons),
		Timestamp:   f.now().UTC(),
	}
	f.cacheSet(ctx, key, resp, f.cfg.CacheTTL)
	return &resp, nil
}

// GetArbitrageOpportunities returns cross-retailer opportunities
// clearing both thresholds, ranked by profitability.
func (f *QueryFacade) GetArbitrageOpportunities(ctx context.Context, req models.ArbitrageRequest) (*models.ArbitrageOpportunitiesResponse, error) {
	if req.MinMarginPct < 0 {
		return nil, utils.NewValidationErrorf("min_margin_pct must be >= 0, got %v", req.MinMarginPct)
	}
	if req.MinPriceDiff < 0 {
		return nil, utils.NewValidationErrorf("min_price_diff must be >= 0, got %v", req.MinPriceDiff)
	}
	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return nil, utils.NewOutOfRangeError("limit", "must be within [1, %d], got %d", MaxLimit, req.Limit)
	}
	page, perPage, err := normalizePaging(req.Page, req.PerPage)
	if err != nil {
		return nil, err
	}

	key := cache.Key("arbitrage_opportunities",
		fmt.Sprintf("min_margin_pct=%v", req.MinMarginPct),
		fmt.Sprintf("min_price_diff=%v", req.MinPriceDiff),
		fmt.Sprintf("limit=%d", req.Limit),
		fmt.Sprintf("page=%d", page),
		fmt.Sprintf("per_page=%d", perPage),
	)
	var cached models.ArbitrageOpportunitiesResponse
	if f.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	rctx, cancel := context.WithTimeout(ctx, f.cfg.RefreshBudget)
	defer cancel()

	observations, err := f.store.Scan(rctx, store.Filter{Since: f.windowStart()})
	if err != nil {
		if f.cacheGetStale(ctx, key, &cached) {
			f.logServingStale("arbitrage_opportunities", err)
			return &cached, nil
		}
		return nil, f.refreshErr("arbitrage_opportunities", err)
	}

	thresholds := ArbitrageThresholds{
		MinMarginPct: decimal.NewFromFloat(req.MinMarginPct),
		MinPriceDiff: decimal.NewFromFloat(req.MinPriceDiff),
	}
	opportunities := DetectArbitrage(ResolveLatestPrices(observations), thresholds, req.Limit)
	opportunities = paginateOpportunities(opportunities, page, perPage)

	resp := models.ArbitrageOpportunitiesResponse{
		Opportunities: opportunities,
		Count:         len(opportunities),
		MinMarginPct:  req.MinMarginPct,
		MinPriceDiff:  req.MinPriceDiff,
		Timestamp:     f.now().UTC(),
	}
	f.cacheSet(ctx, key, resp, f.cfg.CacheTTL)
	return &resp, nil
}

// GetPriceHistory returns the day-bucketed price series of one product,
// optionally restricted to one retailer. The window is bounded by the
// retention ceiling; requests beyond it fail instead of being clamped.
func (f *QueryFacade) GetPriceHistory(ctx context.Context, req models.HistoryRequest) (*models.PriceHistoryResponse, error) {
	if strings.TrimSpace(req.ProductID) == "" {
		return nil, utils.NewValidationError("product_id is required")
	}
	if req.Days == 0 {
		req.Days = DefaultHistoryDays
	}
	if req.Days < 1 || req.Days > MaxHistoryDays {
		return nil, utils.NewOutOfRangeError("days", "must be within [1, %d], got %d", MaxHistoryDays, req.Days)
	}
	site := strings.ToLower(strings.TrimSpace(req.Site))

	key := cache.Key("price_history",
		"product_id="+req.ProductID,
		"site="+site,
		fmt.Sprintf("days=%d", req.Days),
	)
	var cached models.PriceHistoryResponse
	if f.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	rctx, cancel := context.WithTimeout(ctx, f.cfg.RefreshBudget)
	defer cancel()

	since := f.now().Add(-time.Duration(req.Days) * 24 * time.Hour)
	observations, err := f.store.Scan(rctx, store.Filter{
		ProductID: req.ProductID,
		Site:      site,
		Since:     since,
	})
	if err != nil {
		if f.cacheGetStale(ctx, key, &cached) {
			f.logServingStale("price_history", err)
			return &cached, nil
		}
		return nil, f.refreshErr("price_history", err)
	}

	points := AggregateHistory(observations)
	resp := models.PriceHistoryResponse{
		ProductID: req.ProductID,
		Points:    points,
		Count:     len(points),
		Timestamp: f.now().UTC(),
	}
	f.cacheSet(ctx, key, resp, f.cfg.HistoryCacheTTL)
	return &resp, nil
}

// GetBrandStats returns per-brand aggregates over the latest-price
// view.
func (f *QueryFacade) GetBrandStats(ctx context.Context, req models.BrandStatsRequest) (*models.BrandStatsResponse, error) {
	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return nil, utils.NewOutOfRangeError("limit", "must be within [1, %d], got %d", MaxLimit, req.Limit)
	}
	page, perPage, err := normalizePaging(req.Page, req.PerPage)
	if err != nil {
		return nil, err
	}

	key := cache.Key("brand_stats",
		fmt.Sprintf("limit=%d", req.Limit),
		fmt.Sprintf("page=%d", page),
		fmt.Sprintf("per_page=%d", perPage),
	)
	var cached models.BrandStatsResponse
	if f.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	rctx, cancel := context.WithTimeout(ctx, f.cfg.RefreshBudget)
	defer cancel()

	observations, err := f.store.Scan(rctx, store.Filter{Since: f.windowStart()})
	if err != nil {
		if f.cacheGetStale(ctx, key, &cached) {
			f.logServingStale("brand_stats", err)
			return &cached, nil
		}
		return nil, f.refreshErr("brand_stats", err)
	}

	stats := AggregateBrandStats(ResolveLatestPrices(observations))
	if len(stats) > req.Limit {
		stats = stats[:req.Limit]
	}
	stats = paginateBrandStats(stats, page, perPage)

	resp := models.BrandStatsResponse{
		Brands:    stats,
		Count:     len(stats),
		Timestamp: f.now().UTC(),
	}
	f.cacheSet(ctx, key, resp, f.cfg.CacheTTL)
	return &resp, nil
}

// SearchProducts filters the latest-price listing by title substring,
// brand, retailer and price bounds. Total counts every match; the page
// window is applied after filtering.
func (f *QueryFacade) SearchProducts(ctx context.Context, req models.ProductSearchRequest) (*models.ProductSearchResponse, error) {
	if req.MinPrice != nil && *req.MinPrice < 0 {
		return nil, utils.NewValidationErrorf("min_price must be >= 0, got %v", *req.MinPrice)
	}
	if req.MaxPrice != nil && *req.MaxPrice < 0 {
		return nil, utils.NewValidationErrorf("max_price must be >= 0, got %v", *req.MaxPrice)
	}
	if req.PerPage == 0 {
		req.PerPage = DefaultSearchPerPage
	}
	page, perPage, err := normalizePaging(req.Page, req.PerPage)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(req.Query))
	brands := canonicalIDs(req.Brands)
	retailers := canonicalIDs(req.Retailers)
	for i, site := range retailers {
		retailers[i] = strings.ToLower(site)
	}
	sort.Strings(retailers)

	params := []string{"query=" + query}
	for _, b := range brands {
		params = append(params, "brand="+b)
	}
	for _, r := range retailers {
		params = append(params, "site="+r)
	}
	if req.MinPrice != nil {
		params = append(params, fmt.Sprintf("min_price=%v", *req.MinPrice))
	}
	if req.MaxPrice != nil {
		params = append(params, fmt.Sprintf("max_price=%v", *req.MaxPrice))
	}
	params = append(params,
		fmt.Sprintf("page=%d", page),
		fmt.Sprintf("per_page=%d", perPage),
	)
	key := cache.Key("product_search", params...)
	var cached models.ProductSearchResponse
	if f.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	rctx, cancel := context.WithTimeout(ctx, f.cfg.RefreshBudget)
	defer cancel()

	observations, err := f.store.Scan(rctx, store.Filter{Since: f.windowStart()})
	if err != nil {
		if f.cacheGetStale(ctx, key, &cached) {
			f.logServingStale("product_search", err)
			return &cached, nil
		}
		return nil, f.refreshErr("product_search", err)
	}

	filter := ProductFilter{Query: query, Brands: brands, Retailers: retailers}
	if req.MinPrice != nil {
		min := decimal.NewFromFloat(*req.MinPrice)
		filter.MinPrice = &min
	}
	if req.MaxPrice != nil {
		max := decimal.NewFromFloat(*req.MaxPrice)
		filter.MaxPrice = &max
	}

	matches := FilterLatestPrices(ResolveLatestPrices(observations), filter)
	total := len(matches)
	matches = paginateLatestPrices(matches, page, perPage)

	resp := models.ProductSearchResponse{
		Products:  matches,
		Count:     len(matches),
		Total:     total,
		Page:      page,
		PerPage:   perPage,
		Timestamp: f.now().UTC(),
	}
	f.cacheSet(ctx, key, resp, f.cfg.CacheTTL)
	return &resp, nil
}

// GetProduct returns the single freshest observation of a product
// across all retailers, or NotFound when no retailer has one inside the
// recency window.
func (f *QueryFacade) GetProduct(ctx context.Context, productID string) (*models.LatestPrice, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, utils.NewValidationError("product_id is required")
	}

	key := cache.Key("product", "product_id="+productID)
	var cached models.LatestPrice
	if f.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	rctx, cancel := context.WithTimeout(ctx, f.cfg.RefreshBudget)
	defer cancel()

	observations, err := f.store.Scan(rctx, store.Filter{
		ProductID: productID,
		Since:     f.windowStart(),
	})
	if err != nil {
		if f.cacheGetStale(ctx, key, &cached) {
			f.logServingStale("product", err)
			return &cached, nil
		}
		return nil, f.refreshErr("product", err)
	}

	latest := ResolveLatestPrices(observations)
	var winner models.StoredObservation
	found := false
	for _, obs := range latest {
		if !found || obs.After(winner) {
			winner = obs
			found = true
		}
	}
	if !found {
		return nil, utils.NewNotFoundErrorf("no recent observation for product %s", productID)
	}

	lp := models.LatestPriceFromObservation(winner)
	f.cacheSet(ctx, key, lp, f.cfg.CacheTTL)
	return &lp, nil
}

func (f *QueryFacade) windowStart() time.Time {
	return f.now().Add(-f.cfg.RecencyWindow)
}

// refreshErr classifies a failed view refresh. A blown budget becomes a
// ComputationTimeout, anything else means the store could not be read.
func (f *QueryFacade) refreshErr(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.NewComputationTimeoutError(operation)
	}
	return utils.NewStoreUnavailableError(err)
}

func (f *QueryFacade) logServingStale(operation string, err error) {
	f.logger.WithError(err).WithField("operation", operation).
		Warn("View refresh failed, serving last good snapshot")
}

func (f *QueryFacade) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if f.cache == nil {
		return false
	}
	return f.cache.Get(ctx, key, dest)
}

func (f *QueryFacade) cacheGetStale(ctx context.Context, key string, dest interface{}) bool {
	if f.cache == nil {
		return false
	}
	return f.cache.GetStale(ctx, key, dest)
}

func (f *QueryFacade) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if f.cache == nil {
		return
	}
	f.cache.Set(ctx, key, value, ttl)
}

// normalizePaging validates page and per_page. The page ceiling keeps
// the offset arithmetic far from integer overflow; a page beyond it is
// reported, never clamped.
func normalizePaging(page, perPage int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if page < 1 || page > MaxPage {
		return 0, 0, utils.NewOutOfRangeError("page", "must be within [1, %d], got %d", MaxPage, page)
	}
	if perPage < 1 || perPage > MaxPerPage {
		return 0, 0, utils.NewOutOfRangeError("per_page", "must be within [1, %d], got %d", MaxPerPage, perPage)
	}
	return page, perPage, nil
}

func paginateOpportunities(items []models.ArbitrageOpportunity, page, perPage int) []models.ArbitrageOpportunity {
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func paginateLatestPrices(items []models.LatestPrice, page, perPage int) []models.LatestPrice {
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func paginateBrandStats(items []models.BrandStats, page, perPage int) []models.BrandStats {
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func canonicalIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// buildComparisons assembles one comparison per requested product that
// has at least one latest price. Retailer rows are ordered by price
// ascending with unpriced rows last; the best-price retailer ties break
// to the lexicographically smallest site.
func buildComparisons(latest map[models.PairKey]models.StoredObservation, productIDs []string) []models.ProductComparison {
	byProduct := make(map[string][]models.LatestPrice)
	for key, obs := range latest {
		byProduct[key.ProductID] = append(byProduct[key.ProductID], models.LatestPriceFromObservation(obs))
	}

	var comparisons []models.ProductComparison
	for _, id := range productIDs {
		retailers, ok := byProduct[id]
		if !ok {
			continue
		}
		sort.Slice(retailers, func(i, j int) bool {
			a, b := retailers[i], retailers[j]
			if a.Price == nil && b.Price == nil {
				return a.Site < b.Site
			}
			if a.Price == nil {
				return false
			}
			if b.Price == nil {
				return true
			}
			if c := a.Price.Cmp(*b.Price); c != 0 {
				return c < 0
			}
			return a.Site < b.Site
		})

		cmp := models.ProductComparison{ProductID: id, Retailers: retailers}
		for _, r := range retailers {
			if r.Price == nil {
				continue
			}
			if cmp.MinPrice == nil {
				cmp.MinPrice = r.Price
				cmp.BestPriceRetailer = r.Site
			}
			if cmp.MaxPrice == nil || r.Price.GreaterThan(*cmp.MaxPrice) {
				cmp.MaxPrice = r.Price
			}
		}
		if cmp.MinPrice != nil && cmp.MaxPrice != nil {
			diff := cmp.MaxPrice.Sub(*cmp.MinPrice)
			cmp.PriceDifference = &diff
		}
		comparisons = append(comparisons, cmp)
	}
	return comparisons
}
