// Package catalog owns the normalized product collection: fetching the feed,
// the cache lifecycle, lookups and the cached advanced search.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"storefront-engine/internal/cache"
	"storefront-engine/internal/metrics"
	"storefront-engine/internal/models"
	"storefront-engine/internal/query"
	"storefront-engine/internal/storage"
)

// Defaults for the store options
const (
	DefaultCacheTTL        = 24 * time.Hour
	DefaultResultCacheSize = 256
	DefaultResultCacheTTL  = 5 * time.Minute
	DefaultListingLimit    = 8
	DefaultRelatedLimit    = 4
)

// Store is the catalog store. It is safe for concurrent use.
type Store struct {
	fetcher Fetcher
	storage storage.Storage
	ttl     time.Duration
	results *cache.TTLCache[models.SearchResult]
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	loads   singleflight.Group

	mu      sync.RWMutex
	catalog *models.CachedCatalog
	source  string
}

// Option configures a Store
type Option func(*storeOptions)

type storeOptions struct {
	ttl             time.Duration
	resultCacheSize int
	resultCacheTTL  time.Duration
	metrics         *metrics.Metrics
	logger          *slog.Logger
	now             func() time.Time
}

// WithCacheTTL sets how long a loaded catalog stays valid
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *storeOptions) { o.ttl = ttl }
}

// WithResultCache sizes the advanced search result cache
func WithResultCache(size int, ttl time.Duration) Option {
	return func(o *storeOptions) {
		o.resultCacheSize = size
		o.resultCacheTTL = ttl
	}
}

// WithMetrics records loads and searches on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *storeOptions) { o.metrics = m }
}

// WithLogger sets the store logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) { o.logger = logger }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

// NewStore creates a catalog store reading the feed from fetcher and caching it in store
func NewStore(fetcher Fetcher, store storage.Storage, opts ...Option) *Store {
	options := storeOptions{
		ttl:             DefaultCacheTTL,
		resultCacheSize: DefaultResultCacheSize,
		resultCacheTTL:  DefaultResultCacheTTL,
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Store{
		fetcher: fetcher,
		storage: store,
		ttl:     options.ttl,
		results: cache.NewTTLCache[models.SearchResult](options.resultCacheSize, options.resultCacheTTL),
		metrics: options.metrics,
		logger:  options.logger,
		now:     options.now,
	}
}

// Load returns the catalog, from memory or storage while the cached copy is
// valid and from the feed otherwise. When the feed cannot be fetched or parsed
// the last cached catalog is served even if expired; the error is returned only
// when no cache exists. Concurrent feed fetches are coalesced.
func (s *Store) Load(ctx context.Context, forceRefresh bool) (*models.CachedCatalog, error) {
	if !forceRefresh {
		if cached := s.validInMemory(); cached != nil {
			s.metrics.IncCatalogLoad(metrics.SourceMemory)
			return cached, nil
		}

		if stored := s.readStorage(ctx); stored != nil && s.isValid(stored) {
			s.install(stored, metrics.SourceStorage)
			s.logger.Info("Catalog loaded from storage",
				"products", len(stored.Products),
				"age", s.now().Sub(stored.LoadedAt()).Round(time.Second).String())
			return stored, nil
		}
	}

	result, err, shared := s.loads.Do("fetch", func() (any, error) {
		return s.fetchAndStore(ctx)
	})
	if err == nil {
		if shared {
			s.logger.Debug("Catalog load shared with in-flight fetch")
		}
		return result.(*models.CachedCatalog), nil
	}

	s.metrics.IncCatalogLoadError()
	if fallback := s.fallback(ctx); fallback != nil {
		s.logger.Warn("Catalog fetch failed, serving cached catalog",
			"error", err,
			"cached_at", fallback.LoadedAt().UTC().Format(time.RFC3339))
		return fallback, nil
	}

	s.logger.Error("Catalog fetch failed and no cache is available", "error", err)
	return nil, err
}

// Refresh forces a fetch of the feed
func (s *Store) Refresh(ctx context.Context) (*models.CachedCatalog, error) {
	return s.Load(ctx, true)
}

func (s *Store) fetchAndStore(ctx context.Context) (*models.CachedCatalog, error) {
	data, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	feed, err := ParseFeed(data)
	if err != nil {
		return nil, err
	}
	products, categories := Normalize(*feed)

	catalog := &models.CachedCatalog{
		Products:   products,
		Categories: categories,
		Timestamp:  s.now().UnixMilli(),
	}

	if encoded, err := json.Marshal(catalog); err != nil {
		s.logger.Error("Failed to encode catalog cache", "error", err)
	} else if err := s.storage.Set(ctx, storage.CatalogCacheKey, encoded, s.ttl); err != nil {
		s.logger.Error("Failed to persist catalog cache", "error", err)
	}

	s.install(catalog, metrics.SourceNetwork)
	s.logger.Info("Catalog fetched",
		"source", s.fetcher.Source(),
		"products", len(products),
		"categories", len(categories))
	return catalog, nil
}

// fallback returns any cached catalog, valid or not
func (s *Store) fallback(ctx context.Context) *models.CachedCatalog {
	s.mu.RLock()
	current := s.catalog
	s.mu.RUnlock()
	if current != nil {
		s.metrics.IncCatalogLoad(metrics.SourceFallback)
		return current
	}

	stored := s.readStorage(ctx)
	if stored == nil {
		return nil
	}
	s.install(stored, metrics.SourceFallback)
	return stored
}

// readStorage decodes the persisted catalog. Corrupted records are deleted.
func (s *Store) readStorage(ctx context.Context) *models.CachedCatalog {
	entry, err := s.storage.Get(ctx, storage.CatalogCacheKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to read catalog cache", "key", storage.CatalogCacheKey, "error", err)
			s.discardCorrupt(ctx, err)
		}
		return nil
	}

	var catalog models.CachedCatalog
	if err := json.Unmarshal(entry.Value, &catalog); err != nil {
		s.logger.Warn("Catalog cache is corrupted", "key", storage.CatalogCacheKey, "error", err)
		s.discardCorrupt(ctx, &storage.StorageCorruptionError{Key: storage.CatalogCacheKey, Err: err})
		return nil
	}

	// Derived fields are never trusted from storage
	for i := range catalog.Products {
		catalog.Products[i] = catalog.Products[i].WithDerivedFields()
	}
	if catalog.Products == nil {
		catalog.Products = []models.Product{}
	}
	if catalog.Categories == nil {
		catalog.Categories = []models.Category{}
	}
	return &catalog
}

func (s *Store) discardCorrupt(ctx context.Context, err error) {
	var corruption *storage.StorageCorruptionError
	if !errors.As(err, &corruption) {
		return
	}
	if err := s.storage.Delete(ctx, storage.CatalogCacheKey); err != nil {
		s.logger.Warn("Failed to discard corrupted catalog cache", "error", err)
	}
}

// install makes catalog the in-memory collection and drops memoized searches
func (s *Store) install(catalog *models.CachedCatalog, source string) {
	s.mu.Lock()
	s.catalog = catalog
	s.source = source
	s.mu.Unlock()

	s.results.Clear()
	s.metrics.IncCatalogLoad(source)
	s.metrics.SetCatalogProducts(len(catalog.Products))
}

func (s *Store) isValid(catalog *models.CachedCatalog) bool {
	return s.now().Sub(catalog.LoadedAt()) < s.ttl
}

func (s *Store) validInMemory() *models.CachedCatalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog != nil && s.isValid(s.catalog) {
		return s.catalog
	}
	return nil
}

// ensureLoaded returns the in-memory catalog when valid without counting a load
func (s *Store) ensureLoaded(ctx context.Context) (*models.CachedCatalog, error) {
	if cached := s.validInMemory(); cached != nil {
		return cached, nil
	}
	return s.Load(ctx, false)
}

func (s *Store) current() *models.CachedCatalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Products returns the in-memory products; empty before the first load
func (s *Store) Products() []models.Product {
	catalog := s.current()
	if catalog == nil {
		return []models.Product{}
	}
	return slices.Clone(catalog.Products)
}

// Categories returns the in-memory categories; empty before the first load
func (s *Store) Categories() []models.Category {
	catalog := s.current()
	if catalog == nil || catalog.Categories == nil {
		return []models.Category{}
	}
	return slices.Clone(catalog.Categories)
}

// ProductByID scans the in-memory products for id
func (s *Store) ProductByID(id string) (models.Product, bool) {
	catalog := s.current()
	if catalog == nil {
		return models.Product{}, false
	}
	for _, product := range catalog.Products {
		if product.ID == id {
			return product, true
		}
	}
	return models.Product{}, false
}

// ProductsByCategory returns the in-memory products whose category is category
func (s *Store) ProductsByCategory(category string) []models.Product {
	matched := make([]models.Product, 0)
	catalog := s.current()
	if catalog == nil {
		return matched
	}
	for _, product := range catalog.Products {
		if product.Category == category {
			matched = append(matched, product)
		}
	}
	return matched
}

// GetProducts loads the catalog if needed and returns its products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	if _, err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.Products(), nil
}

// GetCategories loads the catalog if needed and returns its categories
func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	if _, err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.Categories(), nil
}

// GetProductByID loads the catalog if needed and looks up id
func (s *Store) GetProductByID(ctx context.Context, id string) (models.Product, bool, error) {
	if _, err := s.ensureLoaded(ctx); err != nil {
		return models.Product{}, false, err
	}
	product, ok := s.ProductByID(id)
	return product, ok, nil
}

// GetProductsByCategory loads the catalog if needed and filters by category
func (s *Store) GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	if _, err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.ProductsByCategory(category), nil
}

// AdvancedSearch runs search, filter, sort and paginate over the catalog.
// Results are memoized per normalized params and catalog timestamp; every
// caller gets its own copy of the page and facets.
func (s *Store) AdvancedSearch(ctx context.Context, params models.QueryParams) (models.SearchResult, error) {
	catalog, err := s.ensureLoaded(ctx)
	if err != nil {
		return models.SearchResult{}, err
	}

	params = params.WithDefaults()
	key := resultKey(params, catalog.Timestamp)
	if result, ok := s.results.Get(key); ok {
		s.metrics.IncSearch(true)
		return result.Clone(), nil
	}

	started := time.Now()
	result := query.Run(catalog.Products, params)
	s.metrics.ObserveSearch(time.Since(started))
	s.metrics.IncSearch(false)

	s.results.Set(key, result.Clone())
	s.logger.Debug("Advanced search executed",
		"query", params.Query,
		"total", result.Total,
		"duration", time.Since(started).String())
	return result, nil
}

// resultKey identifies params by meaning: categories form a set and the query
// is reduced to its tokens.
func resultKey(params models.QueryParams, timestamp int64) string {
	categories := slices.Clone(params.Categories)
	slices.Sort(categories)
	categories = slices.Compact(categories)

	var b strings.Builder
	b.WriteString(strconv.FormatInt(timestamp, 10))
	fmt.Fprintf(&b, "|q=%s|c=%s", strings.Join(query.Tokenize(params.Query), " "), strings.Join(categories, ","))
	writeOptionalFloat(&b, "min", params.PriceMin)
	writeOptionalFloat(&b, "max", params.PriceMax)
	writeOptionalFloat(&b, "rating", params.Rating)
	fmt.Fprintf(&b, "|stock=%t|new=%t|sale=%t|sort=%s:%s|page=%d:%d",
		params.InStock, params.IsNew, params.OnSale,
		params.SortBy, params.SortOrder, params.Page, params.PerPage)
	return b.String()
}

func writeOptionalFloat(b *strings.Builder, name string, value *float64) {
	if value == nil {
		return
	}
	fmt.Fprintf(b, "|%s=%s", name, strconv.FormatFloat(*value, 'g', -1, 64))
}

// GetFeaturedProducts returns in-stock products by popularity, most popular first
func (s *Store) GetFeaturedProducts(ctx context.Context, limit int) ([]models.Product, error) {
	return s.listing(ctx, limit, DefaultListingLimit, func(p models.Product) bool { return p.InStock },
		models.SortByPopularity)
}

// GetNewProducts returns new products by popularity, most popular first
func (s *Store) GetNewProducts(ctx context.Context, limit int) ([]models.Product, error) {
	return s.listing(ctx, limit, DefaultListingLimit, func(p models.Product) bool { return p.IsNew },
		models.SortByPopularity)
}

// GetSaleProducts returns products on sale by rating, best rated first
func (s *Store) GetSaleProducts(ctx context.Context, limit int) ([]models.Product, error) {
	return s.listing(ctx, limit, DefaultListingLimit, func(p models.Product) bool { return p.OnSale },
		models.SortByRating)
}

// GetRelatedProducts returns other products of the same category by rating.
// An unknown product has no related products.
func (s *Store) GetRelatedProducts(ctx context.Context, productID string, limit int) ([]models.Product, error) {
	product, ok, err := s.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Product{}, nil
	}
	return s.listing(ctx, limit, DefaultRelatedLimit, func(p models.Product) bool {
		return p.Category == product.Category && p.ID != product.ID
	}, models.SortByRating)
}

func (s *Store) listing(ctx context.Context, limit, defaultLimit int, keep func(models.Product) bool, sortBy string) ([]models.Product, error) {
	catalog, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = defaultLimit
	}

	matched := make([]models.Product, 0)
	for _, product := range catalog.Products {
		if keep(product) {
			matched = append(matched, product)
		}
	}

	sorted := query.Sort(matched, sortBy, models.SortOrderDesc)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// Status describes the loaded catalog
type Status struct {
	Loaded      bool             `json:"loaded"`
	Valid       bool             `json:"valid"`
	Products    int              `json:"products"`
	Categories  int              `json:"categories"`
	LoadedAt    *time.Time       `json:"loadedAt,omitempty"`
	LoadedFrom  string           `json:"loadedFrom,omitempty"`
	FeedSource  string           `json:"feedSource"`
	CacheTTL    string           `json:"cacheTtl"`
	ResultCache cache.CacheStats `json:"resultCache"`
}

// Status reports the in-memory catalog state without loading
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		FeedSource:  s.fetcher.Source(),
		CacheTTL:    s.ttl.String(),
		ResultCache: s.results.GetStats(),
	}
	if s.catalog != nil {
		loadedAt := s.catalog.LoadedAt().UTC()
		status.Loaded = true
		status.Valid = s.isValid(s.catalog)
		status.Products = len(s.catalog.Products)
		status.Categories = len(s.catalog.Categories)
		status.LoadedAt = &loadedAt
		status.LoadedFrom = s.source
	}
	return status
}
