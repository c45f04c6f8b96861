// Package server wires the catalog and cart engines behind the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-engine/internal/cart"
	"storefront-engine/internal/catalog"
	"storefront-engine/internal/config"
	"storefront-engine/internal/events"
	"storefront-engine/internal/handlers"
	"storefront-engine/internal/metrics"
	"storefront-engine/internal/middleware"
	"storefront-engine/internal/storage"
	"storefront-engine/internal/telemetry"
)

const (
	meterName       = "storefront-engine"
	shutdownTimeout = 30 * time.Second
)

// Engines are the storefront components shared by the HTTP server and the CLI
type Engines struct {
	Storage storage.Storage
	Catalog *catalog.Store
	Cart    *cart.Cart
	Events  *events.Bus
	Metrics *metrics.Metrics
}

// OpenEngines builds storage, the catalog store and the cart from cfg. The
// catalog is loaded eagerly; a catalog that cannot be loaded yet is logged and
// retried on first use.
func OpenEngines(ctx context.Context, cfg *config.Config, registerer prometheus.Registerer) (*Engines, error) {
	backend, err := storage.Open(cfg.StorageBackend, cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	engineMetrics := metrics.NewMetrics(registerer)

	store := catalog.NewStore(
		catalog.NewFetcher(cfg.CatalogSource, cfg.FetchTimeout()),
		backend,
		catalog.WithCacheTTL(cfg.CacheTTL()),
		catalog.WithResultCache(cfg.ResultCacheSize(), cfg.ResultCacheTTL()),
		catalog.WithMetrics(engineMetrics),
	)
	if _, err := store.Load(ctx, false); err != nil {
		slog.Warn("Catalog not available at startup", "source", cfg.CatalogSource, "error", err)
	}

	bus := events.NewBus(cfg.EventLogCapacity(), slog.Default())
	shoppingCart, err := cart.Open(ctx, store, backend,
		cart.WithBus(bus),
		cart.WithMetrics(engineMetrics),
		cart.WithMaxAge(cfg.MaxCartAge()),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &Engines{
		Storage: backend,
		Catalog: store,
		Cart:    shoppingCart,
		Events:  bus,
		Metrics: engineMetrics,
	}, nil
}

// Close releases the storage backend
func (e *Engines) Close() error {
	return e.Storage.Close()
}

// Server is the storefront HTTP host
type Server struct {
	cfg       *config.Config
	engines   *Engines
	telemetry *telemetry.Telemetry
	http      *http.Server
}

// New builds the engines, telemetry and router for cfg
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engines, err := OpenEngines(ctx, cfg, registry)
	if err != nil {
		return nil, err
	}

	otelTelemetry, err := telemetry.InitMetrics(ctx, meterName, cfg.MetricsExporter, registry)
	if err != nil {
		_ = engines.Close()
		return nil, err
	}
	apiTelemetry, err := telemetry.NewAPITelemetry(otelTelemetry.Meter())
	if err != nil {
		_ = engines.Close()
		return nil, err
	}

	router := NewRouter(engines, apiTelemetry, cfg.ValidAPIKeys(), registry)
	return &Server{
		cfg:       cfg,
		engines:   engines,
		telemetry: otelTelemetry,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// NewRouter registers every storefront route
func NewRouter(engines *Engines, apiTelemetry *telemetry.APITelemetry, apiKeys []string, gatherer prometheus.Gatherer) *mux.Router {
	catalogHandler := handlers.NewCatalogHandler(engines.Catalog)
	cartHandler := handlers.NewCartHandler(engines.Cart)
	eventsHandler := handlers.NewEventsHandler(engines.Events, slog.Default())
	adminHandler := handlers.NewAdminHandler(engines.Catalog, engines.Storage)
	healthHandler := handlers.NewHealthHandler(engines.Catalog, engines.Cart)

	r := mux.NewRouter()
	r.Use(telemetry.NewMiddleware(apiTelemetry).Handler)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Catalog routes - fixed paths before {productId}
	v1.HandleFunc("/products", catalogHandler.ListProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/featured", catalogHandler.FeaturedProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/new", catalogHandler.NewProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/sale", catalogHandler.SaleProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/{productId}", catalogHandler.GetProduct).Methods(http.MethodGet)
	v1.HandleFunc("/products/{productId}/related", catalogHandler.RelatedProducts).Methods(http.MethodGet)
	v1.HandleFunc("/categories", catalogHandler.ListCategories).Methods(http.MethodGet)
	v1.HandleFunc("/categories/{categoryId}/products", catalogHandler.CategoryProducts).Methods(http.MethodGet)

	// Cart routes
	v1.HandleFunc("/cart", cartHandler.GetCart).Methods(http.MethodGet)
	v1.HandleFunc("/cart", cartHandler.ClearCart).Methods(http.MethodDelete)
	v1.HandleFunc("/cart/summary", cartHandler.GetSummary).Methods(http.MethodGet)
	v1.HandleFunc("/cart/items", cartHandler.AddItem).Methods(http.MethodPost)
	v1.HandleFunc("/cart/items/{productId}", cartHandler.UpdateItem).Methods(http.MethodPatch)
	v1.HandleFunc("/cart/items/{productId}", cartHandler.RemoveItem).Methods(http.MethodDelete)
	v1.HandleFunc("/cart/merge", cartHandler.MergeCart).Methods(http.MethodPost)
	v1.HandleFunc("/cart/export", cartHandler.ExportCart).Methods(http.MethodGet)
	v1.HandleFunc("/cart/import", cartHandler.ImportCart).Methods(http.MethodPost)
	v1.HandleFunc("/cart/validate", cartHandler.ValidateCart).Methods(http.MethodPost)
	v1.HandleFunc("/cart/events", eventsHandler.GetEvents).Methods(http.MethodGet)

	// Admin routes
	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminAuthMiddleware(apiKeys))
	admin.HandleFunc("/catalog/refresh", adminHandler.RefreshCatalog).Methods(http.MethodPost)
	admin.HandleFunc("/catalog/status", adminHandler.CatalogStatus).Methods(http.MethodGet)
	admin.HandleFunc("/storage/stats", adminHandler.StorageStats).Methods(http.MethodGet)

	// System routes (no auth)
	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server ready to accept connections",
			"address", s.http.Addr,
			"environment", s.cfg.Environment)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := s.engines.Cart.Persist(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := s.telemetry.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := s.engines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage close: %w", err))
	}

	slog.Info("Server exited")
	return errors.Join(errs...)
}
