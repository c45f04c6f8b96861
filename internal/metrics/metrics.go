// Package metrics holds the Prometheus collectors for the catalog and cart engines.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Catalog load sources
const (
	SourceMemory   = "memory"
	SourceStorage  = "storage"
	SourceNetwork  = "network"
	SourceFallback = "fallback"
)

// Metrics bundles the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CatalogLoadsTotal      *prometheus.CounterVec
	CatalogLoadErrorsTotal prometheus.Counter
	CatalogProducts        prometheus.Gauge
	SearchRequestsTotal    *prometheus.CounterVec
	SearchDuration         prometheus.Histogram
	CartMutationsTotal     *prometheus.CounterVec
	CartErrorsTotal        *prometheus.CounterVec
	CartPersistFailures    prometheus.Counter
	CartItems              prometheus.Gauge
}

// NewMetrics constructs the collectors and registers them on registerer
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		CatalogLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_catalog_loads_total",
				Help: "Catalog loads by the source that satisfied them.",
			},
			[]string{"source"},
		),
		CatalogLoadErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_catalog_load_errors_total",
				Help: "Catalog fetch or parse failures, including those recovered from cache.",
			},
		),
		CatalogProducts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storefront_catalog_products",
				Help: "Number of products in the loaded catalog.",
			},
		),
		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_search_requests_total",
				Help: "Advanced search requests by result cache outcome.",
			},
			[]string{"cache"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "storefront_search_duration_seconds",
				Help:    "Time spent running the query pipeline on a result cache miss.",
				Buckets: prometheus.DefBuckets,
			},
		),
		CartMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_cart_mutations_total",
				Help: "Successful cart mutations by operation.",
			},
			[]string{"operation"},
		),
		CartErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_cart_errors_total",
				Help: "Rejected cart mutations by error type.",
			},
			[]string{"error_type"},
		),
		CartPersistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_cart_persist_failures_total",
				Help: "Cart writes to storage that failed.",
			},
		),
		CartItems: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storefront_cart_items",
				Help: "Total quantity currently in the cart.",
			},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.CatalogLoadsTotal,
			m.CatalogLoadErrorsTotal,
			m.CatalogProducts,
			m.SearchRequestsTotal,
			m.SearchDuration,
			m.CartMutationsTotal,
			m.CartErrorsTotal,
			m.CartPersistFailures,
			m.CartItems,
		)
	}
	return m
}

// IncCatalogLoad counts a catalog load satisfied by source
func (m *Metrics) IncCatalogLoad(source string) {
	if m == nil {
		return
	}
	m.CatalogLoadsTotal.WithLabelValues(source).Inc()
}

// IncCatalogLoadError counts a failed fetch or parse
func (m *Metrics) IncCatalogLoadError() {
	if m == nil {
		return
	}
	m.CatalogLoadErrorsTotal.Inc()
}

// SetCatalogProducts records the loaded catalog size
func (m *Metrics) SetCatalogProducts(count int) {
	if m == nil {
		return
	}
	m.CatalogProducts.Set(float64(count))
}

// IncSearch counts an advanced search; hit reports a result cache hit
func (m *Metrics) IncSearch(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.SearchRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSearch records the duration of an uncached query pipeline run
func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
}

// IncCartMutation counts a successful cart operation
func (m *Metrics) IncCartMutation(operation string) {
	if m == nil {
		return
	}
	m.CartMutationsTotal.WithLabelValues(operation).Inc()
}

// IncCartError counts a rejected cart operation
func (m *Metrics) IncCartError(errorType string) {
	if m == nil {
		return
	}
	m.CartErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncPersistFailure counts a failed cart write
func (m *Metrics) IncPersistFailure() {
	if m == nil {
		return
	}
	m.CartPersistFailures.Inc()
}

// SetCartItems records the cart's total quantity
func (m *Metrics) SetCartItems(count int) {
	if m == nil {
		return
	}
	m.CartItems.Set(float64(count))
}
