package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)

	var total float64
	for metric := range ch {
		var m dto.Metric
		require.NoError(t, metric.Write(&m))
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		}
	}
	return total
}

// TestMetrics_RecordsValues tests the helper methods update their collectors
func TestMetrics_RecordsValues(t *testing.T) {
	// Arrange
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	// Act
	m.IncCatalogLoad(SourceNetwork)
	m.IncCatalogLoad(SourceNetwork)
	m.IncCatalogLoadError()
	m.SetCatalogProducts(12)
	m.IncSearch(true)
	m.IncSearch(false)
	m.ObserveSearch(5 * time.Millisecond)
	m.IncCartMutation("add")
	m.IncCartError("stock_exceeded")
	m.IncPersistFailure()
	m.SetCartItems(3)

	// Assert
	assert.Equal(t, 2.0, counterValue(t, m.CatalogLoadsTotal.WithLabelValues(SourceNetwork)))
	assert.Equal(t, 1.0, counterValue(t, m.CatalogLoadErrorsTotal))
	assert.Equal(t, 12.0, counterValue(t, m.CatalogProducts))
	assert.Equal(t, 1.0, counterValue(t, m.SearchRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, counterValue(t, m.SearchRequestsTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, counterValue(t, m.CartMutationsTotal.WithLabelValues("add")))
	assert.Equal(t, 1.0, counterValue(t, m.CartErrorsTotal.WithLabelValues("stock_exceeded")))
	assert.Equal(t, 1.0, counterValue(t, m.CartPersistFailures))
	assert.Equal(t, 3.0, counterValue(t, m.CartItems))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "storefront_catalog_loads_total")
	assert.Contains(t, names, "storefront_search_duration_seconds")
}

// TestMetrics_NilIsSafe tests that engines can run without metrics
func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncCatalogLoad(SourceMemory)
		m.IncCatalogLoadError()
		m.SetCatalogProducts(1)
		m.IncSearch(true)
		m.ObserveSearch(time.Second)
		m.IncCartMutation("clear")
		m.IncCartError("x")
		m.IncPersistFailure()
		m.SetCartItems(0)
	})
}

// TestNewMetrics_WithoutRegisterer tests unregistered collectors
func TestNewMetrics_WithoutRegisterer(t *testing.T) {
	m := NewMetrics(nil)

	m.IncCartMutation("add")

	assert.Equal(t, 1.0, counterValue(t, m.CartMutationsTotal.WithLabelValues("add")))
}
