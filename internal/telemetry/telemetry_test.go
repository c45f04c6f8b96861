package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	promclient "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestTelemetry(t *testing.T) (*APITelemetry, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	apiTelemetry, err := NewAPITelemetry(provider.Meter("storefront-test"))
	require.NoError(t, err)
	return apiTelemetry, reader
}

// sumCounter adds the data points of counter name whose attributes include match
func sumCounter(t *testing.T, reader *sdkmetric.ManualReader, name string, match ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if hasAttributes(dp.Attributes, match) {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func hasAttributes(set attribute.Set, match []attribute.KeyValue) bool {
	for _, kv := range match {
		value, ok := set.Value(kv.Key)
		if !ok || value != kv.Value {
			return false
		}
	}
	return true
}

// TestMiddleware_RecordsRouteTemplates tests the complete telemetry integration
func TestMiddleware_RecordsRouteTemplates(t *testing.T) {
	// Arrange
	apiTelemetry, reader := newTestTelemetry(t)
	router := mux.NewRouter()
	router.Use(NewMiddleware(apiTelemetry).Handler)

	ok := func(w http.ResponseWriter, r *http.Request) {
		SetResultCount(r.Context(), 3)
		w.WriteHeader(http.StatusOK)
	}
	router.HandleFunc("/v1/products", ok).Methods(http.MethodGet)
	router.HandleFunc("/v1/products/{productId}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["productId"] == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	router.HandleFunc("/v1/cart/items", ok).Methods(http.MethodPost)
	router.HandleFunc("/v1/cart/events", func(w http.ResponseWriter, r *http.Request) {
		SetEventCount(r.Context(), 4)
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/products?q=lamp"},
		{http.MethodGet, "/v1/products/p1"},
		{http.MethodGet, "/v1/products/p2"},
		{http.MethodGet, "/v1/products/missing"},
		{http.MethodPost, "/v1/cart/items"},
		{http.MethodGet, "/v1/cart/events"},
	}

	// Act
	for _, req := range requests {
		r := httptest.NewRequest(req.method, req.path, nil)
		r.RemoteAddr = "10.1.2.3:5000"
		router.ServeHTTP(httptest.NewRecorder(), r)
	}

	// Assert
	assert.Equal(t, int64(5), sumCounter(t, reader, "storefront_api_requests_total"))
	assert.Equal(t, int64(2), sumCounter(t, reader, "storefront_api_requests_total",
		attribute.String("endpoint", "/v1/products/{productId}")), "raw ids never become labels")
	assert.Equal(t, int64(5), sumCounter(t, reader, "storefront_api_requests_total",
		attribute.String("client_ip_type", "internal")))
	assert.Equal(t, int64(1), sumCounter(t, reader, "storefront_api_errors_total",
		attribute.String("error_type", "not_found"),
		attribute.Int("status_code", http.StatusNotFound)))
	assert.Equal(t, int64(2), sumCounter(t, reader, "storefront_product_queries_total",
		attribute.String("operation", "get_product")))
	assert.Equal(t, int64(1), sumCounter(t, reader, "storefront_product_queries_total",
		attribute.String("operation", "search")))
	assert.Equal(t, int64(1), sumCounter(t, reader, "storefront_cart_operations_total",
		attribute.String("operation", "add")))
	assert.Equal(t, int64(4), sumCounter(t, reader, "storefront_cart_events_retrieved_total"))
}

// TestGetClientIP tests header precedence
func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "127.0.0.1:1", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "192.168.1.4"}, "127.0.0.1:1", "192.168.1.4"},
		{"invalid header falls through", map[string]string{"X-Forwarded-For": "nonsense"}, "198.51.100.2:80", "198.51.100.2"},
		{"remote addr without port", nil, "198.51.100.2", "198.51.100.2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}

			assert.Equal(t, tc.expected, getClientIP(r))
		})
	}
}

// TestNormalizeClientIP tests the IP categories
func TestNormalizeClientIP(t *testing.T) {
	testCases := map[string]string{
		"":            "unknown",
		"not-an-ip":   "invalid",
		"127.0.0.1":   "localhost",
		"::1":         "localhost",
		"10.4.0.9":    "internal",
		"172.20.1.1":  "internal",
		"fe80::1":     "internal",
		"8.8.8.8":     "external",
		"203.0.113.9": "external",
	}

	for ip, expected := range testCases {
		assert.Equal(t, expected, NormalizeClientIP(ip), ip)
	}
}

// TestCategorizeError tests error grouping
func TestCategorizeError(t *testing.T) {
	testCases := map[string]string{
		"":                      "unknown",
		"Not Found":             "not_found",
		"Unprocessable Entity":  "invalid_request",
		"Unauthorized":          "unauthorized",
		"Conflict":              "conflict",
		"Service Unavailable":   "unavailable",
		"Internal Server Error": "internal_error",
		"Bad Request":           "bad_request",
		"Teapot":                "other",
	}

	for message, expected := range testCases {
		assert.Equal(t, expected, categorizeError(message), message)
	}
}

// TestInitMetrics tests exporter selection
func TestInitMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("scraper registers on the given registry", func(t *testing.T) {
		registry := promclient.NewRegistry()

		tel, err := InitMetrics(ctx, "storefront-test", ExporterScraper, registry)
		require.NoError(t, err)
		defer tel.Close(ctx)

		counter, err := tel.Meter().Int64Counter("storefront_test_total")
		require.NoError(t, err)
		counter.Add(ctx, 2)

		families, err := registry.Gather()
		require.NoError(t, err)
		found := slices.ContainsFunc(families, func(family *dto.MetricFamily) bool {
			return strings.HasPrefix(family.GetName(), "storefront_test")
		})
		assert.True(t, found, "otel instruments are exposed through the registry")
	})

	t.Run("disabled", func(t *testing.T) {
		tel, err := InitMetrics(ctx, "storefront-test", ExporterNone, nil)
		require.NoError(t, err)

		assert.Nil(t, tel.Provider)
		assert.NotNil(t, tel.Meter())
		assert.NoError(t, tel.Close(ctx))
	})
}
