package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// APITelemetry records request metrics for the storefront HTTP API
type APITelemetry struct {
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram

	// Storefront-specific counters
	productQueryCounter   metric.Int64Counter
	cartOperationCounter  metric.Int64Counter
	eventRetrievalCounter metric.Int64Counter
}

// RequestMetrics contains the telemetry data for one request
type RequestMetrics struct {
	Method       string
	Endpoint     string // route template, never the raw path
	StatusCode   int
	Duration     time.Duration
	ErrorMessage string
	ClientIP     string // logged only
	ClientIPType string // "internal", "external", "localhost", "invalid" or "unknown"
	ResultCount  int
	EventCount   int
}

// productOperations and cartOperations map "METHOD template" to an operation label
var productOperations = map[string]string{
	"GET /v1/products":                         "search",
	"GET /v1/products/featured":                "featured",
	"GET /v1/products/new":                     "new",
	"GET /v1/products/sale":                    "sale",
	"GET /v1/products/{productId}":             "get_product",
	"GET /v1/products/{productId}/related":     "related",
	"GET /v1/categories":                       "list_categories",
	"GET /v1/categories/{categoryId}/products": "category_products",
}

var cartOperations = map[string]string{
	"GET /v1/cart":                      "get",
	"GET /v1/cart/summary":              "summary",
	"POST /v1/cart/items":               "add",
	"PATCH /v1/cart/items/{productId}":  "update",
	"DELETE /v1/cart/items/{productId}": "remove",
	"POST /v1/cart/merge":               "merge",
	"GET /v1/cart/export":               "export",
	"POST /v1/cart/import":              "import",
	"POST /v1/cart/validate":            "validate",
	"DELETE /v1/cart":                   "clear",
}

const eventsEndpoint = "/v1/cart/events"

// NewAPITelemetry creates the API instruments on meter
func NewAPITelemetry(meter metric.Meter) (*APITelemetry, error) {
	slog.Info("Initializing storefront API telemetry")

	t := &APITelemetry{}
	var err error

	t.requestCounter, err = meter.Int64Counter(
		"storefront_api_requests_total",
		metric.WithDescription("Total number of successful storefront API requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	t.errorCounter, err = meter.Int64Counter(
		"storefront_api_errors_total",
		metric.WithDescription("Total number of failed storefront API requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	t.durationHistogram, err = meter.Float64Histogram(
		"storefront_api_request_duration_seconds",
		metric.WithDescription("Duration of storefront API requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	t.productQueryCounter, err = meter.Int64Counter(
		"storefront_product_queries_total",
		metric.WithDescription("Total number of catalog queries by operation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create product query counter: %w", err)
	}

	t.cartOperationCounter, err = meter.Int64Counter(
		"storefront_cart_operations_total",
		metric.WithDescription("Total number of cart API operations by operation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart operation counter: %w", err)
	}

	t.eventRetrievalCounter, err = meter.Int64Counter(
		"storefront_cart_events_retrieved_total",
		metric.WithDescription("Total number of cart events delivered to pollers"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event retrieval counter: %w", err)
	}

	slog.Info("Storefront API telemetry initialized successfully")
	return t, nil
}

func (t *APITelemetry) baseAttributes(m RequestMetrics) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("method", m.Method),
		attribute.String("endpoint", m.Endpoint),
		attribute.Int("status_code", m.StatusCode),
	}
	if m.ClientIPType != "" {
		attrs = append(attrs, attribute.String("client_ip_type", m.ClientIPType))
	}
	return attrs
}

// RegisterRequestReceived records a successful API request
func (t *APITelemetry) RegisterRequestReceived(ctx context.Context, m RequestMetrics) {
	t.requestCounter.Add(ctx, 1, metric.WithAttributes(t.baseAttributes(m)...))
	t.recordEndpointSpecificMetrics(ctx, m)

	slog.Debug("Recorded successful API request",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status_code", m.StatusCode,
		"client_ip", m.ClientIP,
		"result_count", m.ResultCount,
		"duration_ms", m.Duration.Milliseconds(),
	)
}

// RegisterRequestError records a failed API request
func (t *APITelemetry) RegisterRequestError(ctx context.Context, m RequestMetrics) {
	attrs := append(t.baseAttributes(m), attribute.String("error_type", categorizeError(m.ErrorMessage)))
	t.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	slog.Debug("Recorded API request error",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status_code", m.StatusCode,
		"client_ip", m.ClientIP,
		"error", m.ErrorMessage,
	)
}

// RegisterRequestDuration records the duration of an API request
func (t *APITelemetry) RegisterRequestDuration(ctx context.Context, m RequestMetrics) {
	t.durationHistogram.Record(ctx, m.Duration.Seconds(), metric.WithAttributes(t.baseAttributes(m)...))
}

func (t *APITelemetry) recordEndpointSpecificMetrics(ctx context.Context, m RequestMetrics) {
	key := m.Method + " " + m.Endpoint

	if operation, ok := productOperations[key]; ok {
		t.productQueryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
		return
	}
	if operation, ok := cartOperations[key]; ok {
		t.cartOperationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
		return
	}
	if m.Endpoint == eventsEndpoint && m.EventCount > 0 {
		t.eventRetrievalCounter.Add(ctx, int64(m.EventCount))
	}
}

// categorizeError groups error messages into a few low-cardinality labels
func categorizeError(errorMessage string) string {
	if errorMessage == "" {
		return "unknown"
	}

	message := strings.ToLower(errorMessage)
	switch {
	case strings.Contains(message, "not found"):
		return "not_found"
	case strings.Contains(message, "unprocessable"), strings.Contains(message, "invalid"):
		return "invalid_request"
	case strings.Contains(message, "unauthorized"):
		return "unauthorized"
	case strings.Contains(message, "forbidden"):
		return "forbidden"
	case strings.Contains(message, "timeout"):
		return "timeout"
	case strings.Contains(message, "unavailable"):
		return "unavailable"
	case strings.Contains(message, "internal"):
		return "internal_error"
	case strings.Contains(message, "bad request"):
		return "bad_request"
	case strings.Contains(message, "conflict"):
		return "conflict"
	default:
		return "other"
	}
}

var privateNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(ranges ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(ranges))
	for _, r := range ranges {
		_, network, err := net.ParseCIDR(r)
		if err != nil {
			panic(err)
		}
		networks = append(networks, network)
	}
	return networks
}

// NormalizeClientIP categorizes client IPs to control cardinality
func NormalizeClientIP(clientIP string) string {
	if clientIP == "" {
		return "unknown"
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		return "invalid"
	}
	if ip.IsLoopback() {
		return "localhost"
	}
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return "internal"
		}
	}
	return "external"
}
