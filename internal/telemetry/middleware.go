package telemetry

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// UnmatchedEndpoint labels requests that matched no route
const UnmatchedEndpoint = "unmatched"

// Middleware wraps HTTP handlers to collect API telemetry
type Middleware struct {
	telemetry *APITelemetry
	now       func() time.Time
}

// NewMiddleware creates the telemetry middleware
func NewMiddleware(telemetry *APITelemetry) *Middleware {
	return &Middleware{telemetry: telemetry, now: time.Now}
}

// Handler returns the mux middleware function
func (tm *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := tm.now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		counts := &requestCounts{}
		r = r.WithContext(context.WithValue(r.Context(), countsKey{}, counts))

		next.ServeHTTP(wrapper, r)

		clientIP := getClientIP(r)
		m := RequestMetrics{
			Method:       r.Method,
			Endpoint:     endpointFromRequest(r),
			StatusCode:   wrapper.statusCode,
			Duration:     tm.now().Sub(start),
			ClientIP:     clientIP,
			ClientIPType: NormalizeClientIP(clientIP),
			ResultCount:  counts.results,
			EventCount:   counts.events,
		}

		ctx := r.Context()
		if wrapper.statusCode >= 400 {
			m.ErrorMessage = http.StatusText(wrapper.statusCode)
			tm.telemetry.RegisterRequestError(ctx, m)
		} else {
			tm.telemetry.RegisterRequestReceived(ctx, m)
		}
		tm.telemetry.RegisterRequestDuration(ctx, m)
	})
}

// responseWriterWrapper captures the status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(data []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(data)
}

// endpointFromRequest returns the matched route template
func endpointFromRequest(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return UnmatchedEndpoint
	}
	template, err := route.GetPathTemplate()
	if err != nil {
		return UnmatchedEndpoint
	}
	return template
}

// getClientIP extracts the client IP address, preferring proxy headers
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type countsKey struct{}

// requestCounts carries business counts from handlers back to the middleware
type requestCounts struct {
	results int
	events  int
}

// SetResultCount records how many products a catalog request returned
func SetResultCount(ctx context.Context, count int) {
	if counts, ok := ctx.Value(countsKey{}).(*requestCounts); ok {
		counts.results = count
	}
}

// SetEventCount records how many events a poll delivered
func SetEventCount(ctx context.Context, count int) {
	if counts, ok := ctx.Value(countsKey{}).(*requestCounts); ok {
		counts.events = count
	}
}
