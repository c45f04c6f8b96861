package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"storefront-engine/internal/models"
)

// APIKeyHeader carries the admin API key
const APIKeyHeader = "X-API-Key"

// AdminAuthMiddleware returns middleware that admits requests carrying one of keys.
// With no keys configured every request is rejected.
func AdminAuthMiddleware(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				slog.Warn("Admin authentication failed: missing API key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Admin API key required", nil)
				return
			}

			if !isValidAPIKey(apiKey, keys) {
				slog.Warn("Admin authentication failed: invalid API key", "remote_addr", r.RemoteAddr)
				writeErrorResponse(w, http.StatusForbidden, "forbidden", "Admin access required", nil)
				return
			}

			slog.Debug("Admin authentication successful", "remote_addr", r.RemoteAddr)
			next.ServeHTTP(w, r)
		})
	}
}

func isValidAPIKey(apiKey string, keys []string) bool {
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return true
		}
	}
	return false
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
