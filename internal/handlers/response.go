package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"storefront-engine/internal/cart"
	"storefront-engine/internal/models"
	"storefront-engine/internal/query"
)

// writeJSONResponse is a helper function to write JSON responses
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	writeJSONResponse(w, statusCode, models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// writeCatalogUnavailable reports a catalog that could not be loaded from any source
func writeCatalogUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Catalog unavailable", "error", err, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	writeErrorResponse(w, http.StatusServiceUnavailable, "catalog_unavailable", "Product catalog is unavailable", nil)
}

// writeParamError reports an unparsable query parameter
func writeParamError(w http.ResponseWriter, err error) {
	var paramErr *query.ParamError
	if errors.As(err, &paramErr) {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid query parameter", []models.ErrorDetail{
			{Field: paramErr.Field, Issue: paramErr.Err.Error()},
		})
		return
	}
	writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
}

// cartErrorStatus maps cart errors to status codes. Errors outside the cart
// taxonomy come from the catalog lookup.
func cartErrorStatus(err error) int {
	switch cart.ErrorType(err) {
	case "product_not_found", "item_not_found":
		return http.StatusNotFound
	case "out_of_stock", "stock_exceeded", "quantity_limit":
		return http.StatusConflict
	case "invalid_quantity", "invalid_cart_data":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

// writeCartError writes a rejected cart intent
func writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	status := cartErrorStatus(err)
	code := cart.ErrorType(err)
	if status == http.StatusServiceUnavailable {
		writeCatalogUnavailable(w, r, err)
		return
	}

	slog.Debug("Cart request rejected", "code", code, "error", err, "remote_addr", r.RemoteAddr)
	writeErrorResponse(w, status, code, err.Error(), cartErrorDetails(err))
}

func cartErrorDetails(err error) []models.ErrorDetail {
	var (
		stock *cart.StockExceededError
		limit *cart.QuantityLimitError
	)
	switch {
	case errors.As(err, &stock):
		return []models.ErrorDetail{{Field: "quantity", Issue: "only " + strconv.Itoa(stock.Available) + " in stock"}}
	case errors.As(err, &limit):
		return []models.ErrorDetail{{Field: "quantity", Issue: "at most " + strconv.Itoa(limit.Max) + " per item"}}
	}
	return nil
}

// optionalPositiveInt parses an optional positive integer query parameter
func optionalPositiveInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, &query.ParamError{Field: name, Value: raw, Err: errors.New("must be a positive integer")}
	}
	return value, nil
}
