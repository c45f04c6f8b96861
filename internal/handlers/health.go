package handlers

import (
	"net/http"

	"storefront-engine/internal/cart"
	"storefront-engine/internal/catalog"
	"storefront-engine/internal/models"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store *catalog.Store
	cart  *cart.Cart
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store *catalog.Store, c *cart.Cart) *HealthHandler {
	return &HealthHandler{store: store, cart: c}
}

// Health handles GET /health. A catalog that never loaded is reported as
// degraded; the cart is usable either way.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.store.Status()
	response := models.HealthResponse{
		Status:        "healthy",
		CatalogLoaded: status.Loaded,
		CatalogValid:  status.Valid,
		CartItems:     h.cart.ItemCount(),
	}
	if issue := h.cart.LoadIssue(); issue != nil {
		response.CartLoadIssue = issue.Error()
	}

	code := http.StatusOK
	if !status.Loaded {
		response.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, response)
}
