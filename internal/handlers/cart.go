package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"storefront-engine/internal/cart"
	"storefront-engine/internal/models"
)

// maxImportBytes bounds the body of POST /v1/cart/import
const maxImportBytes = 1 << 20

// CartHandler exposes the cart operations
type CartHandler struct {
	cart *cart.Cart
}

// NewCartHandler creates a new cart handler
func NewCartHandler(c *cart.Cart) *CartHandler {
	return &CartHandler{cart: c}
}

// GetCart handles GET /v1/cart - priced line items
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	lines := h.cart.GetCartItems(r.Context())
	writeJSONResponse(w, http.StatusOK, models.CartItemsResponse{
		Items:     lines,
		ItemCount: h.cart.ItemCount(),
	})
}

// GetSummary handles GET /v1/cart/summary
func (h *CartHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.cart.GetCartSummary(r.Context()))
}

// AddItem handles POST /v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req models.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}
	if req.ProductID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Product ID is required", []models.ErrorDetail{
			{Field: "productId", Issue: "cannot be empty"},
		})
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	item, err := h.cart.AddItem(r.Context(), req.ProductID, quantity)
	h.respond(w, r, http.StatusCreated, item, err)
}

// UpdateItem handles PATCH /v1/cart/items/{productId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	var req models.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}
	if req.Quantity == nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Quantity is required", []models.ErrorDetail{
			{Field: "quantity", Issue: "is required"},
		})
		return
	}

	err := h.cart.UpdateItemQuantity(r.Context(), productID, *req.Quantity)
	h.respond(w, r, http.StatusOK, nil, err)
}

// RemoveItem handles DELETE /v1/cart/items/{productId}[?quantity=n]
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	var quantity *int
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid quantity", []models.ErrorDetail{
				{Field: "quantity", Issue: "must be an integer"},
			})
			return
		}
		quantity = &parsed
	}

	removed, err := h.cart.RemoveItem(r.Context(), productID, quantity)
	if err == nil && !removed {
		writeErrorResponse(w, http.StatusNotFound, "item_not_found", "Item not in cart: "+productID, nil)
		return
	}
	h.respond(w, r, http.StatusOK, nil, err)
}

// MergeCart handles POST /v1/cart/merge
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	var req models.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	result, err := h.cart.MergeCart(r.Context(), req.Items)
	h.respond(w, r, http.StatusOK, result, err)
}

// ExportCart handles GET /v1/cart/export
func (h *CartHandler) ExportCart(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.cart.ExportCart())
}

// ImportCart handles POST /v1/cart/import. The body is an exported cart.
func (h *CartHandler) ImportCart(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Could not read request body", nil)
		return
	}

	err = h.cart.ImportCart(r.Context(), data)
	h.respond(w, r, http.StatusOK, nil, err)
}

// ValidateCart handles POST /v1/cart/validate
func (h *CartHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	report, err := h.cart.Validate(r.Context())
	h.respond(w, r, http.StatusOK, report, err)
}

// ClearCart handles DELETE /v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	err := h.cart.ClearCart(r.Context())
	h.respond(w, r, http.StatusOK, nil, err)
}

// respond writes the outcome of a mutation. A persistence failure means the
// change was applied, so it is reported as a warning with the success status.
func (h *CartHandler) respond(w http.ResponseWriter, r *http.Request, status int, result any, err error) {
	response := models.CartResponse{Result: result}

	if err != nil {
		if !cart.IsPersistenceError(err) {
			writeCartError(w, r, err)
			return
		}
		slog.Warn("Cart change applied but not saved", "error", err, "path", r.URL.Path)
		response.Warning = "Cart changes could not be saved and may be lost on restart"
	}

	response.Summary = h.cart.GetCartSummary(r.Context())
	writeJSONResponse(w, status, response)
}
