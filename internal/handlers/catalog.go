package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"storefront-engine/internal/catalog"
	"storefront-engine/internal/models"
	"storefront-engine/internal/query"
	"storefront-engine/internal/telemetry"
)

// CatalogHandler serves catalog queries
type CatalogHandler struct {
	store *catalog.Store
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(store *catalog.Store) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// ListProducts handles GET /v1/products - search, filter, sort and paginate
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params, err := query.ParseQueryParams(r.URL.Query())
	if err != nil {
		writeParamError(w, err)
		return
	}

	result, err := h.store.AdvancedSearch(r.Context(), params)
	if err != nil {
		writeCatalogUnavailable(w, r, err)
		return
	}

	slog.Debug("Products searched",
		"query", params.Query,
		"categories", params.Categories,
		"page", result.Page,
		"total", result.Total,
		"remote_addr", r.RemoteAddr)

	telemetry.SetResultCount(r.Context(), len(result.Items))
	writeJSONResponse(w, http.StatusOK, result)
}

// FeaturedProducts handles GET /v1/products/featured
func (h *CatalogHandler) FeaturedProducts(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, h.store.GetFeaturedProducts)
}

// NewProducts handles GET /v1/products/new
func (h *CatalogHandler) NewProducts(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, h.store.GetNewProducts)
}

// SaleProducts handles GET /v1/products/sale
func (h *CatalogHandler) SaleProducts(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, h.store.GetSaleProducts)
}

func (h *CatalogHandler) listing(w http.ResponseWriter, r *http.Request, list func(context.Context, int) ([]models.Product, error)) {
	limit, err := optionalPositiveInt(r, "limit")
	if err != nil {
		writeParamError(w, err)
		return
	}

	products, err := list(r.Context(), limit)
	if err != nil {
		writeCatalogUnavailable(w, r, err)
		return
	}

	telemetry.SetResultCount(r.Context(), len(products))
	writeJSONResponse(w, http.StatusOK, models.ProductListResponse{Items: products, Count: len(products)})
}

// GetProduct handles GET /v1/products/{productId}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	product, found, err := h.store.GetProductByID(r.Context(), productID)
	if err != nil {
		writeCatalogUnavailable(w, r, err)
		return
	}
	if !found {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Product not found: %s", productID), nil)
		return
	}

	writeJSONResponse(w, http.StatusOK, product)
}

// RelatedProducts handles GET /v1/products/{productId}/related
func (h *CatalogHandler) RelatedProducts(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	limit, err := optionalPositiveInt(r, "limit")
	if err != nil {
		writeParamError(w, err)
		return
	}

	_, found, err := h.store.GetProductByID(r.Context(), productID)
	if err != nil {
		writeCatalogUnavailable(w, r, err)
		return
	}
	if !found {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Product not found: %s", productID), nil)
		return
	}

	products, err := h.store.GetRelatedProducts(r.Context(), productID, limit)
	if err != nil {
		writeCatalogUnavailable(w, r, err)
		return
	}

	telemetry.SetResultCount(r.Context(), len(products))
	writeJSONResponse(w, http.StatusOK, models.ProductListResponse{Items: products, Count: len(products)})
}

// ListCategories handles GET /v1/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.GetCategories(r.Context())
	if err != nil {
		writeCatalogUnavailable(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, models.CategoryListResponse{Items: categories, Count: len(categories)})
}

// CategoryProducts handles GET /v1/categories/{categoryId}/products
func (h *CatalogHandler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	categoryID := mux.Vars(r)["categoryId"]

	products, err := h.store.GetProductsByCategory(r.Context(), categoryID)
	if err != nil {
		writeCatalogUnavailable(w, r, err)
		return
	}

	telemetry.SetResultCount(r.Context(), len(products))
	writeJSONResponse(w, http.StatusOK, models.ProductListResponse{Items: products, Count: len(products)})
}
