package handlers

import (
	"log/slog"
	"net/http"

	"storefront-engine/internal/catalog"
	"storefront-engine/internal/storage"
)

// AdminHandler handles admin-only endpoints
type AdminHandler struct {
	store   *catalog.Store
	storage storage.Storage
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store *catalog.Store, backend storage.Storage) *AdminHandler {
	return &AdminHandler{
		store:   store,
		storage: backend,
	}
}

// RefreshCatalog handles POST /v1/admin/catalog/refresh - refetch the feed now
func (h *AdminHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	slog.Info("Admin catalog refresh requested", "remote_addr", r.RemoteAddr)

	if _, err := h.store.Refresh(r.Context()); err != nil {
		writeCatalogUnavailable(w, r, err)
		return
	}

	status := h.store.Status()
	slog.Info("Admin catalog refresh completed",
		"products", status.Products,
		"loaded_from", status.LoadedFrom,
		"remote_addr", r.RemoteAddr)
	writeJSONResponse(w, http.StatusOK, status)
}

// CatalogStatus handles GET /v1/admin/catalog/status
func (h *AdminHandler) CatalogStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.store.Status())
}

// StorageStats handles GET /v1/admin/storage/stats
func (h *AdminHandler) StorageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.storage.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to read storage stats", "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to read storage stats", nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, stats)
}
