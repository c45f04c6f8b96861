package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"storefront-engine/internal/events"
	"storefront-engine/internal/models"
	"storefront-engine/internal/telemetry"
)

// Event polling bounds
const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
	maxWaitSeconds    = 60
)

// EventsHandler serves the cart event log
type EventsHandler struct {
	bus    *events.Bus
	logger *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(bus *events.Bus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		bus:    bus,
		logger: logger,
	}
}

// GetEvents handles GET /v1/cart/events?offset=&limit=&wait=
func (h *EventsHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "offset parameter is required", nil)
		return
	}
	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil || offset < 0 {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid offset parameter", nil)
		return
	}

	limit := defaultEventLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxEventLimit {
			limit = parsed
		}
	}

	waitSeconds := 0
	if waitStr := r.URL.Query().Get("wait"); waitStr != "" {
		if parsed, err := strconv.Atoi(waitStr); err == nil && parsed >= 0 && parsed <= maxWaitSeconds {
			waitSeconds = parsed
		}
	}

	h.logger.Debug("Events request received",
		"offset", offset,
		"limit", limit,
		"wait", waitSeconds,
		"remote_addr", r.RemoteAddr)

	batch, nextOffset, hasMore := h.bus.Since(offset, limit)

	if len(batch) == 0 && waitSeconds > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(waitSeconds)*time.Second)
		err := h.bus.Wait(ctx, offset)
		cancel()

		switch {
		case err == nil:
			batch, nextOffset, hasMore = h.bus.Since(offset, limit)
		case r.Context().Err() != nil:
			h.logger.Debug("Client disconnected during long polling", "offset", offset)
			return
		case !errors.Is(err, context.DeadlineExceeded):
			h.logger.Warn("Long polling ended unexpectedly", "offset", offset, "error", err)
		}
	}

	telemetry.SetEventCount(r.Context(), len(batch))
	writeJSONResponse(w, http.StatusOK, models.EventsResponse{
		Events:     batch,
		NextOffset: nextOffset,
		HasMore:    hasMore,
		Count:      len(batch),
	})
}
