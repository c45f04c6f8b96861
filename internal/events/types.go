// Package events carries cart change notifications to in-process subscribers
// and to HTTP clients polling the event log.
package events

import (
	"time"

	"storefront-engine/internal/models"
)

// Kind is the closed set of cart event variants
type Kind string

const (
	KindAdded            Kind = "added"
	KindRemoved          Kind = "removed"
	KindUpdated          Kind = "updated"
	KindCleared          Kind = "cleared"
	KindMerged           Kind = "merged"
	KindImported         Kind = "imported"
	KindValidationReport Kind = "validation_report"
)

// Event is one published notification. Payload holds the kind's payload type.
type Event struct {
	ID        string    `json:"id"`
	Offset    int64     `json:"offset"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// AddedPayload is published after addItem
type AddedPayload struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Item      models.CartItem `json:"item"`
}

// RemovedPayload is published after a full or partial removal
type RemovedPayload struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Remaining int    `json:"remaining"`
}

// UpdatedPayload is published after updateItemQuantity
type UpdatedPayload struct {
	ProductID   string `json:"productId"`
	OldQuantity int    `json:"oldQuantity"`
	NewQuantity int    `json:"newQuantity"`
}

// ClearedPayload is published after clearCart
type ClearedPayload struct {
	RemovedItems int `json:"removedItems"`
}

// MergedPayload lists the lines inserted and raised by mergeCart
type MergedPayload struct {
	Added   []string                `json:"added"`
	Updated []string                `json:"updated"`
	Clamped []models.QuantityChange `json:"clamped,omitempty"`
	Dropped []string                `json:"dropped,omitempty"`
	Items   int                     `json:"items"`
}

// ImportedPayload is published after a successful importCart. Clamped and
// Dropped list lines adjusted to live stock.
type ImportedPayload struct {
	Items   int                     `json:"items"`
	Clamped []models.QuantityChange `json:"clamped,omitempty"`
	Dropped []string                `json:"dropped,omitempty"`
}

// ValidationPayload wraps the reconciliation report
type ValidationPayload struct {
	Report models.ValidationReport `json:"report"`
}
