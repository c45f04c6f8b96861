package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"storefront-engine/internal/models"
	"storefront-engine/internal/storage"
)

// errRecordMissing marks a cart that was never saved
var errRecordMissing = errors.New("cart record missing")

// readRecord loads the persisted cart. A record that cannot be decoded is
// reported as a *storage.StorageCorruptionError.
func (c *Cart) readRecord(ctx context.Context) (*models.CartRecord, error) {
	entry, err := c.storage.Get(ctx, storage.CartKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errRecordMissing
	}
	if err != nil {
		return nil, err
	}

	var record models.CartRecord
	if err := json.Unmarshal(entry.Value, &record); err != nil {
		return nil, &storage.StorageCorruptionError{Key: storage.CartKey, Err: err}
	}
	return &record, nil
}

// persistLocked writes the current items. Callers hold c.mu.
func (c *Cart) persistLocked(ctx context.Context) error {
	record := models.CartRecord{
		Items:   slices.Clone(c.items),
		SavedAt: c.now().UTC(),
	}
	if record.Items == nil {
		record.Items = []models.CartItem{}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return c.persistFailed(fmt.Errorf("failed to encode cart: %w", err))
	}
	if err := c.storage.Set(ctx, storage.CartKey, data, c.maxAge); err != nil {
		return c.persistFailed(err)
	}

	c.logger.Debug("Cart persisted", "items", len(record.Items))
	return nil
}

func (c *Cart) persistFailed(err error) error {
	c.metrics.IncPersistFailure()
	c.logger.Error("Failed to persist cart", "key", storage.CartKey, "error", err)
	return &PersistenceError{Err: err}
}

// Persist writes the current cart state; use it to retry after a PersistenceError
func (c *Cart) Persist(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked(ctx)
}
