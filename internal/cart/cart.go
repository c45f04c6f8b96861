// Package cart implements the persisted shopping cart and its reconciliation
// against the live catalog.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"storefront-engine/internal/events"
	"storefront-engine/internal/metrics"
	"storefront-engine/internal/models"
	"storefront-engine/internal/storage"
)

// DefaultMaxAge is how long a saved cart survives without being written again
const DefaultMaxAge = 30 * 24 * time.Hour

// Cart is an order-preserving set of line items keyed by product id.
// Every mutation is persisted before it returns. Cart is safe for concurrent use.
type Cart struct {
	mu      sync.Mutex
	items   []models.CartItem
	catalog ProductLookup
	storage storage.Storage
	bus     *events.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	maxAge  time.Duration

	loadIssue error
}

// Option configures a Cart
type Option func(*Cart)

// WithBus publishes cart events on bus
func WithBus(bus *events.Bus) Option {
	return func(c *Cart) { c.bus = bus }
}

// WithMetrics records mutations on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cart) { c.metrics = m }
}

// WithLogger sets the cart logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cart) { c.logger = logger }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cart) { c.now = now }
}

// WithMaxAge sets the age after which a saved cart is discarded on load
func WithMaxAge(maxAge time.Duration) Option {
	return func(c *Cart) { c.maxAge = maxAge }
}

// Open loads the cart from store. A missing record yields an empty cart; a
// corrupted or expired record is discarded and the empty cart persisted.
// Loaded items are then reconciled against catalog.
func Open(ctx context.Context, catalog ProductLookup, store storage.Storage, opts ...Option) (*Cart, error) {
	c := &Cart{
		items:   []models.CartItem{},
		catalog: catalog,
		storage: store,
		logger:  slog.Default(),
		now:     time.Now,
		maxAge:  DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = events.NewBus(events.DefaultMaxEvents, c.logger)
	}

	record, err := c.readRecord(ctx)
	var corruption *storage.StorageCorruptionError
	switch {
	case errors.Is(err, errRecordMissing):
		c.logger.Debug("No saved cart found")
		return c, nil

	case errors.As(err, &corruption):
		c.logger.Warn("Saved cart is corrupted, resetting", "key", corruption.Key, "error", corruption.Err)
		c.loadIssue = err
		c.resetOnLoad(ctx)
		return c, nil

	case err != nil:
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	age := c.now().Sub(record.SavedAt)
	if record.SavedAt.IsZero() || age > c.maxAge {
		c.logger.Info("Saved cart expired, discarding",
			"saved_at", record.SavedAt,
			"max_age", c.maxAge.String(),
			"items", len(record.Items))
		c.resetOnLoad(ctx)
		return c, nil
	}

	items, changed := sanitize(record.Items)
	c.items = items
	c.metrics.SetCartItems(c.ItemCount())
	c.logger.Info("Cart loaded", "items", len(items))

	if len(items) > 0 {
		if _, err := c.Validate(ctx); err != nil && !IsPersistenceError(err) {
			c.logger.Warn("Cart could not be reconciled on load", "error", err)
		}
	}
	if changed {
		c.mu.Lock()
		_ = c.persistLocked(ctx)
		c.mu.Unlock()
	}
	return c, nil
}

func (c *Cart) resetOnLoad(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = []models.CartItem{}
	_ = c.persistLocked(ctx)
}

// LoadIssue returns the corruption found when the cart was opened, if any
func (c *Cart) LoadIssue() error {
	return c.loadIssue
}

// Subscribe registers handler for cart events and returns its unsubscribe function
func (c *Cart) Subscribe(handler events.Handler) func() {
	return c.bus.Subscribe(handler)
}

// Events returns the bus the cart publishes on
func (c *Cart) Events() *events.Bus {
	return c.bus
}

func (c *Cart) indexLocked(productID string) int {
	return slices.IndexFunc(c.items, func(item models.CartItem) bool {
		return item.ProductID == productID
	})
}

func (c *Cart) reject(operation string, err error) error {
	c.metrics.IncCartError(ErrorType(err))
	c.logger.Debug("Cart operation rejected", "operation", operation, "error", err)
	return err
}

// committed records a successful mutation and publishes its event. persistErr
// is returned unchanged so callers can surface it.
func (c *Cart) committed(operation string, kind events.Kind, payload any, persistErr error) error {
	c.metrics.IncCartMutation(operation)
	c.metrics.SetCartItems(c.ItemCount())
	c.bus.Publish(kind, payload)
	return persistErr
}

// AddItem adds quantity of productID, merging into an existing line
func (c *Cart) AddItem(ctx context.Context, productID string, quantity int) (models.CartItem, error) {
	if quantity < 1 {
		return models.CartItem{}, c.reject("add", &InvalidQuantityError{ProductID: productID, Quantity: quantity})
	}

	product, found, err := c.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return models.CartItem{}, fmt.Errorf("failed to resolve product %s: %w", productID, err)
	}
	if !found {
		return models.CartItem{}, c.reject("add", &ProductNotFoundError{ProductID: productID})
	}
	if !product.InStock {
		return models.CartItem{}, c.reject("add", &OutOfStockError{ProductID: productID})
	}

	c.mu.Lock()
	idx := c.indexLocked(productID)
	total := quantity
	if idx >= 0 {
		total += c.items[idx].Quantity
	}
	if total > product.Stock {
		c.mu.Unlock()
		return models.CartItem{}, c.reject("add", &StockExceededError{ProductID: productID, Requested: total, Available: product.Stock})
	}
	if total > models.MaxQuantity {
		c.mu.Unlock()
		return models.CartItem{}, c.reject("add", &QuantityLimitError{ProductID: productID, Requested: total, Max: models.MaxQuantity})
	}

	now := c.now().UTC()
	if idx >= 0 {
		c.items[idx].Quantity = total
		c.items[idx].UpdatedAt = now
	} else {
		c.items = append(c.items, models.CartItem{
			ProductID:       productID,
			Quantity:        quantity,
			AddedAt:         now,
			UpdatedAt:       now,
			SnapshotProduct: models.SnapshotOf(product),
		})
		idx = len(c.items) - 1
	}
	item := c.items[idx]
	persistErr := c.persistLocked(ctx)
	c.mu.Unlock()

	c.logger.Info("Item added to cart", "product_id", productID, "quantity", quantity, "line_quantity", total)
	return item, c.committed("add", events.KindAdded, events.AddedPayload{
		ProductID: productID,
		Quantity:  quantity,
		Item:      item,
	}, persistErr)
}

// RemoveItem removes quantity of productID, or the whole line when quantity is
// nil or at least the line quantity. It returns false when the product is not in the cart.
func (c *Cart) RemoveItem(ctx context.Context, productID string, quantity *int) (bool, error) {
	if quantity != nil && *quantity < 1 {
		return false, c.reject("remove", &InvalidQuantityError{ProductID: productID, Quantity: *quantity})
	}

	c.mu.Lock()
	idx := c.indexLocked(productID)
	if idx < 0 {
		c.mu.Unlock()
		return false, nil
	}

	current := c.items[idx].Quantity
	removed := current
	if quantity == nil || *quantity >= current {
		c.items = slices.Delete(c.items, idx, idx+1)
	} else {
		removed = *quantity
		c.items[idx].Quantity = current - removed
		c.items[idx].UpdatedAt = c.now().UTC()
	}
	persistErr := c.persistLocked(ctx)
	c.mu.Unlock()

	c.logger.Info("Item removed from cart", "product_id", productID, "quantity", removed, "remaining", current-removed)
	return true, c.committed("remove", events.KindRemoved, events.RemovedPayload{
		ProductID: productID,
		Quantity:  removed,
		Remaining: current - removed,
	}, persistErr)
}

// UpdateItemQuantity sets the line quantity of productID; 0 removes the line.
// The stock check is skipped when the product is no longer in the catalog.
func (c *Cart) UpdateItemQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return c.reject("update", &InvalidQuantityError{ProductID: productID, Quantity: quantity})
	}
	if !c.HasItem(productID) {
		return c.reject("update", &ItemNotFoundError{ProductID: productID})
	}
	if quantity == 0 {
		_, err := c.RemoveItem(ctx, productID, nil)
		return err
	}

	product, found, err := c.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to resolve product %s: %w", productID, err)
	}
	if found && quantity > product.Stock {
		return c.reject("update", &StockExceededError{ProductID: productID, Requested: quantity, Available: product.Stock})
	}
	if quantity > models.MaxQuantity {
		return c.reject("update", &QuantityLimitError{ProductID: productID, Requested: quantity, Max: models.MaxQuantity})
	}

	c.mu.Lock()
	idx := c.indexLocked(productID)
	if idx < 0 {
		c.mu.Unlock()
		return c.reject("update", &ItemNotFoundError{ProductID: productID})
	}
	old := c.items[idx].Quantity
	c.items[idx].Quantity = quantity
	c.items[idx].UpdatedAt = c.now().UTC()
	persistErr := c.persistLocked(ctx)
	c.mu.Unlock()

	c.logger.Info("Cart item quantity updated", "product_id", productID, "old_quantity", old, "new_quantity", quantity)
	return c.committed("update", events.KindUpdated, events.UpdatedPayload{
		ProductID:   productID,
		OldQuantity: old,
		NewQuantity: quantity,
	}, persistErr)
}

// MergeCart folds incoming lines into the cart. A product present on both
// sides keeps the larger quantity; lines with an empty id or quantity below 1
// are ignored and quantities are capped at MaxQuantity. Merged lines are then
// fitted to live stock: clamped when above it, dropped when sold out.
func (c *Cart) MergeCart(ctx context.Context, incoming []models.CartItem) (events.MergedPayload, error) {
	result := events.MergedPayload{Added: []string{}, Updated: []string{}}
	products := c.resolveForFit(ctx, "merge", incoming)

	c.mu.Lock()
	now := c.now().UTC()
	for _, item := range incoming {
		if item.ProductID == "" || item.Quantity < 1 {
			continue
		}
		quantity := min(item.Quantity, models.MaxQuantity)

		if idx := c.indexLocked(item.ProductID); idx >= 0 {
			if quantity > c.items[idx].Quantity {
				c.items[idx].Quantity = quantity
				c.items[idx].UpdatedAt = now
				result.Updated = append(result.Updated, item.ProductID)
			}
			continue
		}

		item.Quantity = quantity
		if item.AddedAt.IsZero() {
			item.AddedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.AddedAt
		}
		if item.SnapshotProduct.ID == "" {
			item.SnapshotProduct.ID = item.ProductID
		}
		c.items = append(c.items, item)
		result.Added = append(result.Added, item.ProductID)
	}

	touched := make(map[string]lookup, len(result.Added)+len(result.Updated))
	for _, id := range append(slices.Clone(result.Added), result.Updated...) {
		if resolved, ok := products[id]; ok {
			touched[id] = resolved
		}
	}
	c.items, result.Clamped, result.Dropped = fitToStock(c.items, touched, now)
	result.Added = slices.DeleteFunc(result.Added, func(id string) bool { return slices.Contains(result.Dropped, id) })
	result.Updated = slices.DeleteFunc(result.Updated, func(id string) bool { return slices.Contains(result.Dropped, id) })
	result.Items = len(c.items)
	persistErr := c.persistLocked(ctx)
	c.mu.Unlock()

	c.logger.Info("Cart merged",
		"added", len(result.Added),
		"updated", len(result.Updated),
		"clamped", len(result.Clamped),
		"dropped", len(result.Dropped),
		"items", result.Items)
	return result, c.committed("merge", events.KindMerged, result, persistErr)
}

// resolveForFit looks up products for stock fitting. An unavailable catalog
// skips fitting; Validate reconciles once the catalog is back.
func (c *Cart) resolveForFit(ctx context.Context, operation string, items []models.CartItem) map[string]lookup {
	products, err := resolveProducts(ctx, c.catalog, items)
	if err != nil {
		c.logger.Warn("Catalog unavailable, cart lines not checked against stock", "operation", operation, "error", err)
		return nil
	}
	return products
}

// ClearCart removes every line
func (c *Cart) ClearCart(ctx context.Context) error {
	c.mu.Lock()
	removed := len(c.items)
	c.items = []models.CartItem{}
	persistErr := c.persistLocked(ctx)
	c.mu.Unlock()

	c.logger.Info("Cart cleared", "removed_items", removed)
	return c.committed("clear", events.KindCleared, events.ClearedPayload{RemovedItems: removed}, persistErr)
}

// Validate reconciles the cart with the catalog and persists the result when
// anything changed. Products are resolved before the cart is locked; lines added
// in between are kept as they are. The report is published as an event.
func (c *Cart) Validate(ctx context.Context) (models.ValidationReport, error) {
	products, err := resolveProducts(ctx, c.catalog, c.Items())
	if err != nil {
		return models.ValidationReport{}, err
	}

	c.mu.Lock()
	kept, report := reconcile(c.items, products)

	changed := len(kept) != len(c.items) || len(report.UpdatedItems) > 0
	var persistErr error
	if changed {
		if len(report.UpdatedItems) > 0 {
			now := c.now().UTC()
			for i := range kept {
				for _, change := range report.UpdatedItems {
					if kept[i].ProductID == change.ProductID {
						kept[i].UpdatedAt = now
					}
				}
			}
		}
		c.items = kept
		persistErr = c.persistLocked(ctx)
	}
	c.mu.Unlock()

	if changed {
		c.logger.Info("Cart reconciled with catalog",
			"invalid_items", len(report.InvalidItems),
			"out_of_stock_items", len(report.OutOfStockItems),
			"updated_items", len(report.UpdatedItems))
	}
	return report, c.committed("validate", events.KindValidationReport, events.ValidationPayload{Report: report}, persistErr)
}

// Items returns a copy of the line items in cart order
func (c *Cart) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// ItemCount returns the total quantity across all lines
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, item := range c.items {
		count += item.Quantity
	}
	return count
}

// HasItem reports whether productID has a line in the cart
func (c *Cart) HasItem(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexLocked(productID) >= 0
}

// Quantity returns the line quantity of productID, 0 when absent
func (c *Cart) Quantity(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(productID); idx >= 0 {
		return c.items[idx].Quantity
	}
	return 0
}
