package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"storefront-engine/internal/events"
	"storefront-engine/internal/models"
)

// ExportCart returns the line items in the interchange format
func (c *Cart) ExportCart() models.CartExport {
	return models.CartExport{
		Items:      c.Items(),
		ExportedAt: c.now().UTC(),
	}
}

// ImportCart replaces every line with the lines of an exported cart. On any
// shape error it returns *InvalidCartDataError and the cart is unchanged.
// Imported lines are fitted to live stock like merged ones.
func (c *Cart) ImportCart(ctx context.Context, data []byte) error {
	items, err := c.decodeImport(data)
	if err != nil {
		return c.reject("import", err)
	}

	products := c.resolveForFit(ctx, "import", items)
	items, clamped, dropped := fitToStock(items, products, c.now().UTC())

	c.mu.Lock()
	c.items = items
	persistErr := c.persistLocked(ctx)
	c.mu.Unlock()

	c.logger.Info("Cart imported", "items", len(items), "clamped", len(clamped), "dropped", len(dropped))
	return c.committed("import", events.KindImported, events.ImportedPayload{
		Items:   len(items),
		Clamped: clamped,
		Dropped: dropped,
	}, persistErr)
}

func (c *Cart) decodeImport(data []byte) ([]models.CartItem, error) {
	var document map[string]json.RawMessage
	if err := json.Unmarshal(data, &document); err != nil || document == nil {
		return nil, &InvalidCartDataError{Reason: "cart data must be a JSON object", Err: err}
	}

	rawItems, ok := document["items"]
	if !ok {
		return nil, &InvalidCartDataError{Reason: "missing items"}
	}
	var records []map[string]any
	if err := json.Unmarshal(rawItems, &records); err != nil || records == nil {
		return nil, &InvalidCartDataError{Reason: "items must be an array of objects", Err: err}
	}

	var items []models.CartItem
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, &InvalidCartDataError{Reason: "items have invalid fields", Err: err}
	}

	seen := make(map[string]struct{}, len(records))
	now := c.now().UTC()
	for i, record := range records {
		if err := validateImportRecord(record, i); err != nil {
			return nil, err
		}
		item := &items[i]
		if _, dup := seen[item.ProductID]; dup {
			return nil, &InvalidCartDataError{Reason: fmt.Sprintf("duplicate productId %q", item.ProductID)}
		}
		seen[item.ProductID] = struct{}{}

		if item.AddedAt.IsZero() {
			item.AddedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.AddedAt
		}
	}

	if items == nil {
		items = []models.CartItem{}
	}
	return items, nil
}

// validateImportRecord checks the raw fields json.Unmarshal would coerce or ignore
func validateImportRecord(record map[string]any, index int) error {
	if record == nil {
		return &InvalidCartDataError{Reason: fmt.Sprintf("item %d is not an object", index)}
	}

	productID, ok := record["productId"].(string)
	if !ok || productID == "" {
		return &InvalidCartDataError{Reason: fmt.Sprintf("item %d has no productId", index)}
	}

	quantity, ok := record["quantity"].(float64)
	if !ok || quantity != math.Trunc(quantity) {
		return &InvalidCartDataError{Reason: fmt.Sprintf("item %d quantity must be an integer", index)}
	}
	if quantity < 1 || quantity > models.MaxQuantity {
		return &InvalidCartDataError{Reason: fmt.Sprintf("item %d quantity must be between 1 and %d", index, models.MaxQuantity)}
	}
	return nil
}
