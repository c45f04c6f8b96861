package cart

import (
	"context"
	"fmt"
	"time"

	"storefront-engine/internal/models"
)

// ProductLookup resolves live catalog products. found is false for unknown ids;
// err is reserved for an unavailable catalog.
type ProductLookup interface {
	GetProductByID(ctx context.Context, id string) (product models.Product, found bool, err error)
}

// lookup is the catalog state of one product id
type lookup struct {
	product models.Product
	found   bool
}

// resolveProducts looks up each distinct product id of items. Call it without
// holding the cart lock: a lookup may load the catalog.
func resolveProducts(ctx context.Context, catalog ProductLookup, items []models.CartItem) (map[string]lookup, error) {
	products := make(map[string]lookup, len(items))
	for _, item := range items {
		if _, done := products[item.ProductID]; done {
			continue
		}
		product, found, err := catalog.GetProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve product %s: %w", item.ProductID, err)
		}
		products[item.ProductID] = lookup{product: product, found: found}
	}
	return products, nil
}

// reconcile checks every line against the resolved products. Lines for deleted
// products go to InvalidItems and lines for out-of-stock products to
// OutOfStockItems; both are dropped. Lines above live stock are clamped and kept.
// Lines missing from products are kept as they are. items is not modified.
func reconcile(items []models.CartItem, products map[string]lookup) ([]models.CartItem, models.ValidationReport) {
	report := models.ValidationReport{
		IsValid:         true,
		InvalidItems:    []models.CartItem{},
		OutOfStockItems: []models.CartItem{},
		UpdatedItems:    []models.QuantityChange{},
	}
	kept := make([]models.CartItem, 0, len(items))

	for _, item := range items {
		resolved, ok := products[item.ProductID]
		switch {
		case !ok:
			kept = append(kept, item)
		case !resolved.found:
			report.InvalidItems = append(report.InvalidItems, item)
		case !resolved.product.InStock:
			report.OutOfStockItems = append(report.OutOfStockItems, item)
		case item.Quantity > resolved.product.Stock:
			report.UpdatedItems = append(report.UpdatedItems, models.QuantityChange{
				ProductID:   item.ProductID,
				OldQuantity: item.Quantity,
				NewQuantity: resolved.product.Stock,
			})
			item.Quantity = resolved.product.Stock
			kept = append(kept, item)
		default:
			kept = append(kept, item)
		}
	}

	report.IsValid = len(report.InvalidItems) == 0 && len(report.OutOfStockItems) == 0
	return kept, report
}

// fitToStock enforces the stock bound on lines whose product is known: lines
// above stock are clamped, lines of sold-out products are dropped. Unknown
// products are left for Validate. items is not modified.
func fitToStock(items []models.CartItem, products map[string]lookup, now time.Time) ([]models.CartItem, []models.QuantityChange, []string) {
	kept := make([]models.CartItem, 0, len(items))
	var clamped []models.QuantityChange
	var dropped []string

	for _, item := range items {
		resolved, ok := products[item.ProductID]
		switch {
		case !ok || !resolved.found:
			kept = append(kept, item)
		case !resolved.product.InStock:
			dropped = append(dropped, item.ProductID)
		case item.Quantity > resolved.product.Stock:
			clamped = append(clamped, models.QuantityChange{
				ProductID:   item.ProductID,
				OldQuantity: item.Quantity,
				NewQuantity: resolved.product.Stock,
			})
			item.Quantity = resolved.product.Stock
			item.UpdatedAt = now
			kept = append(kept, item)
		default:
			kept = append(kept, item)
		}
	}
	return kept, clamped, dropped
}

// sanitize enforces the line invariants on records read from storage: unique
// non-empty ids and quantities within 1..MaxQuantity. It reports whether anything changed.
func sanitize(items []models.CartItem) ([]models.CartItem, bool) {
	seen := make(map[string]struct{}, len(items))
	clean := make([]models.CartItem, 0, len(items))
	changed := false

	for _, item := range items {
		if item.ProductID == "" || item.Quantity < 1 {
			changed = true
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			changed = true
			continue
		}
		seen[item.ProductID] = struct{}{}
		if item.Quantity > models.MaxQuantity {
			item.Quantity = models.MaxQuantity
			changed = true
		}
		clean = append(clean, item)
	}
	return clean, changed
}
