package cart

import (
	"context"
	"math"

	"storefront-engine/internal/models"
)

// GetCartItems joins every line with the live catalog. Lines whose product is
// gone, or cannot be resolved, are priced from their snapshot.
func (c *Cart) GetCartItems(ctx context.Context) []models.CartLine {
	items := c.Items()
	lines := make([]models.CartLine, 0, len(items))

	for _, item := range items {
		line := models.CartLine{CartItem: item}

		product, found, err := c.catalog.GetProductByID(ctx, item.ProductID)
		if err != nil {
			c.logger.Debug("Pricing cart line from snapshot", "product_id", item.ProductID, "error", err)
		}
		if err == nil && found {
			line.Name = product.Name
			line.Category = product.Category
			line.Price = product.Price
			line.Stock = product.Stock
			line.Available = product.InStock
			if len(product.Images) > 0 {
				line.Image = product.Images[0]
			}
		} else {
			snapshot := item.SnapshotProduct
			line.Name = snapshot.Name
			line.Category = snapshot.Category
			line.Price = snapshot.Price
			line.Image = snapshot.Image
			line.Stock = 0
			line.Available = false
		}

		line.Subtotal = line.Price * float64(item.Quantity)
		lines = append(lines, line)
	}
	return lines
}

// GetCartSummary aggregates the priced lines. Totals are rounded to cents once,
// after summing. An empty cart has no shipping cost.
func (c *Cart) GetCartSummary(ctx context.Context) models.CartSummary {
	lines := c.GetCartItems(ctx)
	return Summarize(lines)
}

// Summarize computes totals for already priced lines
func Summarize(lines []models.CartLine) models.CartSummary {
	summary := models.CartSummary{
		Items:                 lines,
		UniqueItems:           len(lines),
		TaxRate:               models.TaxRate,
		FreeShippingThreshold: models.FreeShippingThreshold,
	}

	var subtotal float64
	for _, line := range lines {
		summary.ItemCount += line.Quantity
		subtotal += line.Subtotal
	}

	tax := subtotal * models.TaxRate
	shipping := models.ShippingCost
	if len(lines) == 0 || round2(subtotal) >= models.FreeShippingThreshold {
		shipping = 0
	}

	summary.Subtotal = round2(subtotal)
	summary.TaxAmount = round2(tax)
	summary.ShippingCost = shipping
	summary.Total = round2(subtotal + tax + shipping)
	summary.FreeShippingEligible = summary.Subtotal >= models.FreeShippingThreshold
	summary.FreeShippingRemaining = round2(math.Max(0, models.FreeShippingThreshold-summary.Subtotal))

	for i := range summary.Items {
		summary.Items[i].Subtotal = round2(summary.Items[i].Subtotal)
	}
	return summary
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
