package models

import "time"

// MaxQuantity is the per-line quantity ceiling
const MaxQuantity = 10

// ProductSnapshot is a point-in-time copy of catalog fields taken when a line is added.
// It is the display fallback when the live catalog no longer contains the product.
type ProductSnapshot struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
	Stock    int     `json:"stock"`
}

// SnapshotOf copies the fields of p kept on a cart line
func SnapshotOf(p Product) ProductSnapshot {
	snapshot := ProductSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Price:    p.Price,
		Stock:    p.Stock,
	}
	if len(p.Images) > 0 {
		snapshot.Image = p.Images[0]
	}
	return snapshot
}

// CartItem is one line of the cart, unique by ProductID
type CartItem struct {
	ProductID       string          `json:"productId"`
	Quantity        int             `json:"quantity"`
	AddedAt         time.Time       `json:"addedAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	SnapshotProduct ProductSnapshot `json:"snapshotProduct"`
}

// CartRecord is the persisted cart blob
type CartRecord struct {
	Items   []CartItem `json:"items"`
	SavedAt time.Time  `json:"savedAt"`
}

// CartExport is the exportCart/importCart interchange format
type CartExport struct {
	Items      []CartItem `json:"items"`
	ExportedAt time.Time  `json:"exportedAt"`
}

// CartLine joins a cart item with the product used to price it
type CartLine struct {
	CartItem
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Stock     int     `json:"stock"`
	Available bool    `json:"available"` // false when priced from the snapshot
	Subtotal  float64 `json:"subtotal"`
}

// Cart pricing constants
const (
	TaxRate               = 0.08
	FreeShippingThreshold = 50.0
	ShippingCost          = 9.99
)

// CartSummary aggregates a cart; monetary values are rounded to 2 decimals
type CartSummary struct {
	Items                 []CartLine `json:"items"`
	ItemCount             int        `json:"itemCount"`
	UniqueItems           int        `json:"uniqueItems"`
	Subtotal              float64    `json:"subtotal"`
	TaxRate               float64    `json:"taxRate"`
	TaxAmount             float64    `json:"taxAmount"`
	ShippingCost          float64    `json:"shippingCost"`
	Total                 float64    `json:"total"`
	FreeShippingThreshold float64    `json:"freeShippingThreshold"`
	FreeShippingEligible  bool       `json:"freeShippingEligible"`
	FreeShippingRemaining float64    `json:"freeShippingRemaining"`
}

// QuantityChange records a line clamped during reconciliation
type QuantityChange struct {
	ProductID   string `json:"productId"`
	OldQuantity int    `json:"oldQuantity"`
	NewQuantity int    `json:"newQuantity"`
}

// ValidationReport is the outcome of reconciling the cart against the catalog
type ValidationReport struct {
	IsValid         bool             `json:"isValid"`
	InvalidItems    []CartItem       `json:"invalidItems"`
	OutOfStockItems []CartItem       `json:"outOfStockItems"`
	UpdatedItems    []QuantityChange `json:"updatedItems"`
}
