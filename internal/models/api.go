package models

// AddItemRequest is the body of POST /v1/cart/items. Quantity defaults to 1.
type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity,omitempty"`
}

// UpdateItemRequest is the body of PATCH /v1/cart/items/{productId}
type UpdateItemRequest struct {
	Quantity *int `json:"quantity"`
}

// MergeRequest is the body of POST /v1/cart/merge
type MergeRequest struct {
	Items []CartItem `json:"items"`
}

// CartItemsResponse is the body of GET /v1/cart
type CartItemsResponse struct {
	Items     []CartLine `json:"items"`
	ItemCount int        `json:"itemCount"`
}

// CartResponse is returned by every cart mutation. Warning is set when the
// change was applied but could not be saved.
type CartResponse struct {
	Result  any         `json:"result,omitempty"`
	Summary CartSummary `json:"summary"`
	Warning string      `json:"warning,omitempty"`
}

// ProductListResponse wraps listings that are not paginated
type ProductListResponse struct {
	Items []Product `json:"items"`
	Count int       `json:"count"`
}

// CategoryListResponse wraps the category collection
type CategoryListResponse struct {
	Items []Category `json:"items"`
	Count int        `json:"count"`
}

// EventsResponse is one page of the cart event log
type EventsResponse struct {
	Events     any   `json:"events"`
	NextOffset int64 `json:"nextOffset"`
	HasMore    bool  `json:"hasMore"`
	Count      int   `json:"count"`
}

// HealthResponse reports whether the engines are usable
type HealthResponse struct {
	Status        string `json:"status"`
	CatalogLoaded bool   `json:"catalogLoaded"`
	CatalogValid  bool   `json:"catalogValid"`
	CartItems     int    `json:"cartItems"`
	CartLoadIssue string `json:"cartLoadIssue,omitempty"`
}
