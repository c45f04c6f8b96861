package models

import (
	"maps"
	"slices"
	"time"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// Product is a normalized catalog entry. Derived fields are recomputed on every catalog load.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Price       float64           `json:"price"`
	Rating      float64           `json:"rating"`
	Stock       int               `json:"stock"`
	Popularity  int               `json:"popularity"`
	Images      []string          `json:"images"`
	Specs       map[string]string `json:"specs"`

	InStock bool `json:"inStock"`
	IsNew   bool `json:"isNew"`
	OnSale  bool `json:"onSale"`
}

// Derived field thresholds
const (
	NewPopularityThreshold = 85
	SaleRatingThreshold    = 4.5
	SalePriceThreshold     = 100
)

// WithDerivedFields returns a copy of p with inStock, isNew and onSale recomputed
func (p Product) WithDerivedFields() Product {
	p.InStock = p.Stock > 0
	p.IsNew = p.Popularity >= NewPopularityThreshold
	p.OnSale = p.Rating >= SaleRatingThreshold && p.Price > SalePriceThreshold
	return p
}

// Category groups products; Product.Category references Category.ID without integrity checks
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CachedCatalog is the persisted catalog cache record. Timestamp is epoch milliseconds.
type CachedCatalog struct {
	Products   []Product  `json:"products"`
	Categories []Category `json:"categories"`
	Timestamp  int64      `json:"timestamp"`
}

// LoadedAt returns the cache timestamp as a time.Time
func (c *CachedCatalog) LoadedAt() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// Sort keys and orders accepted by the query engine
const (
	SortByPrice      = "price"
	SortByRating     = "rating"
	SortByName       = "name"
	SortByPopularity = "popularity"

	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"

	DefaultPerPage = 12
)

// QueryParams drives advancedSearch. Pointer fields are optional criteria.
type QueryParams struct {
	Query      string   `json:"query,omitempty"`
	Categories []string `json:"categories,omitempty"`
	PriceMin   *float64 `json:"priceMin,omitempty"`
	PriceMax   *float64 `json:"priceMax,omitempty"`
	Rating     *float64 `json:"rating,omitempty"`
	InStock    bool     `json:"inStock,omitempty"`
	IsNew      bool     `json:"isNew,omitempty"`
	OnSale     bool     `json:"onSale,omitempty"`
	SortBy     string   `json:"sortBy"`
	SortOrder  string   `json:"sortOrder"`
	Page       int      `json:"page"`
	PerPage    int      `json:"perPage"`
}

// WithDefaults fills sortBy/sortOrder/page/perPage when unset or out of range
func (q QueryParams) WithDefaults() QueryParams {
	switch q.SortBy {
	case SortByPrice, SortByRating, SortByName, SortByPopularity:
	default:
		q.SortBy = SortByPopularity
	}
	if q.SortOrder != SortOrderAsc {
		q.SortOrder = SortOrderDesc
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	return q
}

// PriceRange aggregates prices of a product set; Average is rounded to 2 decimals
type PriceRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// Facets are computed over the filtered, not yet paginated, result set
type Facets struct {
	Categories    map[string]int `json:"categories"`
	PriceRange    PriceRange     `json:"priceRange"`
	RatingCounts  map[int]int    `json:"ratingCounts"`
	TotalProducts int            `json:"totalProducts"`
	InStockCount  int            `json:"inStockCount"`
}

// SearchResult is one page of an advancedSearch
type SearchResult struct {
	Items      []Product `json:"items"`
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
	HasNext    bool      `json:"hasNext"`
	HasPrev    bool      `json:"hasPrev"`
	Facets     Facets    `json:"facets"`
}

// Clone copies the item page and the facet maps so callers may modify the
// result. Products inside still share their images and specs with the catalog.
func (r SearchResult) Clone() SearchResult {
	r.Items = slices.Clone(r.Items)
	r.Facets.Categories = maps.Clone(r.Facets.Categories)
	r.Facets.RatingCounts = maps.Clone(r.Facets.RatingCounts)
	return r
}
