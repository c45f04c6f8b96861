// Package query implements the stateless catalog query pipeline:
// search, filter, sort and paginate, with facets computed over the filtered set.
package query

import (
	"math"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"storefront-engine/internal/models"
)

// Search keeps the products whose searchable text contains every whitespace-separated
// token of query as a substring. A blank query returns the input unchanged.
func Search(products []models.Product, query string) []models.Product {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return products
	}

	matched := make([]models.Product, 0, len(products))
	for _, product := range products {
		haystack := SearchableText(product)
		if containsAll(haystack, tokens) {
			matched = append(matched, product)
		}
	}
	return matched
}

// Tokenize lowercases, trims and splits a query on whitespace
func Tokenize(query string) []string {
	return strings.Fields(strings.ToLower(strings.TrimSpace(query)))
}

// SearchableText builds the lowercase text a product is matched against:
// name, description, category and the spec values (ordered by spec key).
func SearchableText(product models.Product) string {
	parts := make([]string, 0, 3+len(product.Specs))
	parts = append(parts, product.Name, product.Description, product.Category)

	keys := make([]string, 0, len(product.Specs))
	for key := range product.Specs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, product.Specs[key])
	}

	return strings.ToLower(strings.Join(parts, " "))
}

func containsAll(haystack string, tokens []string) bool {
	for _, token := range tokens {
		if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}

// Filter applies every criterion present in params; criteria are AND-combined
func Filter(products []models.Product, params models.QueryParams) []models.Product {
	var categories map[string]struct{}
	if len(params.Categories) > 0 {
		categories = make(map[string]struct{}, len(params.Categories))
		for _, category := range params.Categories {
			categories[category] = struct{}{}
		}
	}

	filtered := make([]models.Product, 0, len(products))
	for _, product := range products {
		if categories != nil {
			if _, ok := categories[product.Category]; !ok {
				continue
			}
		}
		if params.PriceMin != nil && product.Price < *params.PriceMin {
			continue
		}
		if params.PriceMax != nil && product.Price > *params.PriceMax {
			continue
		}
		if params.Rating != nil && product.Rating < *params.Rating {
			continue
		}
		if params.InStock && !product.InStock {
			continue
		}
		if params.IsNew && !product.IsNew {
			continue
		}
		if params.OnSale && !product.OnSale {
			continue
		}
		filtered = append(filtered, product)
	}
	return filtered
}

// Sort returns a new slice ordered by sortBy. Comparators are ascending and stable;
// descending order is the exact reverse of the ascending result, so equal keys
// appear in reverse input order when sortOrder is desc.
func Sort(products []models.Product, sortBy, sortOrder string) []models.Product {
	sorted := slices.Clone(products)
	slices.SortStableFunc(sorted, comparator(sortBy))
	if sortOrder != models.SortOrderAsc {
		slices.Reverse(sorted)
	}
	return sorted
}

func comparator(sortBy string) func(a, b models.Product) int {
	switch sortBy {
	case models.SortByPrice:
		return func(a, b models.Product) int { return compareFloat(a.Price, b.Price) }
	case models.SortByRating:
		return func(a, b models.Product) int { return compareFloat(a.Rating, b.Rating) }
	case models.SortByName:
		// Collators keep iteration buffers, so each sort gets its own
		collator := collate.New(language.English)
		return func(a, b models.Product) int { return collator.CompareString(a.Name, b.Name) }
	default:
		return func(a, b models.Product) int { return a.Popularity - b.Popularity }
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Page is one slice of a sorted result set
type Page struct {
	Items      []models.Product
	Page       int
	PerPage    int
	Total      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// Paginate returns the 1-based page of products. Out-of-range pages are empty.
func Paginate(products []models.Product, page, perPage int) Page {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = models.DefaultPerPage
	}

	total := len(products)
	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}

	// Bounds are compared before multiplying so huge page numbers cannot overflow.
	start := total
	if page-1 <= total/perPage {
		start = min((page-1)*perPage, total)
	}
	end := total
	if perPage < total-start {
		end = start + perPage
	}

	items := make([]models.Product, end-start)
	copy(items, products[start:end])

	return Page{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// ComputeFacets aggregates categories, prices, ratings and stock over products
func ComputeFacets(products []models.Product) models.Facets {
	facets := models.Facets{
		Categories:    make(map[string]int),
		RatingCounts:  map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		TotalProducts: len(products),
	}
	if len(products) == 0 {
		return facets
	}

	minPrice := math.Inf(1)
	maxPrice := math.Inf(-1)
	var sum float64

	for _, product := range products {
		facets.Categories[product.Category]++

		bucket := int(math.Floor(product.Rating))
		if bucket >= 1 && bucket <= 5 {
			facets.RatingCounts[bucket]++
		}

		minPrice = math.Min(minPrice, product.Price)
		maxPrice = math.Max(maxPrice, product.Price)
		sum += product.Price

		if product.InStock {
			facets.InStockCount++
		}
	}

	facets.PriceRange = models.PriceRange{
		Min:     minPrice,
		Max:     maxPrice,
		Average: Round2(sum / float64(len(products))),
	}
	return facets
}

// Round2 rounds half away from zero to 2 decimal places
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// Run executes the full pipeline: search, filter, sort, paginate.
// Facets are computed over the searched and filtered set before sorting.
func Run(products []models.Product, params models.QueryParams) models.SearchResult {
	params = params.WithDefaults()

	matched := Filter(Search(products, params.Query), params)
	facets := ComputeFacets(matched)
	page := Paginate(Sort(matched, params.SortBy, params.SortOrder), params.Page, params.PerPage)

	return models.SearchResult{
		Items:      page.Items,
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      page.Total,
		TotalPages: page.TotalPages,
		HasNext:    page.HasNext,
		HasPrev:    page.HasPrev,
		Facets:     facets,
	}
}
