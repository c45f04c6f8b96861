package query

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-engine/internal/models"
)

func product(id, name, category string, price, rating float64, stock, popularity int) models.Product {
	return models.Product{
		ID:          id,
		Name:        name,
		Description: fmt.Sprintf("Description of %s", name),
		Category:    category,
		Price:       price,
		Rating:      rating,
		Stock:       stock,
		Popularity:  popularity,
		Images:      []string{},
		Specs:       map[string]string{},
	}.WithDerivedFields()
}

func fixtureProducts() []models.Product {
	headphones := product("p1", "Wireless Headphones", "audio", 149.99, 4.7, 12, 90)
	headphones.Specs = map[string]string{"battery": "30 hours", "connectivity": "Bluetooth 5.2"}

	speaker := product("p2", "Portable Speaker", "audio", 59.50, 4.2, 0, 70)
	speaker.Specs = map[string]string{"connectivity": "Bluetooth 5.0", "waterproof": "IPX7"}

	return []models.Product{
		headphones,
		speaker,
		product("p3", "Mechanical Keyboard", "computers", 89.00, 4.5, 5, 88),
		product("p4", "USB-C Hub", "computers", 29.99, 3.9, 40, 60),
		product("p5", "4K Monitor", "computers", 329.00, 4.8, 3, 95),
		product("p6", "Desk Lamp", "home", 24.00, 0.5, 8, 20),
	}
}

func ids(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestSearch_BlankQueryReturnsInput(t *testing.T) {
	products := fixtureProducts()

	assert.Equal(t, products, Search(products, ""))
	assert.Equal(t, products, Search(products, "   \t "))
}

func TestSearch_MatchesAcrossFields(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		expected []string
	}{
		{"name", "keyboard", []string{"p3"}},
		{"case insensitive", "WIRELESS", []string{"p1"}},
		{"category", "computers", []string{"p3", "p4", "p5"}},
		{"description", "description of desk", []string{"p6"}},
		{"spec value", "ipx7", []string{"p2"}},
		{"substring not word boundary", "phone", []string{"p1"}},
		{"all tokens required", "bluetooth speaker", []string{"p2"}},
		{"spec values are searchable", "bluetooth", []string{"p1", "p2"}},
		{"no match", "toaster", []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ids(Search(fixtureProducts(), tc.query)))
		})
	}
}

// TestSearch_ConjunctionIsIntersection checks that a two-token query equals the
// intersection of the single-token queries
func TestSearch_ConjunctionIsIntersection(t *testing.T) {
	products := fixtureProducts()
	pairs := [][2]string{
		{"bluetooth", "audio"},
		{"o", "e"},
		{"computers", "4"},
		{"desk", "lamp"},
		{"hub", "audio"},
	}

	for _, pair := range pairs {
		t.Run(pair[0]+"+"+pair[1], func(t *testing.T) {
			combined := ids(Search(products, pair[0]+" "+pair[1]))

			second := ids(Search(products, pair[1]))
			var intersection []string
			for _, id := range ids(Search(products, pair[0])) {
				if slices.Contains(second, id) {
					intersection = append(intersection, id)
				}
			}
			if intersection == nil {
				intersection = []string{}
			}

			assert.Equal(t, intersection, combined)
		})
	}
}

func TestFilter(t *testing.T) {
	minPrice := 50.0
	maxPrice := 150.0
	rating := 4.5

	testCases := []struct {
		name     string
		params   models.QueryParams
		expected []string
	}{
		{"no criteria", models.QueryParams{}, []string{"p1", "p2", "p3", "p4", "p5", "p6"}},
		{"categories", models.QueryParams{Categories: []string{"audio", "home"}}, []string{"p1", "p2", "p6"}},
		{"unknown category", models.QueryParams{Categories: []string{"garden"}}, []string{}},
		{"price range", models.QueryParams{PriceMin: &minPrice, PriceMax: &maxPrice}, []string{"p1", "p2", "p3"}},
		{"rating threshold", models.QueryParams{Rating: &rating}, []string{"p1", "p3", "p5"}},
		{"in stock", models.QueryParams{InStock: true}, []string{"p1", "p3", "p4", "p5", "p6"}},
		{"is new", models.QueryParams{IsNew: true}, []string{"p1", "p3", "p5"}},
		{"on sale", models.QueryParams{OnSale: true}, []string{"p1", "p5"}},
		{"combined", models.QueryParams{Categories: []string{"computers"}, IsNew: true, PriceMax: &maxPrice}, []string{"p3"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ids(Filter(fixtureProducts(), tc.params)))
		})
	}
}

func TestSort_Keys(t *testing.T) {
	products := fixtureProducts()

	testCases := []struct {
		sortBy    string
		sortOrder string
		expected  []string
	}{
		{models.SortByPrice, models.SortOrderAsc, []string{"p6", "p4", "p2", "p3", "p1", "p5"}},
		{models.SortByPrice, models.SortOrderDesc, []string{"p5", "p1", "p3", "p2", "p4", "p6"}},
		{models.SortByRating, models.SortOrderDesc, []string{"p5", "p1", "p3", "p2", "p4", "p6"}},
		{models.SortByPopularity, models.SortOrderDesc, []string{"p5", "p1", "p3", "p2", "p4", "p6"}},
		{models.SortByPopularity, models.SortOrderAsc, []string{"p6", "p4", "p2", "p3", "p1", "p5"}},
		{"unknown", models.SortOrderAsc, []string{"p6", "p4", "p2", "p3", "p1", "p5"}},
	}

	for _, tc := range testCases {
		t.Run(tc.sortBy+"_"+tc.sortOrder, func(t *testing.T) {
			assert.Equal(t, tc.expected, ids(Sort(products, tc.sortBy, tc.sortOrder)))
		})
	}
}

// TestSort_DescendingIsReverseOfAscendingWithTies checks the tie-break rule
func TestSort_DescendingIsReverseOfAscendingWithTies(t *testing.T) {
	// Arrange - a, c and d share the same price
	products := []models.Product{
		product("a", "A", "x", 10, 1, 1, 1),
		product("b", "B", "x", 5, 1, 1, 1),
		product("c", "C", "x", 10, 1, 1, 1),
		product("d", "D", "x", 10, 1, 1, 1),
		product("e", "E", "x", 20, 1, 1, 1),
	}

	// Act
	ascending := Sort(products, models.SortByPrice, models.SortOrderAsc)
	descending := Sort(products, models.SortByPrice, models.SortOrderDesc)

	// Assert
	assert.Equal(t, []string{"b", "a", "c", "d", "e"}, ids(ascending), "ascending sort is stable")

	reversed := slices.Clone(ascending)
	slices.Reverse(reversed)
	assert.Equal(t, ids(reversed), ids(descending))
	assert.Equal(t, []string{"e", "d", "c", "a", "b"}, ids(descending), "ties keep reversed input order")
}

func TestSort_NameIsLocaleAware(t *testing.T) {
	products := []models.Product{
		product("1", "banana", "x", 1, 1, 1, 1),
		product("2", "Cherry", "x", 1, 1, 1, 1),
		product("3", "apple", "x", 1, 1, 1, 1),
		product("4", "Banana Split", "x", 1, 1, 1, 1),
	}

	sorted := Sort(products, models.SortByName, models.SortOrderAsc)

	// Byte order would put the capitalised names first
	assert.Equal(t, []string{"3", "1", "4", "2"}, ids(sorted))
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	products := fixtureProducts()
	before := ids(products)

	Sort(products, models.SortByPrice, models.SortOrderDesc)

	assert.Equal(t, before, ids(products))
}

func TestPaginate(t *testing.T) {
	items := make([]models.Product, 7)
	for i := range items {
		items[i] = product(fmt.Sprintf("p%d", i), "n", "c", 1, 1, 1, 1)
	}

	t.Run("middle page", func(t *testing.T) {
		page := Paginate(items, 2, 3)

		assert.Equal(t, ids(items[3:6]), ids(page.Items))
		assert.True(t, page.HasNext)
		assert.True(t, page.HasPrev)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 7, page.Total)
	})

	t.Run("last partial page", func(t *testing.T) {
		page := Paginate(items, 3, 3)

		assert.Equal(t, ids(items[6:]), ids(page.Items))
		assert.False(t, page.HasNext)
		assert.True(t, page.HasPrev)
	})

	t.Run("out of range page", func(t *testing.T) {
		page := Paginate(items, 9, 3)

		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
		assert.False(t, page.HasNext)
		assert.Equal(t, 3, page.TotalPages)
	})

	t.Run("huge page number", func(t *testing.T) {
		page := Paginate(items, math.MaxInt, 2)

		assert.Empty(t, page.Items)
		assert.False(t, page.HasNext)
		assert.True(t, page.HasPrev)
		assert.Equal(t, 4, page.TotalPages)
	})

	t.Run("huge page size", func(t *testing.T) {
		page := Paginate(items, 2, math.MaxInt)

		assert.Empty(t, page.Items)
		assert.Equal(t, 1, page.TotalPages)

		first := Paginate(items, 1, math.MaxInt)
		assert.Equal(t, ids(items), ids(first.Items))
	})

	t.Run("defaults", func(t *testing.T) {
		page := Paginate(items, 0, 0)

		assert.Equal(t, 1, page.Page)
		assert.Equal(t, models.DefaultPerPage, page.PerPage)
		assert.Len(t, page.Items, 7)
		assert.Equal(t, 1, page.TotalPages)
		assert.False(t, page.HasPrev)
	})

	t.Run("empty input", func(t *testing.T) {
		page := Paginate(nil, 1, 12)

		assert.Equal(t, 0, page.TotalPages)
		assert.False(t, page.HasNext)
		assert.Empty(t, page.Items)
	})
}

func TestComputeFacets(t *testing.T) {
	products := fixtureProducts()
	products = append(products, product("p7", "Broken Rating", "home", 10, 7.2, 0, 1))

	facets := ComputeFacets(products)

	assert.Equal(t, 7, facets.TotalProducts)
	assert.Equal(t, map[string]int{"audio": 2, "computers": 3, "home": 2}, facets.Categories)
	// 0.5 and 7.2 are outside 1-5 and are left out of the histogram
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 1, 4: 4, 5: 0}, facets.RatingCounts)
	assert.Equal(t, 5, facets.InStockCount)
	assert.Equal(t, 10.0, facets.PriceRange.Min)
	assert.Equal(t, 329.0, facets.PriceRange.Max)
	assert.Equal(t, 98.78, facets.PriceRange.Average)
}

func TestComputeFacets_Empty(t *testing.T) {
	facets := ComputeFacets(nil)

	assert.Equal(t, 0, facets.TotalProducts)
	assert.Equal(t, models.PriceRange{}, facets.PriceRange)
	assert.Len(t, facets.RatingCounts, 5)
}

func TestRun_PipelineOrder(t *testing.T) {
	// Arrange
	params := models.QueryParams{
		Query:     "o",
		InStock:   true,
		SortBy:    models.SortByPrice,
		SortOrder: models.SortOrderAsc,
		Page:      1,
		PerPage:   2,
	}

	// Act
	result := Run(fixtureProducts(), params)

	// Assert - "o" matches every product; in-stock drops p2
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, []string{"p6", "p4"}, ids(result.Items))
	assert.True(t, result.HasNext)
	assert.False(t, result.HasPrev)
	assert.Equal(t, 5, result.Facets.TotalProducts, "facets cover the filtered set, not the page")
	assert.Equal(t, 5, result.Facets.InStockCount)
}

func TestRun_Defaults(t *testing.T) {
	result := Run(fixtureProducts(), models.QueryParams{})

	assert.Equal(t, 1, result.Page)
	assert.Equal(t, models.DefaultPerPage, result.PerPage)
	assert.Equal(t, "p5", result.Items[0].ID, "default sort is popularity desc")
}

func TestParseQueryParams(t *testing.T) {
	values := url.Values{}
	values.Set("q", "wireless")
	values.Add("category", "audio,computers")
	values.Add("category", " home ")
	values.Set("minPrice", "10")
	values.Set("maxPrice", "200.5")
	values.Set("rating", "4")
	values.Set("inStock", "true")
	values.Set("sortBy", "price")
	values.Set("sortOrder", "asc")
	values.Set("page", "2")
	values.Set("perPage", "24")

	params, err := ParseQueryParams(values)

	require.NoError(t, err)
	assert.Equal(t, "wireless", params.Query)
	assert.Equal(t, []string{"audio", "computers", "home"}, params.Categories)
	require.NotNil(t, params.PriceMin)
	assert.Equal(t, 10.0, *params.PriceMin)
	assert.Equal(t, 200.5, *params.PriceMax)
	assert.Equal(t, 4.0, *params.Rating)
	assert.True(t, params.InStock)
	assert.False(t, params.OnSale)
	assert.Equal(t, "price", params.SortBy)
	assert.Equal(t, "asc", params.SortOrder)
	assert.Equal(t, 2, params.Page)
	assert.Equal(t, 24, params.PerPage)
}

func TestParseQueryParams_Defaults(t *testing.T) {
	params, err := ParseQueryParams(url.Values{})

	require.NoError(t, err)
	assert.Nil(t, params.PriceMin)
	assert.Equal(t, models.SortByPopularity, params.SortBy)
	assert.Equal(t, models.SortOrderDesc, params.SortOrder)
	assert.Equal(t, 1, params.Page)
	assert.Equal(t, models.DefaultPerPage, params.PerPage)
}

func TestParseQueryParams_Invalid(t *testing.T) {
	for _, field := range []string{"minPrice", "maxPrice", "rating", "inStock", "page", "perPage"} {
		t.Run(field, func(t *testing.T) {
			values := url.Values{}
			values.Set(field, "abc")

			_, err := ParseQueryParams(values)

			var paramErr *ParamError
			require.ErrorAs(t, err, &paramErr)
			assert.Equal(t, field, paramErr.Field)
		})
	}
}
