package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"storefront-engine/internal/models"
)

// Normalization defaults. Every missing or unusable raw field falls back to one of these.
const (
	DefaultProductName        = "Unknown Product"
	DefaultProductDescription = "No description available"
	DefaultCategory           = "uncategorized"
	productIDPrefix           = "product-"
	categoryIDPrefix          = "category-"

	MaxRating     = 5.0
	MaxPopularity = 100
	MaxStock      = math.MaxInt32
)

// RawFeed is the loosely typed catalog document: each record is kept undecoded
// until normalization.
type RawFeed struct {
	Products   []json.RawMessage
	Categories []json.RawMessage
}

// ParseFeed validates the top-level shape of a feed document. products must be
// present and an array; categories is optional but must be an array when present.
func ParseFeed(data []byte) (*RawFeed, error) {
	var document map[string]json.RawMessage
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, &DataFormatError{Reason: "feed is not a JSON object", Err: err}
	}

	rawProducts, ok := document["products"]
	if !ok {
		return nil, &DataFormatError{Reason: "missing products array"}
	}
	feed := &RawFeed{}
	if err := decodeArray(rawProducts, &feed.Products); err != nil {
		return nil, &DataFormatError{Reason: "products is not an array", Err: err}
	}

	if rawCategories, ok := document["categories"]; ok && !isNull(rawCategories) {
		if err := decodeArray(rawCategories, &feed.Categories); err != nil {
			return nil, &DataFormatError{Reason: "categories is not an array", Err: err}
		}
	}
	return feed, nil
}

func decodeArray(raw json.RawMessage, out *[]json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf("expected array, got %.20s", string(trimmed))
	}
	return json.Unmarshal(trimmed, out)
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// Normalize turns a raw feed into strict products and categories with derived
// fields computed. Product records that are not JSON objects are skipped.
func Normalize(feed RawFeed) ([]models.Product, []models.Category) {
	products := make([]models.Product, 0, len(feed.Products))
	for i, raw := range feed.Products {
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil || record == nil {
			slog.Warn("Skipping malformed product record", "index", i)
			continue
		}
		products = append(products, NormalizeProduct(record, i+1))
	}

	categories := make([]models.Category, 0, len(feed.Categories))
	for i, raw := range feed.Categories {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			slog.Warn("Skipping malformed category record", "index", i)
			continue
		}
		category, ok := normalizeCategory(value, i+1)
		if !ok {
			slog.Warn("Skipping malformed category record", "index", i)
			continue
		}
		categories = append(categories, category)
	}

	return products, categories
}

// NormalizeProduct applies the defaults to one raw record; position is the
// 1-based index used for a generated id.
func NormalizeProduct(record map[string]any, position int) models.Product {
	product := models.Product{
		ID:          stringField(record, "id"),
		Name:        stringField(record, "name"),
		Description: stringField(record, "description"),
		Category:    stringField(record, "category"),
		Price:       nonNegative(numberField(record, "price")),
		Rating:      math.Min(nonNegative(numberField(record, "rating")), MaxRating),
		Stock:       int(math.Floor(math.Min(nonNegative(numberField(record, "stock")), MaxStock))),
		Popularity:  int(math.Floor(math.Min(nonNegative(numberField(record, "popularity")), MaxPopularity))),
		Images:      imagesField(record),
		Specs:       specsField(record),
	}

	if product.ID == "" {
		product.ID = productIDPrefix + strconv.Itoa(position)
	}
	if product.Name == "" {
		product.Name = DefaultProductName
	}
	if product.Description == "" {
		product.Description = DefaultProductDescription
	}
	if product.Category == "" {
		product.Category = DefaultCategory
	}

	return product.WithDerivedFields()
}

func normalizeCategory(value any, position int) (models.Category, bool) {
	var category models.Category
	switch v := value.(type) {
	case string:
		category.ID = strings.TrimSpace(v)
	case map[string]any:
		category.ID = stringField(v, "id")
		category.Name = stringField(v, "name")
	default:
		return category, false
	}

	if category.ID == "" {
		category.ID = categoryIDPrefix + strconv.Itoa(position)
	}
	if category.Name == "" {
		category.Name = category.ID
	}
	return category, true
}

// stringField returns a trimmed string for string, number and bool values
func stringField(record map[string]any, key string) string {
	return strings.TrimSpace(scalarString(record[key]))
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// numberField accepts JSON numbers and numeric strings; anything else is 0
func numberField(record map[string]any, key string) float64 {
	var value float64
	switch v := record[key].(type) {
	case float64:
		value = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		value = parsed
	default:
		return 0
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

func nonNegative(value float64) float64 {
	if value < 0 {
		return 0
	}
	return value
}

// imagesField reads the images array, falling back to a single image string
func imagesField(record map[string]any) []string {
	images := make([]string, 0)
	switch v := record["images"].(type) {
	case []any:
		for _, item := range v {
			if url, ok := item.(string); ok && strings.TrimSpace(url) != "" {
				images = append(images, strings.TrimSpace(url))
			}
		}
	case string:
		if strings.TrimSpace(v) != "" {
			images = append(images, strings.TrimSpace(v))
		}
	}
	if len(images) == 0 {
		if url := stringField(record, "image"); url != "" {
			images = append(images, url)
		}
	}
	return images
}

// specsField stringifies every spec value; nested values are JSON encoded
func specsField(record map[string]any) map[string]string {
	specs := make(map[string]string)
	raw, ok := record["specs"].(map[string]any)
	if !ok {
		return specs
	}
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			specs[key] = ""
		case string, float64, bool:
			specs[key] = scalarString(v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				continue
			}
			specs[key] = string(encoded)
		}
	}
	return specs
}
