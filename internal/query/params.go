package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"storefront-engine/internal/models"
)

// ParamError describes a query string value that could not be parsed
type ParamError struct {
	Field string
	Value string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

// ParseQueryParams builds QueryParams from URL query values. Categories may be
// repeated or comma separated. Defaults are applied to the result.
func ParseQueryParams(values url.Values) (models.QueryParams, error) {
	params := models.QueryParams{
		Query:     values.Get("q"),
		SortBy:    values.Get("sortBy"),
		SortOrder: values.Get("sortOrder"),
	}

	for _, raw := range values["category"] {
		for _, category := range strings.Split(raw, ",") {
			if category = strings.TrimSpace(category); category != "" {
				params.Categories = append(params.Categories, category)
			}
		}
	}

	var err error
	if params.PriceMin, err = optionalFloat(values, "minPrice"); err != nil {
		return params, err
	}
	if params.PriceMax, err = optionalFloat(values, "maxPrice"); err != nil {
		return params, err
	}
	if params.Rating, err = optionalFloat(values, "rating"); err != nil {
		return params, err
	}
	if params.InStock, err = optionalBool(values, "inStock"); err != nil {
		return params, err
	}
	if params.IsNew, err = optionalBool(values, "isNew"); err != nil {
		return params, err
	}
	if params.OnSale, err = optionalBool(values, "onSale"); err != nil {
		return params, err
	}
	if params.Page, err = optionalInt(values, "page"); err != nil {
		return params, err
	}
	if params.PerPage, err = optionalInt(values, "perPage"); err != nil {
		return params, err
	}

	return params.WithDefaults(), nil
}

func optionalFloat(values url.Values, field string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &ParamError{Field: field, Value: raw, Err: err}
	}
	return &value, nil
}

func optionalBool(values url.Values, field string) (bool, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ParamError{Field: field, Value: raw, Err: err}
	}
	return value, nil
}

func optionalInt(values url.Values, field string) (int, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParamError{Field: field, Value: raw, Err: err}
	}
	return value, nil
}
