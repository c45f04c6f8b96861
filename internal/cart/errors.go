package cart

import (
	"errors"
	"fmt"
)

// ProductNotFoundError indicates the product is not in the catalog
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// OutOfStockError indicates the product has no stock
type OutOfStockError struct {
	ProductID string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product out of stock: %s", e.ProductID)
}

// StockExceededError indicates the requested line quantity is above live stock
type StockExceededError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("requested quantity %d exceeds available stock %d for product %s",
		e.Requested, e.Available, e.ProductID)
}

// QuantityLimitError indicates the requested line quantity is above the per-line maximum
type QuantityLimitError struct {
	ProductID string
	Requested int
	Max       int
}

func (e *QuantityLimitError) Error() string {
	return fmt.Sprintf("requested quantity %d exceeds the limit of %d for product %s",
		e.Requested, e.Max, e.ProductID)
}

// ItemNotFoundError indicates the product has no line in the cart
type ItemNotFoundError struct {
	ProductID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item not in cart: %s", e.ProductID)
}

// InvalidQuantityError indicates a quantity outside the accepted range for the operation
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s", e.Quantity, e.ProductID)
}

// InvalidCartDataError indicates an import blob with the wrong shape
type InvalidCartDataError struct {
	Reason string
	Err    error
}

func (e *InvalidCartDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid cart data: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid cart data: %s", e.Reason)
}

func (e *InvalidCartDataError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed cart write. The in-memory change it
// accompanies has already been applied.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("cart changes were not persisted: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err is only a failed write
func IsPersistenceError(err error) bool {
	var persistErr *PersistenceError
	return errors.As(err, &persistErr)
}

// ErrorType returns a short label for err, used for metrics and API error codes
func ErrorType(err error) string {
	var (
		notFound      *ProductNotFoundError
		outOfStock    *OutOfStockError
		stockExceeded *StockExceededError
		limit         *QuantityLimitError
		itemNotFound  *ItemNotFoundError
		quantity      *InvalidQuantityError
		data          *InvalidCartDataError
		persist       *PersistenceError
	)
	switch {
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &outOfStock):
		return "out_of_stock"
	case errors.As(err, &stockExceeded):
		return "stock_exceeded"
	case errors.As(err, &limit):
		return "quantity_limit"
	case errors.As(err, &itemNotFound):
		return "item_not_found"
	case errors.As(err, &quantity):
		return "invalid_quantity"
	case errors.As(err, &data):
		return "invalid_cart_data"
	case errors.As(err, &persist):
		return "persistence"
	default:
		return "internal"
	}
}
