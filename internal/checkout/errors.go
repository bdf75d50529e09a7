package checkout

import (
	"errors"
	"fmt"

	"github.com/erazemk/zaloga/internal/model"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrProductNotFound = errors.New("product not found")

	// ErrStockBusy means the stock kept changing under the sale. The sale was
	// voided and can be retried.
	ErrStockBusy = errors.New("stock is being changed by other sales, try again")
)

// InsufficientStockError rejects a sale of more than is on hand.
type InsufficientStockError struct {
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

// PartialFailureError means the sale was recorded but its stock was not
// taken, and the sale could not be voided either. Nothing is reconciled.
type PartialFailureError struct {
	Sale model.Sale
	Err  error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("sale %s recorded but stock not updated: %v", e.Sale.ID, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
