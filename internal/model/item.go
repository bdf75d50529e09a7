package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is one stocked product.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Quantity    int             `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Threshold   int             `json:"threshold"`
	LastUpdated time.Time       `json:"last_updated"`
	Notes       string          `json:"notes,omitempty"`
	Version     int64           `json:"version"`
}

// LowStock reports whether the item is at or below its threshold.
func (i Item) LowStock() bool {
	return i.Quantity <= i.Threshold
}

// Value is the stock value of the item at its current price.
func (i Item) Value() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemInput holds the fields of a new item.
type ItemInput struct {
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Threshold int             `json:"threshold"`
	Notes     string          `json:"notes,omitempty"`
}

// Validate checks that no required field is missing and no amount is negative.
func (in ItemInput) Validate() error {
	if err := requireText("name", in.Name); err != nil {
		return err
	}
	if err := requireText("category", in.Category); err != nil {
		return err
	}
	if err := requireText("unit", in.Unit); err != nil {
		return err
	}
	if in.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if in.UnitPrice.IsNegative() {
		return &ValidationError{Field: "unit_price", Reason: "must not be negative"}
	}
	if in.Threshold < 0 {
		return &ValidationError{Field: "threshold", Reason: "must not be negative"}
	}
	return nil
}

// ItemPatch is a partial item update. Nil fields are left untouched.
type ItemPatch struct {
	Name      *string          `json:"name,omitempty"`
	Category  *string          `json:"category,omitempty"`
	Quantity  *int             `json:"quantity,omitempty"`
	Unit      *string          `json:"unit,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Threshold *int             `json:"threshold,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Category == nil && p.Quantity == nil && p.Unit == nil &&
		p.UnitPrice == nil && p.Threshold == nil && p.Notes == nil
}

// Validate applies the same rules as ItemInput to the fields that are set.
func (p ItemPatch) Validate() error {
	if p.Name != nil {
		if err := requireText("name", *p.Name); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if err := requireText("category", *p.Category); err != nil {
			return err
		}
	}
	if p.Unit != nil {
		if err := requireText("unit", *p.Unit); err != nil {
			return err
		}
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if p.UnitPrice != nil && p.UnitPrice.IsNegative() {
		return &ValidationError{Field: "unit_price", Reason: "must not be negative"}
	}
	if p.Threshold != nil && *p.Threshold < 0 {
		return &ValidationError{Field: "threshold", Reason: "must not be negative"}
	}
	return nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	return nil
}
