package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is an immutable record of one sale. ProductName and UnitPrice are
// copied from the item at the moment of sale.
type Sale struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Date        time.Time       `json:"date"`
}

// SaleInput holds the snapshot fields of a sale about to be recorded.
type SaleInput struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Total is Quantity × UnitPrice.
func (in SaleInput) Total() decimal.Decimal {
	return in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
}
