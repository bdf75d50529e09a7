package report

import (
	"github.com/shopspring/decimal"

	"github.com/erazemk/zaloga/internal/model"
)

// GSTRate is the goods and services tax applied on receipts.
var GSTRate = decimal.RequireFromString("0.18")

// Receipt is a printable breakdown of one sale.
type Receipt struct {
	Sale     model.Sale      `json:"sale"`
	Subtotal decimal.Decimal `json:"subtotal"`
	GSTRate  decimal.Decimal `json:"gst_rate"`
	GST      decimal.Decimal `json:"gst"`
	Total    decimal.Decimal `json:"total"`
}

// BuildReceipt adds GST on top of the recorded sale total.
func BuildReceipt(s model.Sale) Receipt {
	gst := s.TotalAmount.Mul(GSTRate).Round(2)
	return Receipt{
		Sale:     s,
		Subtotal: s.TotalAmount,
		GSTRate:  GSTRate,
		GST:      gst,
		Total:    s.TotalAmount.Add(gst),
	}
}
