// Package sales is the repository of recorded sales. Sales are immutable;
// the only removal is Void, used to compensate a sale whose stock could not
// be taken.
package sales

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/liveview"
	"github.com/erazemk/zaloga/internal/model"
)

// ErrNotFound is returned when voiding a sale the store does not have.
var ErrNotFound = errors.New("sale not found")

type saleDoc struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Date        time.Time       `json:"date"`
}

func decodeSale(doc docstore.Document) (model.Sale, error) {
	var d saleDoc
	if err := doc.Decode(&d); err != nil {
		return model.Sale{}, err
	}
	return model.Sale{
		ID:          doc.ID,
		ProductID:   d.ProductID,
		ProductName: d.ProductName,
		Quantity:    d.Quantity,
		UnitPrice:   d.UnitPrice,
		TotalAmount: d.TotalAmount,
		Date:        d.Date,
	}, nil
}

// Newest first.
func compareSales(a, b model.Sale) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Repository owns the sales collection.
type Repository struct {
	store docstore.Store
	view  *liveview.View[model.Sale]
	now   func() time.Time
}

func New(st docstore.Store) *Repository {
	return &Repository{
		store: st,
		view:  liveview.New[model.Sale](docstore.CollectionSales, decodeSale, compareSales),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) Start(ctx context.Context) error {
	return r.view.Start(ctx, r.store)
}

func (r *Repository) Close() {
	r.view.Close()
}

// List returns all sales, newest first.
func (r *Repository) List() []model.Sale {
	return r.view.List()
}

func (r *Repository) Get(id string) (model.Sale, bool) {
	return r.view.Get(id)
}

// Search matches term against product names, ignoring case.
func (r *Repository) Search(term string) []model.Sale {
	term = strings.ToLower(strings.TrimSpace(term))
	all := r.view.List()
	if term == "" {
		return all
	}
	var out []model.Sale
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.ProductName), term) {
			out = append(out, s)
		}
	}
	return out
}

func (r *Repository) Subscribe(fn func([]model.Sale)) (unsubscribe func()) {
	return r.view.Subscribe(fn)
}

func (r *Repository) Err() error {
	return r.view.Err()
}

// Record stores a new sale dated now. The total is computed here, once, from
// the snapshot price in the input.
func (r *Repository) Record(ctx context.Context, in model.SaleInput) (model.Sale, error) {
	if in.Quantity <= 0 {
		return model.Sale{}, &model.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if in.ProductID == "" {
		return model.Sale{}, &model.ValidationError{Field: "product_id", Reason: "required"}
	}
	return r.put(ctx, "", saleDoc{
		ProductID:   in.ProductID,
		ProductName: in.ProductName,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		TotalAmount: in.Total(),
		Date:        r.now(),
	})
}

// Import stores a sale as given, keeping its ID and date. Used for seeding.
func (r *Repository) Import(ctx context.Context, s model.Sale) (model.Sale, error) {
	return r.put(ctx, s.ID, saleDoc{
		ProductID:   s.ProductID,
		ProductName: s.ProductName,
		Quantity:    s.Quantity,
		UnitPrice:   s.UnitPrice,
		TotalAmount: s.TotalAmount,
		Date:        s.Date,
	})
}

func (r *Repository) put(ctx context.Context, id string, doc saleDoc) (model.Sale, error) {
	res, err := r.store.Create(ctx, docstore.CollectionSales, id, doc)
	if err != nil {
		return model.Sale{}, fmt.Errorf("recording sale: %w", err)
	}
	return r.view.Put(res.Revision, res.Document)
}

// Void deletes a sale that never took effect.
func (r *Repository) Void(ctx context.Context, id string) error {
	res, err := r.store.Delete(ctx, docstore.CollectionSales, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("voiding sale: %w", err)
	}
	r.view.Remove(res.Revision, id)
	return nil
}
