// Package seed fills an empty store with sample items and sales.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/sales"
)

type sampleItem struct {
	id string
	in model.ItemInput
}

func sampleItems() []sampleItem {
	item := func(id, name, category string, qty int, unit string, price int64, threshold int) sampleItem {
		return sampleItem{id: id, in: model.ItemInput{
			Name:      name,
			Category:  category,
			Quantity:  qty,
			Unit:      unit,
			UnitPrice: decimal.NewFromInt(price),
			Threshold: threshold,
		}}
	}
	return []sampleItem{
		item("1", "Basmati Rice", "Rice", 500, "kg", 75, 100),
		item("2", "Whole Wheat", "Wheat", 750, "kg", 45, 150),
		item("3", "Sunflower Oil", "Oil", 200, "liter", 120, 50),
		item("4", "Jasmine Rice", "Rice", 350, "kg", 90, 100),
		item("5", "Olive Oil", "Oil", 40, "liter", 350, 50),
	}
}

func sampleSales(now time.Time) []model.Sale {
	sale := func(id, productID, name string, qty int, price int64, daysAgo int) model.Sale {
		p := decimal.NewFromInt(price)
		return model.Sale{
			ID:          id,
			ProductID:   productID,
			ProductName: name,
			Quantity:    qty,
			UnitPrice:   p,
			TotalAmount: p.Mul(decimal.NewFromInt(int64(qty))),
			Date:        now.AddDate(0, 0, -daysAgo),
		}
	}
	return []model.Sale{
		sale("s1", "1", "Basmati Rice", 50, 75, 1),
		sale("s2", "3", "Sunflower Oil", 20, 120, 2),
		sale("s3", "2", "Whole Wheat", 100, 45, 3),
	}
}

// IfEmpty seeds each of the inventory and sales collections that has no
// documents yet. Seeding is skipped per collection, so a store with items but
// no sales only gets the sample sales.
func IfEmpty(ctx context.Context, st docstore.Store, inv *inventory.Repository, sl *sales.Repository) error {
	empty, err := isEmpty(ctx, st, docstore.CollectionInventory)
	if err != nil {
		return err
	}
	if empty {
		for _, s := range sampleItems() {
			if _, err := inv.AddWithID(ctx, s.id, s.in); err != nil && !errors.Is(err, docstore.ErrExists) {
				return fmt.Errorf("seeding item %s: %w", s.id, err)
			}
		}
		slog.Info("seeded sample inventory")
	}

	empty, err = isEmpty(ctx, st, docstore.CollectionSales)
	if err != nil {
		return err
	}
	if empty {
		for _, s := range sampleSales(time.Now().UTC()) {
			if _, err := sl.Import(ctx, s); err != nil && !errors.Is(err, docstore.ErrExists) {
				return fmt.Errorf("seeding sale %s: %w", s.ID, err)
			}
		}
		slog.Info("seeded sample sales")
	}
	return nil
}

func isEmpty(ctx context.Context, st docstore.Store, collection string) (bool, error) {
	snap, err := st.ReadOnce(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", collection, err)
	}
	return len(snap.Documents) == 0, nil
}
