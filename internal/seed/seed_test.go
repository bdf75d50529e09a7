package seed

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/docstore/memstore"
	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/sales"
)

func repos(st docstore.Store) (*inventory.Repository, *sales.Repository) {
	return inventory.New(st), sales.New(st)
}

func TestIfEmptySeedsBoth(t *testing.T) {
	st := memstore.New()
	defer st.Close()
	ctx := context.Background()
	inv, sl := repos(st)

	require.NoError(t, IfEmpty(ctx, st, inv, sl))

	items, err := st.ReadOnce(ctx, docstore.CollectionInventory)
	require.NoError(t, err)
	assert.Len(t, items.Documents, 5)
	salesSnap, err := st.ReadOnce(ctx, docstore.CollectionSales)
	require.NoError(t, err)
	assert.Len(t, salesSnap.Documents, 3)

	olive, ok := inv.Get("5")
	require.True(t, ok)
	assert.Equal(t, "Olive Oil", olive.Name)
	assert.True(t, olive.LowStock())

	s1, ok := sl.Get("s1")
	require.True(t, ok)
	assert.True(t, s1.TotalAmount.Equal(decimal.NewFromInt(3750)))
}

func TestIfEmptyIsIdempotent(t *testing.T) {
	st := memstore.New()
	defer st.Close()
	ctx := context.Background()
	inv, sl := repos(st)

	require.NoError(t, IfEmpty(ctx, st, inv, sl))
	require.NoError(t, IfEmpty(ctx, st, inv, sl))

	items, err := st.ReadOnce(ctx, docstore.CollectionInventory)
	require.NoError(t, err)
	assert.Len(t, items.Documents, 5)
}

func TestIfEmptyLeavesExistingInventory(t *testing.T) {
	st := memstore.New()
	defer st.Close()
	ctx := context.Background()
	inv, sl := repos(st)

	_, err := inv.Add(ctx, model.ItemInput{Name: "Salt", Category: "Spice", Unit: "kg", Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, IfEmpty(ctx, st, inv, sl))

	items, err := st.ReadOnce(ctx, docstore.CollectionInventory)
	require.NoError(t, err)
	assert.Len(t, items.Documents, 1)
	salesSnap, err := st.ReadOnce(ctx, docstore.CollectionSales)
	require.NoError(t, err)
	assert.Len(t, salesSnap.Documents, 3)
}
