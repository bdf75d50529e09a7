package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/docstore/memstore"
	"github.com/erazemk/zaloga/internal/model"
)

func newRepo(t *testing.T) (*Repository, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	t.Cleanup(func() { st.Close() })
	r := New(st)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Close)
	return r, st
}

func rice() model.ItemInput {
	return model.ItemInput{
		Name:      "Basmati Rice",
		Category:  "Rice",
		Quantity:  500,
		Unit:      "kg",
		UnitPrice: decimal.NewFromInt(75),
		Threshold: 100,
		Notes:     "Premium quality",
	}
}

func TestAddThenList(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	item, err := r.Add(ctx, rice())
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.False(t, item.LastUpdated.IsZero())
	assert.Equal(t, int64(1), item.Version)

	list := r.List()
	require.Len(t, list, 1, "added item is visible immediately")
	got := list[0]
	assert.Equal(t, "Basmati Rice", got.Name)
	assert.Equal(t, "Rice", got.Category)
	assert.Equal(t, 500, got.Quantity)
	assert.Equal(t, "kg", got.Unit)
	assert.True(t, got.UnitPrice.Equal(decimal.NewFromInt(75)))
	assert.Equal(t, 100, got.Threshold)
	assert.Equal(t, "Premium quality", got.Notes)

	require.NoError(t, r.Remove(ctx, item.ID))
	assert.Empty(t, r.List())
	_, ok := r.Get(item.ID)
	assert.False(t, ok)
}

func TestAddValidates(t *testing.T) {
	r, st := newRepo(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		mod   func(*model.ItemInput)
		field string
	}{
		{"no name", func(in *model.ItemInput) { in.Name = " " }, "name"},
		{"no category", func(in *model.ItemInput) { in.Category = "" }, "category"},
		{"no unit", func(in *model.ItemInput) { in.Unit = "" }, "unit"},
		{"negative quantity", func(in *model.ItemInput) { in.Quantity = -1 }, "quantity"},
		{"negative price", func(in *model.ItemInput) { in.UnitPrice = decimal.NewFromInt(-1) }, "unit_price"},
		{"negative threshold", func(in *model.ItemInput) { in.Threshold = -1 }, "threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := rice()
			tt.mod(&in)
			_, err := r.Add(ctx, in)
			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	snap, err := st.ReadOnce(ctx, docstore.CollectionInventory)
	require.NoError(t, err)
	assert.Empty(t, snap.Documents, "invalid items are never written")
}

func TestUpdateMergesAndRefreshes(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	item, err := r.Add(ctx, rice())
	require.NoError(t, err)

	later := item.LastUpdated.Add(time.Minute)
	r.now = func() time.Time { return later }

	qty := 420
	updated, err := r.Update(ctx, item.ID, model.ItemPatch{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 420, updated.Quantity)
	assert.Equal(t, "Basmati Rice", updated.Name, "untouched fields survive")
	assert.True(t, updated.LastUpdated.Equal(later))
	assert.Equal(t, int64(2), updated.Version)

	got, _ := r.Get(item.ID)
	assert.Equal(t, 420, got.Quantity)
}

func TestUpdateAndRemoveMissing(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	name := "x"
	_, err := r.Update(ctx, "missing", model.ItemPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Remove(ctx, "missing"), ErrNotFound)
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	r, _ := newRepo(t)
	item, err := r.Add(context.Background(), rice())
	require.NoError(t, err)

	neg := -3
	_, err = r.Update(context.Background(), item.ID, model.ItemPatch{Threshold: &neg})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestListOrderedByLastUpdated(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "middle", "new"} {
		r.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		in := rice()
		in.Name = name
		_, err := r.Add(ctx, in)
		require.NoError(t, err)
	}

	var names []string
	for _, it := range r.List() {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"new", "middle", "old"}, names)
}

func TestSearch(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	_, err := r.Add(ctx, rice())
	require.NoError(t, err)
	oil := rice()
	oil.Name, oil.Category = "Olive Oil", "Oil"
	_, err = r.Add(ctx, oil)
	require.NoError(t, err)

	assert.Len(t, r.Search("RICE"), 1)
	assert.Len(t, r.Search("oil"), 1)
	assert.Len(t, r.Search(""), 2)
	assert.Empty(t, r.Search("wheat"))
}

func TestDecrementGuarded(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	item, err := r.Add(ctx, rice())
	require.NoError(t, err)

	updated, err := r.Decrement(ctx, item.ID, 450)
	require.NoError(t, err)
	assert.Equal(t, 50, updated.Quantity)

	_, err = r.Decrement(ctx, item.ID, 51)
	var guard *docstore.GuardError
	require.ErrorAs(t, err, &guard)
	assert.Equal(t, int64(50), guard.Current)

	got, _ := r.Get(item.ID)
	assert.Equal(t, 50, got.Quantity)

	_, err = r.Decrement(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestViewFollowsOtherWriters(t *testing.T) {
	r, st := newRepo(t)
	ctx := context.Background()

	// Another process writes straight to the store.
	other := New(st)
	_, err := other.Add(ctx, rice())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(r.List()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestObservers(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	seen := make(chan []model.Item, 16)
	unsubscribe := r.Subscribe(func(items []model.Item) { seen <- items })

	_, err := r.Add(ctx, rice())
	require.NoError(t, err)

	select {
	case items := <-seen:
		assert.Len(t, items, 1)
	case <-time.After(time.Second):
		t.Fatal("observer not notified")
	}

	unsubscribe()
	time.Sleep(20 * time.Millisecond)
	for len(seen) > 0 {
		<-seen
	}
	_, err = r.Add(ctx, rice())
	require.NoError(t, err)
	select {
	case <-seen:
		t.Fatal("notified after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStoreFailureLeavesView(t *testing.T) {
	r, st := newRepo(t)
	ctx := context.Background()

	item, err := r.Add(ctx, rice())
	require.NoError(t, err)

	st.FailNext(memstore.OpUpdate, docstore.CollectionInventory, errors.New("offline"))
	qty := 1
	_, err = r.Update(ctx, item.ID, model.ItemPatch{Quantity: &qty})
	require.Error(t, err)

	got, _ := r.Get(item.ID)
	assert.Equal(t, 500, got.Quantity)
}
