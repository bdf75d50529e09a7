package lowstock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erazemk/zaloga/internal/model"
)

type staticInventory []model.Item

func (s staticInventory) List() []model.Item { return s }

func TestGetReturnsExactlyLowItems(t *testing.T) {
	inv := staticInventory{
		{ID: "a", Quantity: 10, Threshold: 20},
		{ID: "b", Quantity: 20, Threshold: 20},
		{ID: "c", Quantity: 21, Threshold: 20},
		{ID: "d", Quantity: 0, Threshold: 0},
	}
	e := New(inv)

	got := e.Get()
	ids := make([]string, 0, len(got))
	for _, it := range got {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"a", "b", "d"}, ids)
	assert.Equal(t, got, e.Get(), "repeated calls agree")
	assert.Equal(t, 3, e.Count())
}

func TestGetEmpty(t *testing.T) {
	e := New(staticInventory{{ID: "a", Quantity: 5, Threshold: 1}})
	assert.Empty(t, e.Get())
	assert.NotNil(t, e.Get())
}
