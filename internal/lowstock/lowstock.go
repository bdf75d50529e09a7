// Package lowstock answers which items are at or below their threshold.
package lowstock

import "github.com/erazemk/zaloga/internal/model"

// Lister is the read side of the inventory.
type Lister interface {
	List() []model.Item
}

// Evaluator computes low-stock items from the current inventory on every call.
type Evaluator struct {
	inventory Lister
}

func New(inventory Lister) *Evaluator {
	return &Evaluator{inventory: inventory}
}

// Get returns every item whose quantity is at or below its threshold, in
// inventory order.
func (e *Evaluator) Get() []model.Item {
	return Filter(e.inventory.List())
}

// Count is len(Get()).
func (e *Evaluator) Count() int {
	return len(e.Get())
}

// Filter keeps the low-stock items of items.
func Filter(items []model.Item) []model.Item {
	out := []model.Item{}
	for _, it := range items {
		if it.LowStock() {
			out = append(out, it)
		}
	}
	return out
}
