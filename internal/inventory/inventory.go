// Package inventory is the repository of stocked items. Reads are served from
// a live view of the inventory collection; writes go through to the store and
// are reflected locally as soon as the store confirms them.
package inventory

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

// ErrNotFound is returned for writes against an item the store does not have.
var ErrNotFound = errors.New("item not found")

// Stored form of an item. ID and version live on the document itself.
type itemDoc struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Quantity    int             `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Threshold   int             `json:"threshold"`
	LastUpdated time.Time       `json:"last_updated"`
	Notes       string          `json:"notes,omitempty"`
}

func decodeItem(doc docstore.Document) (model.Item, error) {
	var d itemDoc
	if err := doc.Decode(&d); err != nil {
		return model.Item{}, err
	}
	return model.Item{
		ID:          doc.ID,
		Name:        d.Name,
		Category:    d.Category,
		Quantity:    d.Quantity,
		Unit:        d.Unit,
		UnitPrice:   d.UnitPrice,
		Threshold:   d.Threshold,
		LastUpdated: d.LastUpdated,
		Notes:       d.Notes,
		Version:     doc.Version,
	}, nil
}

// Most recently updated first.
func compareItems(a, b model.Item) int {
	if c := b.LastUpdated.Compare(a.LastUpdated); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Repository owns the inventory collection.
type Repository struct {
	store docstore.Store
	view  *liveview.View[model.Item]
	now   func() time.Time
}

// New returns a repository over st. Call Start before relying on List.
func New(st docstore.Store) *Repository {
	return &Repository{
		store: st,
		view:  liveview.New[model.Item](docstore.CollectionInventory, decodeItem, compareItems),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Start subscribes to the inventory and waits for the first snapshot.
func (r *Repository) Start(ctx context.Context) error {
	return r.view.Start(ctx, r.store)
}

// Close stops the subscription.
func (r *Repository) Close() {
	r.view.Close()
}

// List returns all items, most recently updated first.
func (r *Repository) List() []model.Item {
	return r.view.List()
}

// Get returns the item from the local view.
func (r *Repository) Get(id string) (model.Item, bool) {
	return r.view.Get(id)
}

// Search returns items whose name or category contains term, ignoring case.
// An empty term matches everything.
func (r *Repository) Search(term string) []model.Item {
	term = strings.ToLower(strings.TrimSpace(term))
	items := r.view.List()
	if term == "" {
		return items
	}
	var out []model.Item
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), term) ||
			strings.Contains(strings.ToLower(it.Category), term) {
			out = append(out, it)
		}
	}
	return out
}

// Subscribe calls fn with the full item list after every change.
func (r *Repository) Subscribe(fn func([]model.Item)) (unsubscribe func()) {
	return r.view.Subscribe(fn)
}

// Err reports a failed subscription; the view keeps its last good state.
func (r *Repository) Err() error {
	return r.view.Err()
}

// Add validates and stores a new item under a store-assigned ID.
func (r *Repository) Add(ctx context.Context, in model.ItemInput) (model.Item, error) {
	return r.AddWithID(ctx, "", in)
}

// AddWithID stores a new item under id. It fails with docstore.ErrExists if
// the ID is taken.
func (r *Repository) AddWithID(ctx context.Context, id string, in model.ItemInput) (model.Item, error) {
	if err := in.Validate(); err != nil {
		return model.Item{}, err
	}
	doc := itemDoc{
		Name:        strings.TrimSpace(in.Name),
		Category:    strings.TrimSpace(in.Category),
		Quantity:    in.Quantity,
		Unit:        strings.TrimSpace(in.Unit),
		UnitPrice:   in.UnitPrice,
		Threshold:   in.Threshold,
		LastUpdated: r.now(),
		Notes:       in.Notes,
	}
	res, err := r.store.Create(ctx, docstore.CollectionInventory, id, doc)
	if err != nil {
		return model.Item{}, fmt.Errorf("adding item: %w", err)
	}
	return r.view.Put(res.Revision, res.Document)
}

// Update merges the set fields of patch onto the stored item and refreshes
// its last-updated time.
func (r *Repository) Update(ctx context.Context, id string, patch model.ItemPatch) (model.Item, error) {
	if err := patch.Validate(); err != nil {
		return model.Item{}, err
	}

	fields := docstore.Fields{"last_updated": r.now()}
	if patch.Name != nil {
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Category != nil {
		fields["category"] = strings.TrimSpace(*patch.Category)
	}
	if patch.Quantity != nil {
		fields["quantity"] = *patch.Quantity
	}
	if patch.Unit != nil {
		fields["unit"] = strings.TrimSpace(*patch.Unit)
	}
	if patch.UnitPrice != nil {
		fields["unit_price"] = *patch.UnitPrice
	}
	if patch.Threshold != nil {
		fields["threshold"] = *patch.Threshold
	}
	if patch.Notes != nil {
		fields["notes"] = *patch.Notes
	}

	res, err := r.store.Update(ctx, docstore.CollectionInventory, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return model.Item{}, ErrNotFound
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("updating item: %w", err)
	}
	return r.view.Put(res.Revision, res.Document)
}

// Remove deletes the item.
func (r *Repository) Remove(ctx context.Context, id string) error {
	res, err := r.store.Delete(ctx, docstore.CollectionInventory, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("removing item: %w", err)
	}
	r.view.Remove(res.Revision, id)
	return nil
}

// Decrement takes n units off the item's quantity in one guarded store write.
// If fewer than n are on hand the item is untouched and the returned error
// wraps a *docstore.GuardError holding the quantity the store saw.
func (r *Repository) Decrement(ctx context.Context, id string, n int) (model.Item, error) {
	res, err := r.store.Decrement(ctx, docstore.CollectionInventory, id, "quantity", int64(n),
		docstore.Fields{"last_updated": r.now()})
	if errors.Is(err, docstore.ErrNotFound) {
		return model.Item{}, ErrNotFound
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("decrementing item: %w", err)
	}
	return r.view.Put(res.Revision, res.Document)
}
