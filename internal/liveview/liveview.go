// Package liveview keeps an in-memory copy of one document collection,
// fed by a store subscription and by the confirmed results of local writes.
// The copy only ever moves forward in revision.
package liveview

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/erazemk/zaloga/internal/docstore"
)

// Decoder turns a stored document into a record.
type Decoder[T any] func(doc docstore.Document) (T, error)

// View is a materialized, observable view of a collection.
type View[T any] struct {
	collection string
	decode     Decoder[T]
	compare    func(a, b T) int

	mu       sync.RWMutex
	records  map[string]T
	revision int64
	err      error

	ready     chan struct{}
	readyOnce sync.Once
	cancel    func()

	obsMu     sync.Mutex
	observers map[int]func([]T)
	nextObs   int
	notifyMu  sync.Mutex
}

// New returns an empty view of collection. compare orders List output.
func New[T any](collection string, decode Decoder[T], compare func(a, b T) int) *View[T] {
	return &View[T]{
		collection: collection,
		decode:     decode,
		compare:    compare,
		records:    make(map[string]T),
		ready:      make(chan struct{}),
		observers:  make(map[int]func([]T)),
	}
}

// Start subscribes to the collection and waits for the first snapshot.
func (v *View[T]) Start(ctx context.Context, st docstore.Store) error {
	unsubscribe, err := st.Subscribe(ctx, v.collection, v.applySnapshot, v.fail)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", v.collection, err)
	}

	v.mu.Lock()
	v.cancel = unsubscribe
	v.mu.Unlock()

	select {
	case <-v.ready:
		return nil
	case <-ctx.Done():
		unsubscribe()
		return ctx.Err()
	}
}

// Close stops the subscription. The last view stays readable.
func (v *View[T]) Close() {
	v.mu.Lock()
	cancel := v.cancel
	v.cancel = nil
	v.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// List returns every record, ordered by compare.
func (v *View[T]) List() []T {
	v.mu.RLock()
	out := make([]T, 0, len(v.records))
	for _, rec := range v.records {
		out = append(out, rec)
	}
	v.mu.RUnlock()

	slices.SortFunc(out, v.compare)
	return out
}

// Get looks a record up by ID.
func (v *View[T]) Get(id string) (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rec, ok := v.records[id]
	return rec, ok
}

// Len is the number of records in the view.
func (v *View[T]) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.records)
}

// Revision is the store revision the view reflects.
func (v *View[T]) Revision() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.revision
}

// Err returns the last subscription error, cleared by the next snapshot.
func (v *View[T]) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// Subscribe registers fn to receive the full, ordered list after every
// change. The returned function unregisters it.
func (v *View[T]) Subscribe(fn func([]T)) (unsubscribe func()) {
	v.obsMu.Lock()
	id := v.nextObs
	v.nextObs++
	v.observers[id] = fn
	v.obsMu.Unlock()

	return func() {
		v.obsMu.Lock()
		delete(v.observers, id)
		v.obsMu.Unlock()
	}
}

// Put applies a confirmed write. It is ignored if the view already
// reflects a later revision.
func (v *View[T]) Put(rev int64, doc docstore.Document) (T, error) {
	rec, err := v.decode(doc)
	if err != nil {
		return rec, err
	}

	v.mu.Lock()
	applied := rev >= v.revision
	if applied {
		v.records[doc.ID] = rec
		v.revision = rev
	}
	v.mu.Unlock()

	if applied {
		v.notify()
	}
	return rec, nil
}

// Remove applies a confirmed delete, with the same revision rule as Put.
func (v *View[T]) Remove(rev int64, id string) {
	v.mu.Lock()
	applied := rev >= v.revision
	if applied {
		delete(v.records, id)
		v.revision = rev
	}
	v.mu.Unlock()

	if applied {
		v.notify()
	}
}

func (v *View[T]) applySnapshot(snap docstore.Snapshot) {
	records := make(map[string]T, len(snap.Documents))
	for _, doc := range snap.Documents {
		rec, err := v.decode(doc)
		if err != nil {
			slog.Warn("skipping undecodable document", "collection", v.collection, "id", doc.ID, "error", err)
			continue
		}
		records[doc.ID] = rec
	}

	v.mu.Lock()
	applied := snap.Revision >= v.revision
	if applied {
		v.records = records
		v.revision = snap.Revision
		v.err = nil
	}
	v.mu.Unlock()

	v.readyOnce.Do(func() { close(v.ready) })
	if applied {
		v.notify()
	}
}

func (v *View[T]) fail(err error) {
	slog.Error("subscription failed", "collection", v.collection, "error", err)
	v.mu.Lock()
	v.err = err
	v.mu.Unlock()
}

// notify sends the current list to every observer. Serialized so that the
// last notification always carries the newest state.
func (v *View[T]) notify() {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.obsMu.Lock()
	fns := make([]func([]T), 0, len(v.observers))
	for _, fn := range v.observers {
		fns = append(fns, fn)
	}
	v.obsMu.Unlock()
	if len(fns) == 0 {
		return
	}

	list := v.List()
	for _, fn := range fns {
		fn(slices.Clone(list))
	}
}
