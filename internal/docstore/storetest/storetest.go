// Package storetest holds the behavioural checks every docstore.Store backend
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/docstore"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) docstore.Store

type stock struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

// Run exercises the full store contract against stores made by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s docstore.Store)
	}{
		{"CreateAssignsID", testCreateAssignsID},
		{"CreateExplicitID", testCreateExplicitID},
		{"GetMissing", testGetMissing},
		{"UpdateMergesFields", testUpdateMergesFields},
		{"UpdateMissing", testUpdateMissing},
		{"Delete", testDelete},
		{"DecrementGuard", testDecrementGuard},
		{"DecrementConcurrent", testDecrementConcurrent},
		{"RevisionsGrow", testRevisionsGrow},
		{"ReadOnceOrdered", testReadOnceOrdered},
		{"SubscribeInitialAndChanges", testSubscribeInitialAndChanges},
		{"Unsubscribe", testUnsubscribe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func testCreateAssignsID(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	res, err := s.Create(ctx, "things", "", stock{Name: "rice", Quantity: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Document.ID)
	assert.Equal(t, int64(1), res.Document.Version)
	assert.Equal(t, int64(1), res.Revision)

	doc, err := s.Get(ctx, "things", res.Document.ID)
	require.NoError(t, err)
	var got stock
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, stock{Name: "rice", Quantity: 5}, got)
}

func testCreateExplicitID(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, "things", "a", stock{Name: "oil"})
	require.NoError(t, err)

	_, err = s.Create(ctx, "things", "a", stock{Name: "other"})
	assert.ErrorIs(t, err, docstore.ErrExists)

	_, err = s.Create(ctx, "things", "b", []int{1, 2})
	assert.Error(t, err, "non-object documents are rejected")
}

func testGetMissing(t *testing.T, s docstore.Store) {
	_, err := s.Get(context.Background(), "things", "nope")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testUpdateMergesFields(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, "things", "a", stock{Name: "oil", Quantity: 3, Note: "keep"})
	require.NoError(t, err)

	res, err := s.Update(ctx, "things", "a", docstore.Fields{"quantity": 9})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Document.Version)

	var got stock
	require.NoError(t, res.Document.Decode(&got))
	assert.Equal(t, stock{Name: "oil", Quantity: 9, Note: "keep"}, got)
}

func testUpdateMissing(t *testing.T, s docstore.Store) {
	_, err := s.Update(context.Background(), "things", "nope", docstore.Fields{"quantity": 1})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testDelete(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, "things", "a", stock{Name: "oil"})
	require.NoError(t, err)

	res, err := s.Delete(ctx, "things", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", res.Document.ID)

	_, err = s.Get(ctx, "things", "a")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = s.Delete(ctx, "things", "a")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testDecrementGuard(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, "things", "a", stock{Name: "oil", Quantity: 10})
	require.NoError(t, err)

	res, err := s.Decrement(ctx, "things", "a", "quantity", 4, docstore.Fields{"note": "sold"})
	require.NoError(t, err)
	var got stock
	require.NoError(t, res.Document.Decode(&got))
	assert.Equal(t, int64(6), got.Quantity)
	assert.Equal(t, "sold", got.Note)

	_, err = s.Decrement(ctx, "things", "a", "quantity", 7, nil)
	require.ErrorIs(t, err, docstore.ErrGuard)
	var guard *docstore.GuardError
	require.True(t, errors.As(err, &guard))
	assert.Equal(t, int64(6), guard.Current)
	assert.Equal(t, int64(7), guard.Requested)

	doc, err := s.Get(ctx, "things", "a")
	require.NoError(t, err)
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, int64(6), got.Quantity, "rejected decrement must not write")

	_, err = s.Decrement(ctx, "things", "missing", "quantity", 1, nil)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = s.Decrement(ctx, "things", "a", "name", 1, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, docstore.ErrGuard)
	doc, err = s.Get(ctx, "things", "a")
	require.NoError(t, err)
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, "oil", got.Name)
	assert.Equal(t, int64(6), got.Quantity)
}

func testDecrementConcurrent(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, "things", "a", stock{Name: "oil", Quantity: 10})
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		failed  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Decrement(ctx, "things", "a", "quantity", 3, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
			} else {
				failed = append(failed, err)
			}
		}()
	}
	wg.Wait()

	// Only the guard may turn a decrement away; conflicts and driver errors
	// are failures of the store.
	for _, err := range failed {
		assert.ErrorIs(t, err, docstore.ErrGuard)
	}
	assert.Equal(t, 3, success)

	doc, err := s.Get(ctx, "things", "a")
	require.NoError(t, err)
	var got stock
	require.NoError(t, doc.Decode(&got))
	assert.GreaterOrEqual(t, got.Quantity, int64(0))
	assert.Equal(t, int64(10-3*success), got.Quantity)
}

func testRevisionsGrow(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	r1, err := s.Create(ctx, "things", "a", stock{Name: "a"})
	require.NoError(t, err)
	r2, err := s.Update(ctx, "things", "a", docstore.Fields{"quantity": 2})
	require.NoError(t, err)
	r3, err := s.Delete(ctx, "things", "a")
	require.NoError(t, err)
	assert.Less(t, r1.Revision, r2.Revision)
	assert.Less(t, r2.Revision, r3.Revision)

	other, err := s.Create(ctx, "others", "a", stock{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Revision, "revisions are per collection")

	snap, err := s.ReadOnce(ctx, "things")
	require.NoError(t, err)
	assert.Equal(t, r3.Revision, snap.Revision)
	assert.Empty(t, snap.Documents)
}

func testReadOnceOrdered(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		_, err := s.Create(ctx, "things", id, stock{Name: id})
		require.NoError(t, err)
	}
	snap, err := s.ReadOnce(ctx, "things")
	require.NoError(t, err)
	require.Len(t, snap.Documents, 3)
	assert.Equal(t, "a", snap.Documents[0].ID)
	assert.Equal(t, "b", snap.Documents[1].ID)
	assert.Equal(t, "c", snap.Documents[2].ID)

	empty, err := s.ReadOnce(ctx, "never-written")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Revision)
	assert.Empty(t, empty.Documents)
}

func testSubscribeInitialAndChanges(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	_, err := s.Create(ctx, "things", "a", stock{Name: "a"})
	require.NoError(t, err)

	snaps := make(chan docstore.Snapshot, 16)
	unsubscribe, err := s.Subscribe(ctx, "things", func(snap docstore.Snapshot) {
		snaps <- snap
	}, func(err error) {
		t.Errorf("subscription error: %v", err)
	})
	require.NoError(t, err)
	defer unsubscribe()

	first := waitSnapshot(t, snaps)
	assert.Len(t, first.Documents, 1)

	last, err := s.Create(ctx, "things", "b", stock{Name: "b"})
	require.NoError(t, err)

	var latest docstore.Snapshot
	for latest.Revision < last.Revision {
		next := waitSnapshot(t, snaps)
		assert.Greater(t, next.Revision, first.Revision, "snapshots never go backwards")
		latest = next
	}
	assert.Len(t, latest.Documents, 2)
}

func testUnsubscribe(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	snaps := make(chan docstore.Snapshot, 16)
	unsubscribe, err := s.Subscribe(ctx, "things", func(snap docstore.Snapshot) {
		snaps <- snap
	}, nil)
	require.NoError(t, err)
	waitSnapshot(t, snaps)
	unsubscribe()

	_, err = s.Create(ctx, "things", "a", stock{Name: "a"})
	require.NoError(t, err)

	select {
	case snap := <-snaps:
		t.Fatalf("snapshot after unsubscribe: revision %d", snap.Revision)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitSnapshot(t *testing.T, snaps <-chan docstore.Snapshot) docstore.Snapshot {
	t.Helper()
	select {
	case snap := <-snaps:
		return snap
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return docstore.Snapshot{}
	}
}
