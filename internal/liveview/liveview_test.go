package liveview

import (
	"cmp"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/docstore/memstore"
)

type note struct {
	ID   string
	Text string `json:"text"`
}

func decodeNote(doc docstore.Document) (note, error) {
	var n note
	err := doc.Decode(&n)
	n.ID = doc.ID
	return n, err
}

func byID(a, b note) int { return cmp.Compare(a.ID, b.ID) }

func doc(id, text string) docstore.Document {
	data, _ := json.Marshal(map[string]string{"text": text})
	return docstore.Document{ID: id, Version: 1, Data: data}
}

func TestStaleSnapshotIgnored(t *testing.T) {
	v := New[note]("notes", decodeNote, byID)

	_, err := v.Put(5, doc("a", "fresh"))
	require.NoError(t, err)

	v.applySnapshot(docstore.Snapshot{Collection: "notes", Revision: 3, Documents: []docstore.Document{doc("a", "stale")}})
	got, ok := v.Get("a")
	require.True(t, ok)
	assert.Equal(t, "fresh", got.Text)
	assert.Equal(t, int64(5), v.Revision())

	v.applySnapshot(docstore.Snapshot{Collection: "notes", Revision: 6, Documents: []docstore.Document{doc("b", "x")}})
	assert.Equal(t, 1, v.Len())
	_, ok = v.Get("a")
	assert.False(t, ok, "a newer snapshot replaces the view")
}

func TestStalePutAndRemoveIgnored(t *testing.T) {
	v := New[note]("notes", decodeNote, byID)
	_, err := v.Put(4, doc("a", "x"))
	require.NoError(t, err)

	_, err = v.Put(2, doc("b", "old"))
	require.NoError(t, err)
	v.Remove(3, "a")

	assert.Equal(t, []note{{ID: "a", Text: "x"}}, v.List())
}

func TestStartWaitsForFirstSnapshot(t *testing.T) {
	st := memstore.New()
	defer st.Close()
	ctx := context.Background()
	_, err := st.Create(ctx, "notes", "b", map[string]string{"text": "2"})
	require.NoError(t, err)
	_, err = st.Create(ctx, "notes", "a", map[string]string{"text": "1"})
	require.NoError(t, err)

	v := New[note]("notes", decodeNote, byID)
	require.NoError(t, v.Start(ctx, st))
	defer v.Close()

	assert.Equal(t, []note{{ID: "a", Text: "1"}, {ID: "b", Text: "2"}}, v.List())
	assert.Equal(t, int64(2), v.Revision())
}

func TestStartCancelled(t *testing.T) {
	st := memstore.New()
	defer st.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := New[note]("notes", decodeNote, byID)
	assert.Error(t, v.Start(ctx, st))
}

func TestSubscriptionErrorKeepsView(t *testing.T) {
	v := New[note]("notes", decodeNote, byID)
	_, err := v.Put(1, doc("a", "x"))
	require.NoError(t, err)

	v.fail(assert.AnError)
	assert.ErrorIs(t, v.Err(), assert.AnError)
	assert.Equal(t, 1, v.Len())

	v.applySnapshot(docstore.Snapshot{Collection: "notes", Revision: 2})
	assert.NoError(t, v.Err())
}

func TestObserversGetCopies(t *testing.T) {
	v := New[note]("notes", decodeNote, byID)
	got := make(chan []note, 4)
	v.Subscribe(func(ns []note) {
		if len(ns) > 0 {
			ns[0].Text = "mutated"
		}
		got <- ns
	})

	_, err := v.Put(1, doc("a", "x"))
	require.NoError(t, err)

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
	n, _ := v.Get("a")
	assert.Equal(t, "x", n.Text)
}
