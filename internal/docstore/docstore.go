// Package docstore defines the document store the repositories are built on:
// named collections of JSON documents with live subscriptions, single-document
// writes and a guarded decrement. No multi-document transaction is offered.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names used by the application.
const (
	CollectionInventory = "inventory"
	CollectionSales     = "sales"
	CollectionUsers     = "users"
	CollectionTokens    = "revoked_tokens"
	CollectionSettings  = "settings"
	CollectionImages    = "images"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
	ErrGuard    = errors.New("guarded decrement rejected")
	ErrConflict = errors.New("document modified concurrently")
	ErrClosed   = errors.New("store closed")
)

// GuardError is returned by Decrement when the field holds less than requested.
// The document is left unchanged.
type GuardError struct {
	Field     string
	Current   int64
	Requested int64
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s is %d, cannot take %d", e.Field, e.Current, e.Requested)
}

func (e *GuardError) Is(target error) bool {
	return target == ErrGuard
}

// Fields is a set of top-level document fields to write.
type Fields map[string]any

// Document is one stored JSON object. Version starts at 1 and grows by one on
// every write to the document.
type Document struct {
	ID      string
	Version int64
	Data    json.RawMessage
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decoding document %s: %w", d.ID, err)
	}
	return nil
}

// Snapshot is the full content of a collection at Revision.
type Snapshot struct {
	Collection string
	Revision   int64
	Documents  []Document
}

// WriteResult is the confirmed outcome of a write. For deletes, Document is
// the document as it was before removal.
type WriteResult struct {
	Document Document
	Revision int64
}

// Store is the contract every backend implements. Revisions are per
// collection and grow by one with every successful write; snapshots carry the
// revision they reflect so readers can discard stale ones.
type Store interface {
	// Subscribe delivers the current snapshot and then the newest snapshot
	// after each change. Delivery is asynchronous and never goes backwards in
	// revision; a slow subscriber skips intermediate snapshots. Callbacks must
	// not block for long.
	Subscribe(ctx context.Context, collection string, onChange func(Snapshot), onError func(error)) (unsubscribe func(), err error)

	// Create stores data as a new document. An empty id is assigned by the
	// store; an explicit id that is taken fails with ErrExists.
	Create(ctx context.Context, collection, id string, data any) (WriteResult, error)

	Get(ctx context.Context, collection, id string) (Document, error)

	// Update overwrites the given top-level fields.
	Update(ctx context.Context, collection, id string, fields Fields) (WriteResult, error)

	// Decrement subtracts n from an integer field if and only if the field
	// holds at least n, setting the extra fields in the same write. Otherwise
	// it fails with a *GuardError.
	Decrement(ctx context.Context, collection, id, field string, n int64, set Fields) (WriteResult, error)

	Delete(ctx context.Context, collection, id string) (WriteResult, error)

	ReadOnce(ctx context.Context, collection string) (Snapshot, error)

	Close() error
}
