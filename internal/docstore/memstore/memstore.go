// Package memstore is an in-process docstore.Store. It backs the "memory"
// store mode and doubles as the test store, with hooks to inject failures and
// to pause writes.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/erazemk/zaloga/internal/docstore"
)

// Op names a write operation for hooks and injected failures.
type Op string

const (
	OpCreate    Op = "create"
	OpUpdate    Op = "update"
	OpDecrement Op = "decrement"
	OpDelete    Op = "delete"
)

// Hook runs before a write is applied, outside the store lock.
type Hook func(op Op, collection, id string)

type collection struct {
	revision int64
	docs     map[string]docstore.Document
}

type fault struct {
	op         Op
	collection string
	err        error
}

// Store keeps every collection in memory.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	faults      []fault
	hook        Hook
	closed      bool
	hub         *docstore.Hub
}

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		hub:         docstore.NewHub(),
	}
}

// FailNext makes the next op on collection fail with err without writing.
func (s *Store) FailNext(op Op, collectionName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{op: op, collection: collectionName, err: err})
}

// SetHook installs h; nil removes it.
func (s *Store) SetHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

func (s *Store) Subscribe(ctx context.Context, collectionName string, onChange func(docstore.Snapshot), onError func(error)) (func(), error) {
	offer, remove := s.hub.Add(collectionName, onChange, onError)
	snap, err := s.ReadOnce(ctx, collectionName)
	if err != nil {
		remove()
		return nil, err
	}
	offer(snap)
	return remove, nil
}

func (s *Store) Create(ctx context.Context, collectionName, id string, data any) (docstore.WriteResult, error) {
	raw, err := docstore.Marshal(data)
	if err != nil {
		return docstore.WriteResult{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	return s.write(ctx, OpCreate, collectionName, id, func(c *collection) (docstore.Document, error) {
		if _, ok := c.docs[id]; ok {
			return docstore.Document{}, docstore.ErrExists
		}
		doc := docstore.Document{ID: id, Version: 1, Data: raw}
		c.docs[id] = doc
		return doc, nil
	})
}

func (s *Store) Get(ctx context.Context, collectionName, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.Document{}, docstore.ErrClosed
	}
	c := s.collection(collectionName)
	doc, ok := c.docs[id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return clone(doc), nil
}

func (s *Store) Update(ctx context.Context, collectionName, id string, fields docstore.Fields) (docstore.WriteResult, error) {
	return s.write(ctx, OpUpdate, collectionName, id, func(c *collection) (docstore.Document, error) {
		doc, ok := c.docs[id]
		if !ok {
			return docstore.Document{}, docstore.ErrNotFound
		}
		data, err := docstore.Merge(doc.Data, fields)
		if err != nil {
			return docstore.Document{}, err
		}
		doc = docstore.Document{ID: id, Version: doc.Version + 1, Data: data}
		c.docs[id] = doc
		return doc, nil
	})
}

func (s *Store) Decrement(ctx context.Context, collectionName, id, field string, n int64, set docstore.Fields) (docstore.WriteResult, error) {
	return s.write(ctx, OpDecrement, collectionName, id, func(c *collection) (docstore.Document, error) {
		doc, ok := c.docs[id]
		if !ok {
			return docstore.Document{}, docstore.ErrNotFound
		}
		data, err := docstore.ApplyDecrement(doc.Data, field, n, set)
		if err != nil {
			return docstore.Document{}, err
		}
		doc = docstore.Document{ID: id, Version: doc.Version + 1, Data: data}
		c.docs[id] = doc
		return doc, nil
	})
}

func (s *Store) Delete(ctx context.Context, collectionName, id string) (docstore.WriteResult, error) {
	return s.write(ctx, OpDelete, collectionName, id, func(c *collection) (docstore.Document, error) {
		doc, ok := c.docs[id]
		if !ok {
			return docstore.Document{}, docstore.ErrNotFound
		}
		delete(c.docs, id)
		return doc, nil
	})
}

func (s *Store) ReadOnce(ctx context.Context, collectionName string) (docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.Snapshot{}, docstore.ErrClosed
	}
	return s.snapshot(collectionName), nil
}

// Close stops all subscriptions; later calls fail with docstore.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

func (s *Store) write(ctx context.Context, op Op, collectionName, id string, apply func(*collection) (docstore.Document, error)) (docstore.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return docstore.WriteResult{}, err
	}

	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(op, collectionName, id)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.WriteResult{}, docstore.ErrClosed
	}
	if err := s.takeFault(op, collectionName); err != nil {
		s.mu.Unlock()
		return docstore.WriteResult{}, err
	}

	c := s.collection(collectionName)
	doc, err := apply(c)
	if err != nil {
		s.mu.Unlock()
		return docstore.WriteResult{}, err
	}
	c.revision++
	result := docstore.WriteResult{Document: clone(doc), Revision: c.revision}
	snap := s.snapshot(collectionName)
	s.mu.Unlock()

	s.hub.Publish(snap)
	return result, nil
}

func (s *Store) takeFault(op Op, collectionName string) error {
	for i, f := range s.faults {
		if f.op == op && f.collection == collectionName {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
			return f.err
		}
	}
	return nil
}

func (s *Store) collection(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]docstore.Document)}
		s.collections[name] = c
	}
	return c
}

func (s *Store) snapshot(name string) docstore.Snapshot {
	c := s.collection(name)
	snap := docstore.Snapshot{Collection: name, Revision: c.revision}
	for _, doc := range c.docs {
		snap.Documents = append(snap.Documents, clone(doc))
	}
	sort.Slice(snap.Documents, func(i, j int) bool {
		return snap.Documents[i].ID < snap.Documents[j].ID
	})
	return snap
}

func clone(doc docstore.Document) docstore.Document {
	doc.Data = append(json.RawMessage(nil), doc.Data...)
	return doc
}
