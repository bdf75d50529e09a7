// Package redisstore implements docstore.Store on Redis. Each collection is a
// pair of hashes (documents and versions) plus a revision counter; every write
// is a Lua script that bumps the counter and publishes it, so stores in other
// processes see the change.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/erazemk/zaloga/internal/docstore"
)

// DefaultPrefix namespaces every key the store touches.
const DefaultPrefix = "zaloga"

// MaxAttempts bounds the compare-and-swap retries of a single write.
const MaxAttempts = 8

// Store is a Redis-backed document store.
type Store struct {
	client *redis.Client
	prefix string
	hub    *docstore.Hub

	mu        sync.Mutex
	listeners map[string]*redis.PubSub
	closed    bool
	wg        sync.WaitGroup
}

// New returns a store using client. The client is owned by the caller. An
// empty prefix selects DefaultPrefix.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		client:    client,
		prefix:    prefix,
		hub:       docstore.NewHub(),
		listeners: make(map[string]*redis.PubSub),
	}
}

func (s *Store) keys(collection string) []string {
	base := s.prefix + ":" + collection
	return []string{base + ":data", base + ":ver", base + ":rev"}
}

func (s *Store) channel(collection string) string {
	return s.prefix + ":changes:" + collection
}

func (s *Store) Subscribe(ctx context.Context, collection string, onChange func(docstore.Snapshot), onError func(error)) (func(), error) {
	if err := s.listen(ctx, collection); err != nil {
		return nil, err
	}
	offer, remove := s.hub.Add(collection, onChange, onError)
	snap, err := s.ReadOnce(ctx, collection)
	if err != nil {
		remove()
		return nil, err
	}
	offer(snap)
	return remove, nil
}

// listen starts the change listener for collection once.
func (s *Store) listen(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	if _, ok := s.listeners[collection]; ok {
		return nil
	}

	pubsub := s.client.Subscribe(ctx, s.channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribing to %s: %w", collection, err)
	}
	s.listeners[collection] = pubsub

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for range pubsub.Channel() {
			s.publish(context.Background(), collection)
		}
	}()
	return nil
}

func (s *Store) Create(ctx context.Context, collection, id string, data any) (docstore.WriteResult, error) {
	if err := s.open(); err != nil {
		return docstore.WriteResult{}, err
	}
	raw, err := docstore.Marshal(data)
	if err != nil {
		return docstore.WriteResult{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	res, err := createScript.Run(ctx, s.client, s.keys(collection), id, string(raw), s.channel(collection)).Int64Slice()
	if err != nil {
		return docstore.WriteResult{}, fmt.Errorf("creating document: %w", err)
	}
	if res[0] == 0 {
		return docstore.WriteResult{}, docstore.ErrExists
	}

	s.publish(context.WithoutCancel(ctx), collection)
	return docstore.WriteResult{
		Document: docstore.Document{ID: id, Version: 1, Data: raw},
		Revision: res[1],
	}, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := s.open(); err != nil {
		return docstore.Document{}, err
	}
	vals, err := getScript.Run(ctx, s.client, s.keys(collection), id).Slice()
	if err != nil {
		return docstore.Document{}, fmt.Errorf("getting document: %w", err)
	}
	if len(vals) == 0 {
		return docstore.Document{}, docstore.ErrNotFound
	}
	data, _ := vals[0].(string)
	version, _ := vals[1].(int64)
	return docstore.Document{ID: id, Version: version, Data: json.RawMessage(data)}, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) (docstore.WriteResult, error) {
	return s.swap(ctx, collection, id, func(doc docstore.Document) (json.RawMessage, error) {
		return docstore.Merge(doc.Data, fields)
	})
}

// Decrement runs the guard and the write in one script, so it never conflicts.
func (s *Store) Decrement(ctx context.Context, collection, id, field string, n int64, set docstore.Fields) (docstore.WriteResult, error) {
	if err := s.open(); err != nil {
		return docstore.WriteResult{}, err
	}
	if set == nil {
		set = docstore.Fields{}
	}
	rawSet, err := json.Marshal(set)
	if err != nil {
		return docstore.WriteResult{}, fmt.Errorf("encoding fields: %w", err)
	}

	vals, err := decrementScript.Run(ctx, s.client, s.keys(collection),
		id, field, n, string(rawSet), s.channel(collection)).Slice()
	if err != nil {
		return docstore.WriteResult{}, fmt.Errorf("decrementing document: %w", err)
	}
	code, _ := vals[0].(int64)
	switch code {
	case -1:
		return docstore.WriteResult{}, docstore.ErrNotFound
	case -2:
		current, _ := vals[1].(int64)
		return docstore.WriteResult{}, &docstore.GuardError{Field: field, Current: current, Requested: n}
	case -3:
		return docstore.WriteResult{}, fmt.Errorf("field %s is not an integer", field)
	}
	rev, _ := vals[1].(int64)
	data, _ := vals[2].(string)

	s.publish(context.WithoutCancel(ctx), collection)
	return docstore.WriteResult{
		Document: docstore.Document{ID: id, Version: code, Data: json.RawMessage(data)},
		Revision: rev,
	}, nil
}

func (s *Store) swap(ctx context.Context, collection, id string, mutate func(docstore.Document) (json.RawMessage, error)) (docstore.WriteResult, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		doc, err := s.Get(ctx, collection, id)
		if err != nil {
			return docstore.WriteResult{}, err
		}
		data, err := mutate(doc)
		if err != nil {
			return docstore.WriteResult{}, err
		}

		res, err := swapScript.Run(ctx, s.client, s.keys(collection),
			id, doc.Version, string(data), s.channel(collection)).Int64Slice()
		if err != nil {
			return docstore.WriteResult{}, fmt.Errorf("writing document: %w", err)
		}
		switch res[0] {
		case -1:
			return docstore.WriteResult{}, docstore.ErrNotFound
		case -2:
			continue
		}

		s.publish(context.WithoutCancel(ctx), collection)
		return docstore.WriteResult{
			Document: docstore.Document{ID: id, Version: res[0], Data: data},
			Revision: res[1],
		}, nil
	}
	return docstore.WriteResult{}, docstore.ErrConflict
}

func (s *Store) Delete(ctx context.Context, collection, id string) (docstore.WriteResult, error) {
	if err := s.open(); err != nil {
		return docstore.WriteResult{}, err
	}
	vals, err := deleteScript.Run(ctx, s.client, s.keys(collection), id, s.channel(collection)).Slice()
	if err != nil {
		return docstore.WriteResult{}, fmt.Errorf("deleting document: %w", err)
	}
	if len(vals) == 0 {
		return docstore.WriteResult{}, docstore.ErrNotFound
	}
	data, _ := vals[0].(string)
	version, _ := vals[1].(int64)
	rev, _ := vals[2].(int64)

	s.publish(context.WithoutCancel(ctx), collection)
	return docstore.WriteResult{
		Document: docstore.Document{ID: id, Version: version, Data: json.RawMessage(data)},
		Revision: rev,
	}, nil
}

func (s *Store) ReadOnce(ctx context.Context, collection string) (docstore.Snapshot, error) {
	if err := s.open(); err != nil {
		return docstore.Snapshot{}, err
	}
	vals, err := readScript.Run(ctx, s.client, s.keys(collection)).Slice()
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("reading collection: %w", err)
	}
	if len(vals) != 3 {
		return docstore.Snapshot{}, fmt.Errorf("reading collection: unexpected reply of %d values", len(vals))
	}

	rev, _ := vals[0].(int64)
	data, _ := vals[1].([]any)
	versions, _ := vals[2].([]any)

	vers := make(map[string]int64, len(versions)/2)
	for i := 0; i+1 < len(versions); i += 2 {
		id, _ := versions[i].(string)
		v, _ := versions[i+1].(string)
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return docstore.Snapshot{}, fmt.Errorf("parsing version of %s: %w", id, err)
		}
		vers[id] = n
	}

	snap := docstore.Snapshot{Collection: collection, Revision: rev}
	for i := 0; i+1 < len(data); i += 2 {
		id, _ := data[i].(string)
		body, _ := data[i+1].(string)
		snap.Documents = append(snap.Documents, docstore.Document{
			ID:      id,
			Version: vers[id],
			Data:    json.RawMessage(body),
		})
	}
	sort.Slice(snap.Documents, func(i, j int) bool {
		return snap.Documents[i].ID < snap.Documents[j].ID
	})
	return snap, nil
}

// Close stops listeners and subscriptions. The client is left open.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var errs []error
	for _, ps := range s.listeners {
		errs = append(errs, ps.Close())
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.hub.Close()
	return errors.Join(errs...)
}

func (s *Store) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	return nil
}

func (s *Store) publish(ctx context.Context, collection string) {
	if s.hub.Subscribers(collection) == 0 {
		return
	}
	snap, err := s.ReadOnce(ctx, collection)
	if err != nil {
		if !errors.Is(err, docstore.ErrClosed) {
			slog.Warn("refreshing subscription", "collection", collection, "error", err)
			s.hub.Fail(collection, err)
		}
		return
	}
	s.hub.Publish(snap)
}
