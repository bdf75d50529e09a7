// Package sqlstore implements docstore.Store on a SQL database (SQLite or
// MySQL). Read-modify-write operations are compare-and-swap on the document
// version, retried a bounded number of times.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/docstore"
)

// MaxAttempts bounds the compare-and-swap retries of a single write.
const MaxAttempts = 8

var errVersionMismatch = errors.New("version mismatch")

type docRow struct {
	ID      string `db:"id"`
	Version int64  `db:"version"`
	Data    string `db:"data"`
}

func (r docRow) document() docstore.Document {
	return docstore.Document{ID: r.ID, Version: r.Version, Data: json.RawMessage(r.Data)}
}

// Store is a SQL-backed document store.
type Store struct {
	db     *sqlx.DB
	driver string
	hub    *docstore.Hub
}

// New wraps an open database. driver is db.DriverSQLite or db.DriverMySQL and
// the schema must already exist.
func New(conn *sql.DB, driver string) *Store {
	return &Store{
		db:     sqlx.NewDb(conn, driver),
		driver: driver,
		hub:    docstore.NewHub(),
	}
}

func (s *Store) Subscribe(ctx context.Context, collection string, onChange func(docstore.Snapshot), onError func(error)) (func(), error) {
	offer, remove := s.hub.Add(collection, onChange, onError)
	snap, err := s.ReadOnce(ctx, collection)
	if err != nil {
		remove()
		return nil, err
	}
	offer(snap)
	return remove, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, data any) (docstore.WriteResult, error) {
	raw, err := docstore.Marshal(data)
	if err != nil {
		return docstore.WriteResult{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	return s.write(ctx, collection, func(tx *sqlx.Tx) (docstore.Document, error) {
		var count int
		err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM documents WHERE collection = ? AND id = ?`, collection, id)
		if err != nil {
			return docstore.Document{}, fmt.Errorf("checking document: %w", err)
		}
		if count > 0 {
			return docstore.Document{}, docstore.ErrExists
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, version, data) VALUES (?, ?, 1, ?)`,
			collection, id, string(raw))
		if err != nil {
			return docstore.Document{}, fmt.Errorf("inserting document: %w", err)
		}
		return docstore.Document{ID: id, Version: 1, Data: raw}, nil
	})
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var row docRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, version, data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("getting document: %w", err)
	}
	return row.document(), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) (docstore.WriteResult, error) {
	return s.swap(ctx, collection, id, func(doc docstore.Document) (json.RawMessage, error) {
		return docstore.Merge(doc.Data, fields)
	})
}

func (s *Store) Decrement(ctx context.Context, collection, id, field string, n int64, set docstore.Fields) (docstore.WriteResult, error) {
	return s.swap(ctx, collection, id, func(doc docstore.Document) (json.RawMessage, error) {
		return docstore.ApplyDecrement(doc.Data, field, n, set)
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) (docstore.WriteResult, error) {
	return s.write(ctx, collection, func(tx *sqlx.Tx) (docstore.Document, error) {
		row, err := getRow(ctx, tx, collection, id)
		if err != nil {
			return docstore.Document{}, err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
			return docstore.Document{}, fmt.Errorf("deleting document: %w", err)
		}
		return row.document(), nil
	})
}

func (s *Store) ReadOnce(ctx context.Context, collection string) (docstore.Snapshot, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: s.driver == db.DriverMySQL})
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("beginning read: %w", err)
	}
	defer tx.Rollback()

	snap := docstore.Snapshot{Collection: collection}
	err = tx.GetContext(ctx, &snap.Revision,
		`SELECT COALESCE(MAX(revision), 0) FROM revisions WHERE collection = ?`, collection)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("reading revision: %w", err)
	}

	var rows []docRow
	err = tx.SelectContext(ctx, &rows,
		`SELECT id, version, data FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("reading collection: %w", err)
	}
	for _, r := range rows {
		snap.Documents = append(snap.Documents, r.document())
	}
	return snap, nil
}

// Close stops all subscriptions. The underlying database is owned by the caller.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

// swap runs mutate against the current document and writes the result only if
// the version is still the one read.
func (s *Store) swap(ctx context.Context, collection, id string, mutate func(docstore.Document) (json.RawMessage, error)) (docstore.WriteResult, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		res, err := s.write(ctx, collection, func(tx *sqlx.Tx) (docstore.Document, error) {
			row, err := getRow(ctx, tx, collection, id)
			if err != nil {
				return docstore.Document{}, err
			}
			data, err := mutate(row.document())
			if err != nil {
				return docstore.Document{}, err
			}

			result, err := tx.ExecContext(ctx,
				`UPDATE documents SET data = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
				 WHERE collection = ? AND id = ? AND version = ?`,
				string(data), collection, id, row.Version)
			if err != nil {
				return docstore.Document{}, fmt.Errorf("updating document: %w", err)
			}
			if n, _ := result.RowsAffected(); n == 0 {
				return docstore.Document{}, errVersionMismatch
			}
			return docstore.Document{ID: id, Version: row.Version + 1, Data: data}, nil
		})
		if errors.Is(err, errVersionMismatch) {
			continue
		}
		return res, err
	}
	return docstore.WriteResult{}, docstore.ErrConflict
}

// write runs fn and bumps the collection revision in one transaction, then
// publishes the new snapshot to subscribers.
func (s *Store) write(ctx context.Context, collection string, fn func(tx *sqlx.Tx) (docstore.Document, error)) (docstore.WriteResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return docstore.WriteResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	doc, err := fn(tx)
	if err != nil {
		return docstore.WriteResult{}, err
	}

	rev, err := s.bumpRevision(ctx, tx, collection)
	if err != nil {
		return docstore.WriteResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return docstore.WriteResult{}, fmt.Errorf("committing write: %w", err)
	}

	s.publish(context.WithoutCancel(ctx), collection)
	return docstore.WriteResult{Document: doc, Revision: rev}, nil
}

func (s *Store) bumpRevision(ctx context.Context, tx *sqlx.Tx, collection string) (int64, error) {
	insert := `INSERT OR IGNORE INTO revisions (collection, revision) VALUES (?, 0)`
	if s.driver == db.DriverMySQL {
		insert = `INSERT IGNORE INTO revisions (collection, revision) VALUES (?, 0)`
	}
	if _, err := tx.ExecContext(ctx, insert, collection); err != nil {
		return 0, fmt.Errorf("initializing revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE revisions SET revision = revision + 1 WHERE collection = ?`, collection); err != nil {
		return 0, fmt.Errorf("bumping revision: %w", err)
	}

	var rev int64
	if err := tx.GetContext(ctx, &rev,
		`SELECT revision FROM revisions WHERE collection = ?`, collection); err != nil {
		return 0, fmt.Errorf("reading revision: %w", err)
	}
	return rev, nil
}

func (s *Store) publish(ctx context.Context, collection string) {
	if s.hub.Subscribers(collection) == 0 {
		return
	}
	snap, err := s.ReadOnce(ctx, collection)
	if err != nil {
		s.hub.Fail(collection, err)
		return
	}
	s.hub.Publish(snap)
}

func getRow(ctx context.Context, tx *sqlx.Tx, collection, id string) (docRow, error) {
	var row docRow
	err := tx.GetContext(ctx, &row,
		`SELECT id, version, data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return docRow{}, docstore.ErrNotFound
	}
	if err != nil {
		return docRow{}, fmt.Errorf("reading document: %w", err)
	}
	return row, nil
}
