package store

import (
	"testing"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/docstore"
	"github.com/erazemk/zaloga/internal/docstore/sqlstore"
)

func newTestStore(t *testing.T) docstore.Store {
	t.Helper()
	st := sqlstore.New(db.NewTestDB(t), db.DriverSQLite)
	t.Cleanup(func() { st.Close() })
	return st
}
