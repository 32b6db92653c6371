package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB returns a migrated database backed by a file under t.TempDir.
// Each pooled connection to :memory: gets its own empty database, so the
// ledger's concurrent transactions need a real file to contend on.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "ledger.sqlite3"))
	require.NoError(t, err, "opening test database")
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, EnsureSchema(database), "applying schema")
	return database
}
