package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"

	"datamod/internal/platform/database"
)

// NewSQLiteDB opens a file-backed SQLite database with the service schema.
// It has real transactions, so commit and rollback behave as they do on
// Postgres. A single connection serialises access.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "datamod.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err, "failed to open sqlite")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.EnsureSchema(context.Background(), db), "failed to create schema")
	return db
}

// NewSQLiteDSN prepares a schema'd SQLite file and returns its DSN, for code
// under test that opens and closes its own handle.
func NewSQLiteDSN(t *testing.T) string {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "datamod.db")
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err, "failed to open sqlite")
	defer db.Close()
	require.NoError(t, database.EnsureSchema(context.Background(), db), "failed to create schema")
	return dsn
}
