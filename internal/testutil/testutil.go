// Package testutil provides shared test helpers: temp databases and storage,
// an in-memory bridge, a recording render host and a recording notifier.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/hypermind/internal/hypergraph"
	"github.com/starford/hypermind/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *hypergraph.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "hypermind-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := hypergraph.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStorage creates a temporary directory with a storage.Provider.
func TestStorage(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
