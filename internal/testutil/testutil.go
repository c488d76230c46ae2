// Package testutil provides shared test helpers for setting up graphs and
// databases.
package testutil

import (
	"os"
	"testing"

	"github.com/bryclee/taskcheck/internal/graphstore"
	"github.com/bryclee/taskcheck/internal/index"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "taskcheck-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestGraph creates a temporary graph directory with a graphstore.Provider.
func TestGraph(t *testing.T) (string, graphstore.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := graphstore.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
