// Package storetest opens throwaway group stores for package tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/Daclify/daclifycore/internal/storage"
)

func Open(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "group.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Seed runs fn in one write transaction and fails the test on error.
func Seed(t *testing.T, store *storage.Store, fn func(tx *storage.Tx) error) {
	t.Helper()
	if err := store.Update(fn); err != nil {
		t.Fatalf("seed store: %v", err)
	}
}
