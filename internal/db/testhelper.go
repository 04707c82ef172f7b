package db

import (
	"path/filepath"
	"testing"
)

// OpenTestStore opens a migrated metadata store in t.TempDir() and closes it
// when the test ends.
func OpenTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenStore(filepath.Join(t.TempDir(), "meta.sqlite"), 2)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
