// Package testutil provides shared test helpers for retext tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/retext/retext/internal/store"
)

// NewTestStore creates a store backed by a temp-dir SQLite file with the
// production schema loaded. The store is closed automatically at cleanup.
func NewTestStore(t testing.TB) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "retext-test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if !st.FTS5Available() {
		t.Skip("sqlite built without fts5")
	}
	return st
}

// MustNoErr fails the test immediately if err is non-nil.
func MustNoErr(t testing.TB, err error, context string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", context, err)
	}
}

// AssertEqualSlices compares two slices element-by-element.
func AssertEqualSlices[T comparable](t *testing.T, got []T, want ...T) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got len %d, want %d: %v", len(got), len(want), got)
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("at index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
