// Package dbtest provides SQLite-backed test fixtures: a throwaway
// store per test plus seed helpers for archived messages.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/jid"
	"github.com/mamvault/mamvault/internal/store"
)

// Open creates a store on a fresh temp-dir database with the schema
// applied, closed automatically when the test finishes.
func Open(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "mamvault-test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st
}

// Seed appends the given messages in order, failing the test on error.
// Assigned ids land back in the slice elements.
func Seed(t *testing.T, st *store.Store, msgs []archive.Message) {
	t.Helper()
	for i := range msgs {
		if _, err := st.AppendMessage(context.Background(), &msgs[i]); err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}
}

// MustJID parses a JID, failing the test on error.
func MustJID(t *testing.T, s string) jid.JID {
	t.Helper()
	j, err := jid.Parse(s)
	if err != nil {
		t.Fatalf("parse jid %q: %v", s, err)
	}
	return j
}

// At returns a deterministic timestamp n minutes past a fixed base,
// handy for seeding ordered archives.
func At(n int) time.Time {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(n) * time.Minute)
}
