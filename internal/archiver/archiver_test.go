package archiver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/testutil/dbtest"
	"github.com/mamvault/mamvault/internal/tracker"
)

func TestArchiveAssignsIDAndTracks(t *testing.T) {
	st := dbtest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := tracker.New(st, logger, time.Hour)
	a := New(st, tr, logger)

	m := &archive.Message{
		Owner: dbtest.MustJID(t, "alice@example.com"),
		Peer:  dbtest.MustJID(t, "bob@example.com/laptop"),
		Time:  dbtest.At(0),
		Body:  "hello",
	}
	if err := a.Archive(context.Background(), m); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if m.ID == 0 {
		t.Error("message id not assigned")
	}

	active, err := st.ActiveConversations(context.Background(), 24*365*10*time.Hour)
	if err != nil {
		t.Fatalf("ActiveConversations: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d conversations, want 1", len(active))
	}
	if active[0].MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", active[0].MessageCount)
	}
}

func TestArchiveWithoutTracker(t *testing.T) {
	st := dbtest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(st, nil, logger)

	m := &archive.Message{
		Owner: dbtest.MustJID(t, "alice@example.com"),
		Peer:  dbtest.MustJID(t, "bob@example.com"),
		Time:  dbtest.At(0),
		Body:  "hello",
	}
	if err := a.Archive(context.Background(), m); err != nil {
		t.Fatalf("Archive: %v", err)
	}
}

func TestArchiveRejectsMalformedRecords(t *testing.T) {
	st := dbtest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(st, nil, logger)

	tests := []struct {
		name string
		m    archive.Message
	}{
		{"missing owner", archive.Message{Body: "x"}},
		{
			"private outside a room",
			archive.Message{
				Owner:   dbtest.MustJID(t, "alice@example.com"),
				Private: true,
			},
		},
		{
			"broadcast with a peer",
			archive.Message{
				Owner: dbtest.MustJID(t, "council@rooms.example.net"),
				Room:  dbtest.MustJID(t, "council@rooms.example.net"),
				Peer:  dbtest.MustJID(t, "bob@example.com"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.m
			err := a.Archive(context.Background(), &m)
			if !errors.Is(err, archive.ErrInvalidMessage) {
				t.Errorf("err = %v, want ErrInvalidMessage", err)
			}
		})
	}
}

func TestArchiveDefaultsTimestamp(t *testing.T) {
	st := dbtest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(st, nil, logger)

	m := &archive.Message{
		Owner: dbtest.MustJID(t, "alice@example.com"),
		Peer:  dbtest.MustJID(t, "bob@example.com"),
	}
	before := time.Now()
	if err := a.Archive(context.Background(), m); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if m.Time.Before(before) {
		t.Errorf("Time = %v not defaulted to now", m.Time)
	}
}
