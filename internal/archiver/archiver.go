// Package archiver is the write path: it persists incoming messages
// into the archive and feeds them to the conversation tracker.
package archiver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/store"
	"github.com/mamvault/mamvault/internal/tracker"
)

// Archiver appends messages to the store. Conversation tracking is
// best effort: a tracker failure is logged, never surfaced, since the
// archived message is the durable record and rollups can be rebuilt.
type Archiver struct {
	store   *store.Store
	tracker *tracker.Tracker
	logger  *slog.Logger
}

// New creates an archiver. The tracker may be nil to archive without
// conversation rollups.
func New(st *store.Store, tr *tracker.Tracker, logger *slog.Logger) *Archiver {
	return &Archiver{store: st, tracker: tr, logger: logger}
}

// Archive validates and persists one message, then folds it into its
// conversation. The assigned id lands in m.ID.
func (a *Archiver) Archive(ctx context.Context, m *archive.Message) error {
	if err := validate(m); err != nil {
		return err
	}
	if m.Time.IsZero() {
		m.Time = time.Now()
	}

	if _, err := a.store.AppendMessage(ctx, m); err != nil {
		return fmt.Errorf("archive message: %w", err)
	}

	if a.tracker != nil {
		if _, err := a.tracker.Observe(ctx, m); err != nil {
			a.logger.Warn("conversation tracking failed",
				"owner", m.Owner.String(), "message_id", m.ID, "error", err)
		}
	}
	return nil
}

func validate(m *archive.Message) error {
	if m.Owner.IsZero() {
		return fmt.Errorf("%w: message without archive owner", archive.ErrInvalidMessage)
	}
	if m.Private && !m.InRoom() {
		return fmt.Errorf("%w: private flag outside a room", archive.ErrInvalidMessage)
	}
	if m.InRoom() && !m.Private && !m.Peer.IsZero() {
		return fmt.Errorf("%w: room broadcast records carry no peer", archive.ErrInvalidMessage)
	}
	return nil
}
