// Package tracker maintains conversation rollups over the message
// archive: it groups observed messages into conversations keyed by
// owner and counterpart, records occupant presence spans, and closes
// conversations that have gone idle.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/jid"
	"github.com/mamvault/mamvault/internal/store"
)

// DefaultIdleTimeout closes a conversation after an hour of silence.
const DefaultIdleTimeout = time.Hour

// Tracker groups archived messages into conversations. All state lives
// in the store; the tracker itself is stateless and safe for concurrent
// use.
type Tracker struct {
	store       *store.Store
	logger      *slog.Logger
	idleTimeout time.Duration
}

// New creates a tracker. A non-positive idleTimeout selects the default.
func New(st *store.Store, logger *slog.Logger, idleTimeout time.Duration) *Tracker {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Tracker{store: st, logger: logger, idleTimeout: idleTimeout}
}

// IdleTimeout returns the configured idle cutoff.
func (t *Tracker) IdleTimeout() time.Duration {
	return t.idleTimeout
}

// Observe folds one archived message into its conversation: extending
// the open conversation with the same counterpart, or starting a new
// one when none is open or the open one has gone idle. Returns the
// conversation the message landed in, or nil for messages that carry
// no counterpart (room broadcast records in a personal archive, etc.).
func (t *Tracker) Observe(ctx context.Context, m *archive.Message) (*archive.Conversation, error) {
	peer := conversationPeer(m)
	if peer.IsZero() {
		return nil, nil
	}

	open, err := t.store.FindOpenConversation(ctx, m.Owner, peer)
	if err != nil {
		return nil, fmt.Errorf("find open conversation: %w", err)
	}

	if open != nil {
		if m.Time.Sub(open.LastActivity) <= t.idleTimeout {
			if err := t.store.TouchConversation(ctx, open.ID, m.Time); err != nil {
				return nil, err
			}
			open.MessageCount++
			open.LastActivity = m.Time.UTC()
			return open, nil
		}

		// Idle gap: the old conversation ends where it last saw
		// activity, and this message opens a fresh one.
		if err := t.store.UpdateConversationEnd(ctx, open.ID, open.LastActivity); err != nil {
			return nil, err
		}
		t.logger.Debug("closed idle conversation",
			"id", open.ID, "owner", open.Owner.String(), "peer", peer.String())
	}

	c := &archive.Conversation{
		Owner:        m.Owner.Bare(),
		Peer:         peer,
		External:     externalPeer(m.Owner, peer),
		Start:        m.Time.UTC(),
		LastActivity: m.Time.UTC(),
		MessageCount: 1,
	}
	if _, err := t.store.AppendConversation(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Join opens a presence span for a JID in a conversation. A no-op when
// a span is already open; rejoining after Leave appends a new span.
func (t *Tracker) Join(ctx context.Context, conversationID int64, j jid.JID, at time.Time) error {
	open, err := t.store.FindOpenParticipant(ctx, conversationID, j)
	if err != nil {
		return fmt.Errorf("find open participant: %w", err)
	}
	if open != nil {
		return nil
	}
	_, err = t.store.AppendParticipant(ctx, &archive.Participant{
		ConversationID: conversationID,
		JID:            j,
		Start:          at.UTC(),
	})
	return err
}

// Leave closes the open presence span for a JID in a conversation.
func (t *Tracker) Leave(ctx context.Context, conversationID int64, j jid.JID, at time.Time) error {
	return t.store.EndParticipant(ctx, conversationID, j, at)
}

// Active returns conversations that are open and within the idle
// window, newest first.
func (t *Tracker) Active(ctx context.Context) ([]archive.Conversation, error) {
	return t.store.ActiveConversations(ctx, t.idleTimeout)
}

// SweepIdle closes every open conversation idle past the cutoff and
// returns how many it closed.
func (t *Tracker) SweepIdle(ctx context.Context, now time.Time) (int64, error) {
	return t.store.CloseIdleConversations(ctx, t.idleTimeout, now)
}

// conversationPeer picks the conversation key for a message: the bare
// room JID for anything that happened inside a room, the bare peer JID
// for direct exchanges.
func conversationPeer(m *archive.Message) jid.JID {
	if m.InRoom() {
		return m.Room.Bare()
	}
	return m.Peer.Bare()
}

// externalPeer reports whether the counterpart lives outside the
// owner's domain.
func externalPeer(owner, peer jid.JID) bool {
	return !strings.EqualFold(owner.Domain, peer.Domain)
}
