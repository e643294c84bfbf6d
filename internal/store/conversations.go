package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/jid"
)

// AppendConversation persists a new conversation rollup and assigns its id.
func (s *Store) AppendConversation(ctx context.Context, c *archive.Conversation) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (owner, peer, external, start_time, last_activity, end_time, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.Owner.Bare().String(), jidString(c.Peer), c.External,
		c.Start.UTC(), c.LastActivity.UTC(), nullTime(c.End), c.MessageCount)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("conversation id: %w", err)
	}
	c.ID = id
	return id, nil
}

// TouchConversation records one more message on an open conversation,
// bumping its count and extending its activity window.
func (s *Store) TouchConversation(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1, last_activity = ?
		WHERE id = ?
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch conversation %d: %w", id, err)
	}
	return nil
}

// UpdateConversationEnd closes a conversation by setting its end time.
func (s *Store) UpdateConversationEnd(ctx context.Context, id int64, end time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET end_time = ? WHERE id = ?
	`, end.UTC(), id)
	if err != nil {
		return fmt.Errorf("end conversation %d: %w", id, err)
	}
	return nil
}

const conversationColumns = `id, owner, peer, external, start_time, last_activity, end_time, message_count`

// FindOpenConversation returns the newest conversation between owner and
// peer that has no end time, or nil when none is open.
func (s *Store) FindOpenConversation(ctx context.Context, owner, peer jid.JID) (*archive.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE owner = ? AND peer = ? AND end_time IS NULL
		ORDER BY start_time DESC LIMIT 1
	`, owner.Bare().String(), jidString(peer))

	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindConversation returns the conversation between owner and peer with
// the exact start time, or nil when absent.
func (s *Store) FindConversation(ctx context.Context, owner, peer jid.JID, start time.Time) (*archive.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE owner = ? AND peer = ? AND start_time = ?
	`, owner.Bare().String(), jidString(peer), start.UTC())

	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation fetches a conversation by id, including its
// participant spans. Returns sql.ErrNoRows when the id is unknown.
func (s *Store) GetConversation(ctx context.Context, id int64) (*archive.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE id = ?
	`, id)

	c, err := scanConversation(row)
	if err != nil {
		return nil, err
	}
	if c.Participants, err = s.listParticipants(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

// ActiveConversations returns open conversations whose last activity is
// within the idle timeout, newest first.
func (s *Store) ActiveConversations(ctx context.Context, idleTimeout time.Duration) ([]archive.Conversation, error) {
	cutoff := time.Now().UTC().Add(-idleTimeout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE end_time IS NULL AND last_activity >= ?
		ORDER BY last_activity DESC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("active conversations: %w", err)
	}
	defer rows.Close()

	var out []archive.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CloseIdleConversations closes every open conversation whose last
// activity is older than the idle timeout, setting end_time to the last
// activity. Returns the number of conversations closed.
func (s *Store) CloseIdleConversations(ctx context.Context, idleTimeout time.Duration, now time.Time) (int64, error) {
	cutoff := now.UTC().Add(-idleTimeout)
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET end_time = last_activity
		WHERE end_time IS NULL AND last_activity < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("close idle conversations: %w", err)
	}
	return res.RowsAffected()
}

// AppendParticipant records a new presence span. Spans are append-only;
// a JID that rejoins gets a fresh row rather than a reopened one.
func (s *Store) AppendParticipant(ctx context.Context, p *archive.Participant) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (conversation_id, jid, joined_at, left_at)
		VALUES (?, ?, ?, ?)
	`, p.ConversationID, p.JID.String(), p.Start.UTC(), nullTime(p.End))
	if err != nil {
		return 0, fmt.Errorf("insert participant: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("participant id: %w", err)
	}
	p.ID = id
	return id, nil
}

// EndParticipant closes the newest open span for jid in a conversation.
// A no-op when no span is open.
func (s *Store) EndParticipant(ctx context.Context, conversationID int64, j jid.JID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE participants SET left_at = ?
		WHERE id = (
			SELECT id FROM participants
			WHERE conversation_id = ? AND jid = ? AND left_at IS NULL
			ORDER BY joined_at DESC LIMIT 1
		)
	`, at.UTC(), conversationID, j.String())
	if err != nil {
		return fmt.Errorf("end participant: %w", err)
	}
	return nil
}

// FindOpenParticipant returns the newest open span for jid in a
// conversation, or nil when the JID is not currently present.
func (s *Store) FindOpenParticipant(ctx context.Context, conversationID int64, j jid.JID) (*archive.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, jid, joined_at, left_at FROM participants
		WHERE conversation_id = ? AND jid = ? AND left_at IS NULL
		ORDER BY joined_at DESC LIMIT 1
	`, conversationID, j.String())

	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// listParticipants returns all spans for a conversation ordered by join time.
func (s *Store) listParticipants(ctx context.Context, conversationID int64) ([]archive.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, jid, joined_at, left_at FROM participants
		WHERE conversation_id = ?
		ORDER BY joined_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []archive.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanConversation(r rowScanner) (archive.Conversation, error) {
	var (
		c           archive.Conversation
		owner, peer string
		end         sql.NullTime
	)
	err := r.Scan(&c.ID, &owner, &peer, &c.External, &c.Start, &c.LastActivity, &end, &c.MessageCount)
	if err != nil {
		return archive.Conversation{}, err
	}
	c.Owner = parseStoredJID(owner)
	c.Peer = parseStoredJID(peer)
	c.Start = c.Start.UTC()
	c.LastActivity = c.LastActivity.UTC()
	if end.Valid {
		t := end.Time.UTC()
		c.End = &t
	}
	return c, nil
}

func scanParticipant(r rowScanner) (archive.Participant, error) {
	var (
		p    archive.Participant
		pjid string
		left sql.NullTime
	)
	err := r.Scan(&p.ID, &p.ConversationID, &pjid, &p.Start, &left)
	if err != nil {
		return archive.Participant{}, err
	}
	p.JID = parseStoredJID(pjid)
	p.Start = p.Start.UTC()
	if left.Valid {
		t := left.Time.UTC()
		p.End = &t
	}
	return p, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
