package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/jid"
)

// AppendMessage persists one archived message and assigns its id.
// The message row and its FTS row are written in a single transaction,
// so readers never observe a half-inserted message. A send time earlier
// than the archive's newest message is clamped forward, keeping id
// order equal to chronological order. The assigned id and the stored
// time land back in m.ID and m.Time.
func (s *Store) AppendMessage(ctx context.Context, m *archive.Message) (int64, error) {
	var id int64
	at := m.Time.UTC()
	err := s.withTx(func(tx *sql.Tx) error {
		var last time.Time
		switch err := tx.QueryRowContext(ctx, `
			SELECT sent_at FROM messages WHERE owner = ? ORDER BY id DESC LIMIT 1
		`, m.Owner.Bare().String()).Scan(&last); {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("newest message time: %w", err)
		case at.Before(last):
			at = last.UTC()
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO messages (
				owner, sent_at, direction, body, stanza, stable_id,
				peer, room, nick, real_jid, private, room_mode, archived_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.Owner.Bare().String(), at, int(m.Direction), m.Body, m.Stanza, m.StableID,
			jidString(m.Peer), jidString(m.Room), m.Nick, jidString(m.RealJID),
			m.Private, int(m.RoomMode), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("message id: %w", err)
		}

		if s.fts5Available && m.Body != "" {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO messages_fts (rowid, body) VALUES (?, ?)
			`, id, m.Body); err != nil {
				return fmt.Errorf("index message body: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.ID = id
	m.Time = at
	return id, nil
}

// messageColumns is the select list matched by scanMessage.
const messageColumns = `id, owner, sent_at, direction, body, stanza, stable_id,
	peer, room, nick, real_jid, private, room_mode`

// MessageScanner is a lazy cursor over an ascending range scan.
// Callers loop with Next, read with Message, then check Err and Close.
// The scan restarts by issuing RangeScan again.
type MessageScanner struct {
	rows *sql.Rows
	cur  archive.Message
	err  error
}

// Next advances to the next message. Returns false at the end of the
// range or on error; check Err afterwards.
func (sc *MessageScanner) Next() bool {
	if sc.err != nil || !sc.rows.Next() {
		return false
	}
	m, err := scanMessage(sc.rows)
	if err != nil {
		sc.err = err
		return false
	}
	sc.cur = m
	return true
}

// Message returns the message at the current cursor position.
func (sc *MessageScanner) Message() archive.Message {
	return sc.cur
}

// Err returns the first error encountered during scanning.
func (sc *MessageScanner) Err() error {
	if sc.err != nil {
		return sc.err
	}
	return sc.rows.Err()
}

// Close releases the underlying cursor. Safe to call more than once.
func (sc *MessageScanner) Close() error {
	return sc.rows.Close()
}

// RangeScan returns a lazy ascending scan of owner's archive, bounded
// by the optional [start, end) time range. Rows are ordered by id,
// which equals chronological order per the append-only invariant.
func (s *Store) RangeScan(ctx context.Context, owner jid.JID, start, end *time.Time) (*MessageScanner, error) {
	q := "SELECT " + messageColumns + " FROM messages WHERE owner = ?"
	args := []interface{}{owner.Bare().String()}

	if start != nil {
		q += " AND sent_at >= ?"
		args = append(args, start.UTC())
	}
	if end != nil {
		q += " AND sent_at < ?"
		args = append(args, end.UTC())
	}
	q += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("range scan: %w", err)
	}
	return &MessageScanner{rows: rows}, nil
}

// GetMessage fetches one message from an archive by internal id.
// Returns sql.ErrNoRows when the id does not exist in that archive.
func (s *Store) GetMessage(ctx context.Context, owner jid.JID, id int64) (*archive.Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE owner = ? AND id = ?",
		owner.Bare().String(), id)

	m, err := scanMessage(row)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SearchMessageIDs runs a full-text match over owner's archive and
// returns the set of matching message ids. Each whitespace-separated
// term is quoted before being handed to FTS5, so user input cannot
// inject match syntax; terms combine with implicit AND.
func (s *Store) SearchMessageIDs(ctx context.Context, text string, owner jid.JID) (map[int64]struct{}, error) {
	if !s.fts5Available {
		return nil, fmt.Errorf("full-text search not available (no FTS5)")
	}

	match := ftsMatchExpr(text)
	if match == "" {
		return map[int64]struct{}{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.rowid
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE f.body MATCH ? AND m.owner = ?
	`, match, owner.Bare().String())
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ftsMatchExpr turns free text into a safe FTS5 match expression by
// double-quoting each term.
func ftsMatchExpr(text string) string {
	terms := strings.Fields(text)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanMessage.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(r rowScanner) (archive.Message, error) {
	var (
		m                          archive.Message
		owner, peer, room, realJID string
		direction, roomMode        int
	)
	err := r.Scan(&m.ID, &owner, &m.Time, &direction, &m.Body, &m.Stanza, &m.StableID,
		&peer, &room, &m.Nick, &realJID, &m.Private, &roomMode)
	if err != nil {
		return archive.Message{}, err
	}

	m.Owner = parseStoredJID(owner)
	m.Peer = parseStoredJID(peer)
	m.Room = parseStoredJID(room)
	m.RealJID = parseStoredJID(realJID)
	m.Direction = archive.Direction(direction)
	m.RoomMode = archive.AnonymityMode(roomMode)
	m.Time = m.Time.UTC()
	return m, nil
}

// jidString renders a JID column value; zero JIDs become ''.
func jidString(j jid.JID) string {
	if j.IsZero() {
		return ""
	}
	return j.String()
}

// parseStoredJID parses a JID column value written by jidString.
// Stored values always round-trip; anything unparseable scans as zero.
func parseStoredJID(s string) jid.JID {
	if s == "" {
		return jid.JID{}
	}
	j, err := jid.Parse(s)
	if err != nil {
		return jid.JID{}
	}
	return j
}
