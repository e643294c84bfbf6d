package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/jid"
	"github.com/mamvault/mamvault/internal/mam"
)

// MessageJSON is the wire form of an archived message. RealJID is
// omitted whenever the engine withheld disclosure.
type MessageJSON struct {
	ID        int64  `json:"id"`
	Owner     string `json:"owner"`
	Time      string `json:"time"`
	Direction string `json:"direction"`
	Body      string `json:"body"`
	Stanza    string `json:"stanza,omitempty"`
	StableID  string `json:"stable_id,omitempty"`
	Peer      string `json:"peer,omitempty"`
	Room      string `json:"room,omitempty"`
	Nick      string `json:"nick,omitempty"`
	RealJID   string `json:"real_jid,omitempty"`
	Private   bool   `json:"private,omitempty"`
	RoomMode  string `json:"room_mode,omitempty"`
}

// QueryResponse is one page of an archive query.
type QueryResponse struct {
	Messages []MessageJSON `json:"messages"`
	First    string        `json:"first,omitempty"`
	Last     string        `json:"last,omitempty"`
	Total    int           `json:"total"`
	Complete bool          `json:"complete"`
}

// ConversationJSON is the wire form of a conversation rollup.
type ConversationJSON struct {
	ID           int64  `json:"id"`
	Owner        string `json:"owner"`
	Peer         string `json:"peer"`
	External     bool   `json:"external,omitempty"`
	Start        string `json:"start"`
	LastActivity string `json:"last_activity"`
	MessageCount int64  `json:"message_count"`
}

// StatsResponse represents the archive statistics.
type StatsResponse struct {
	TotalMessages      int64 `json:"total_messages"`
	TotalConversations int64 `json:"total_conversations"`
	ActiveCount        int64 `json:"active_conversations"`
	TotalParticipants  int64 `json:"total_participants"`
	TotalArchives      int64 `json:"total_archives"`
	DatabaseSize       int64 `json:"database_size_bytes"`
	SearchAvailable    bool  `json:"search_available"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeArchiveError maps the archive error taxonomy to HTTP statuses.
func (s *Server) writeArchiveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, archive.ErrInvalidQuery), errors.Is(err, archive.ErrInvalidMessage):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, archive.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, archive.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, archive.ErrStoreUnavailable), errors.Is(err, archive.ErrIndexUnavailable):
		s.logger.Error("archive backend failure", "error", err)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "Archive temporarily unavailable")
	default:
		s.logger.Error("unexpected archive error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal error")
	}
}

func messageToJSON(m archive.Message, disclosed bool) MessageJSON {
	out := MessageJSON{
		ID:        m.ID,
		Owner:     m.Owner.String(),
		Time:      m.Time.UTC().Format(time.RFC3339),
		Direction: m.Direction.String(),
		Body:      m.Body,
		Stanza:    m.Stanza,
		StableID:  m.StableID,
		Nick:      m.Nick,
		Private:   m.Private,
	}
	if !m.Peer.IsZero() {
		out.Peer = m.Peer.String()
	}
	if !m.Room.IsZero() {
		out.Room = m.Room.String()
	}
	if m.RoomMode != archive.ModeNone {
		out.RoomMode = m.RoomMode.String()
	}
	if disclosed && !m.RealJID.IsZero() {
		out.RealJID = m.RealJID.String()
	}
	return out
}

// handleQueryArchive serves GET /api/v1/archives/{owner}/messages.
func (s *Server) handleQueryArchive(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	page, err := s.engine.Query(r.Context(), c)
	if err != nil {
		s.writeArchiveError(w, err)
		return
	}

	resp := QueryResponse{
		Messages: make([]MessageJSON, 0, len(page.Messages)),
		First:    page.First,
		Last:     page.Last,
		Total:    page.Total,
		Complete: page.Complete,
	}
	for i, m := range page.Messages {
		resp.Messages = append(resp.Messages, messageToJSON(m, page.Disclosed[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// criteriaFromRequest decodes the query string into archive criteria.
func criteriaFromRequest(r *http.Request) (archive.Criteria, error) {
	var c archive.Criteria

	owner, err := jid.Parse(chi.URLParam(r, "owner"))
	if err != nil {
		return c, fmt.Errorf("invalid owner: %w", err)
	}
	c.Owner = owner.Bare()

	q := r.URL.Query()
	c.RoomArchive = q.Get("room") == "true"
	c.Text = q.Get("text")
	c.UseStableID = q.Get("stable_ids") == "true"
	if q.Get("privilege") == "privileged" {
		c.Privilege = archive.Privileged
	}

	if with := q.Get("with"); with != "" {
		j, err := jid.Parse(with)
		if err != nil {
			return c, fmt.Errorf("invalid with filter: %w", err)
		}
		c.With = j
	}
	if mode := q.Get("room_mode"); mode != "" {
		m, err := parseAnonymityMode(mode)
		if err != nil {
			return c, err
		}
		c.RoomMode = m
	}
	for _, bound := range []struct {
		key  string
		dest **time.Time
	}{{"start", &c.Start}, {"end", &c.End}} {
		if v := q.Get(bound.key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return c, fmt.Errorf("invalid %s: %w", bound.key, err)
			}
			*bound.dest = &t
		}
	}

	c.Paging = archive.PageRequest{
		After:  q.Get("after"),
		Before: q.Get("before"),
	}
	if v := q.Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c, fmt.Errorf("invalid max %q", v)
		}
		c.Paging.Max = &n
	}
	if v := q.Get("index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c, fmt.Errorf("invalid index %q", v)
		}
		c.Paging.Index = &n
	}

	return c, nil
}

func parseAnonymityMode(s string) (archive.AnonymityMode, error) {
	switch s {
	case "non-anonymous":
		return archive.NonAnonymous, nil
	case "semi-anonymous":
		return archive.SemiAnonymous, nil
	case "fully-anonymous":
		return archive.FullyAnonymous, nil
	default:
		return archive.ModeNone, fmt.Errorf("invalid room_mode %q", s)
	}
}

// AppendRequest is the POST body for archiving one message.
type AppendRequest struct {
	Time      string `json:"time,omitempty"`
	Direction string `json:"direction"`
	Body      string `json:"body"`
	Stanza    string `json:"stanza,omitempty"`
	StableID  string `json:"stable_id,omitempty"`
	Peer      string `json:"peer,omitempty"`
	Room      string `json:"room,omitempty"`
	Nick      string `json:"nick,omitempty"`
	RealJID   string `json:"real_jid,omitempty"`
	Private   bool   `json:"private,omitempty"`
	RoomMode  string `json:"room_mode,omitempty"`
}

// handleAppendMessage serves POST /api/v1/archives/{owner}/messages.
func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	owner, err := jid.Parse(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid owner: "+err.Error())
		return
	}

	var req AppendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	m := archive.Message{
		Owner:    owner.Bare(),
		Body:     req.Body,
		Stanza:   req.Stanza,
		StableID: req.StableID,
		Nick:     req.Nick,
		Private:  req.Private,
	}
	if req.Direction == "received" {
		m.Direction = archive.DirectionReceived
	}
	if req.Time != "" {
		t, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid time: "+err.Error())
			return
		}
		m.Time = t
	}
	for _, f := range []struct {
		val  string
		dest *jid.JID
		name string
	}{{req.Peer, &m.Peer, "peer"}, {req.Room, &m.Room, "room"}, {req.RealJID, &m.RealJID, "real_jid"}} {
		if f.val == "" {
			continue
		}
		j, err := jid.Parse(f.val)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid "+f.name+": "+err.Error())
			return
		}
		*f.dest = j
	}
	if req.RoomMode != "" {
		mode, err := parseAnonymityMode(req.RoomMode)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		m.RoomMode = mode
	}

	if err := s.archiver.Archive(r.Context(), &m); err != nil {
		s.writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        m.ID,
		"stable_id": m.StableID,
	})
}

// handleGetMessage serves GET /api/v1/archives/{owner}/messages/{id}.
func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	owner, err := jid.Parse(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid owner: "+err.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid message id")
		return
	}

	m, err := s.engine.Get(r.Context(), owner.Bare(), id)
	if err != nil {
		s.writeArchiveError(w, err)
		return
	}
	// Same disclosure policy as paged queries: the recorded room mode
	// governs, with the caller's asserted privilege.
	var c archive.Criteria
	if r.URL.Query().Get("privilege") == "privileged" {
		c.Privilege = archive.Privileged
	}
	writeJSON(w, http.StatusOK, messageToJSON(*m, mam.DisclosureAllowed(*m, c)))
}

// handleActiveConversations serves GET /api/v1/conversations/active.
func (s *Server) handleActiveConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.tracker.Active(r.Context())
	if err != nil {
		s.logger.Error("failed to list active conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list conversations")
		return
	}

	out := make([]ConversationJSON, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationJSON{
			ID:           c.ID,
			Owner:        c.Owner.String(),
			Peer:         c.Peer.String(),
			External:     c.External,
			Start:        c.Start.UTC().Format(time.RFC3339),
			LastActivity: c.LastActivity.UTC().Format(time.RFC3339),
			MessageCount: c.MessageCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": out})
}

// handleStats returns archive statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		s.logger.Error("failed to get stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve statistics")
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		TotalMessages:      stats.MessageCount,
		TotalConversations: stats.ConversationCount,
		ActiveCount:        stats.ActiveCount,
		TotalParticipants:  stats.ParticipantCount,
		TotalArchives:      stats.ArchiveCount,
		DatabaseSize:       stats.DatabaseSize,
		SearchAvailable:    s.store.FTSAvailable(),
	})
}
