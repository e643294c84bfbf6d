package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/jid"
	"github.com/mamvault/mamvault/internal/mam"
	"github.com/mamvault/mamvault/internal/store"
	"github.com/mamvault/mamvault/internal/tracker"
)

const maxPage = 1000

type handlers struct {
	engine  *mam.Engine
	tracker *tracker.Tracker
	store   *store.Store
}

// messageOut is the JSON shape of one message in tool results. MCP
// callers are unprivileged, so real JIDs withheld by the engine never
// appear here.
type messageOut struct {
	ID       int64  `json:"id"`
	Time     string `json:"time"`
	Body     string `json:"body"`
	StableID string `json:"stable_id,omitempty"`
	Peer     string `json:"peer,omitempty"`
	Room     string `json:"room,omitempty"`
	Nick     string `json:"nick,omitempty"`
	RealJID  string `json:"real_jid,omitempty"`
	Private  bool   `json:"private,omitempty"`
}

type pageOut struct {
	Messages []messageOut `json:"messages"`
	First    string       `json:"first,omitempty"`
	Last     string       `json:"last,omitempty"`
	Total    int          `json:"total"`
	Complete bool         `json:"complete"`
}

func messageOutOf(m archive.Message, disclosed bool) messageOut {
	out := messageOut{
		ID:       m.ID,
		Time:     m.Time.UTC().Format(time.RFC3339),
		Body:     m.Body,
		StableID: m.StableID,
		Nick:     m.Nick,
		Private:  m.Private,
	}
	if !m.Peer.IsZero() {
		out.Peer = m.Peer.String()
	}
	if !m.Room.IsZero() {
		out.Room = m.Room.String()
	}
	if disclosed && !m.RealJID.IsZero() {
		out.RealJID = m.RealJID.String()
	}
	return out
}

// getDateArg extracts an optional date (YYYY-MM-DD) from the arguments map.
func getDateArg(args map[string]any, key string) (*time.Time, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s date %q: expected YYYY-MM-DD", key, v)
	}
	return &t, nil
}

// getJIDArg extracts an optional JID from the arguments map.
func getJIDArg(args map[string]any, key string) (jid.JID, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return jid.JID{}, nil
	}
	j, err := jid.Parse(v)
	if err != nil {
		return jid.JID{}, fmt.Errorf("invalid %s: %v", key, err)
	}
	return j, nil
}

// maxArg extracts an optional page size. Absent, NaN, or negative
// values leave the engine default in charge.
func maxArg(args map[string]any) *int {
	v, ok := args["max"].(float64)
	if !ok || math.IsNaN(v) || v < 0 {
		return nil
	}
	n := maxPage
	if !math.IsInf(v, 1) && v < float64(maxPage) {
		n = int(v)
	}
	return &n
}

func (h *handlers) queryArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	ownerStr, _ := args["owner"].(string)
	if ownerStr == "" {
		return mcp.NewToolResultError("owner parameter is required"), nil
	}
	owner, err := jid.Parse(ownerStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid owner: %v", err)), nil
	}

	c := archive.Criteria{Owner: owner.Bare()}
	c.RoomArchive, _ = args["room"].(bool)
	c.Text, _ = args["text"].(string)

	if c.With, err = getJIDArg(args, "with"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if mode, ok := args["room_mode"].(string); ok && mode != "" {
		switch mode {
		case "non-anonymous":
			c.RoomMode = archive.NonAnonymous
		case "semi-anonymous":
			c.RoomMode = archive.SemiAnonymous
		case "fully-anonymous":
			c.RoomMode = archive.FullyAnonymous
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid room_mode %q", mode)), nil
		}
	}
	if c.Start, err = getDateArg(args, "start"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if c.End, err = getDateArg(args, "end"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c.Paging = archive.PageRequest{Max: maxArg(args)}
	c.Paging.After, _ = args["after"].(string)
	c.Paging.Before, _ = args["before"].(string)

	page, err := h.engine.Query(ctx, c)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	out := pageOut{
		Messages: make([]messageOut, 0, len(page.Messages)),
		First:    page.First,
		Last:     page.Last,
		Total:    page.Total,
		Complete: page.Complete,
	}
	for i, m := range page.Messages {
		out.Messages = append(out.Messages, messageOutOf(m, page.Disclosed[i]))
	}
	return jsonResult(out)
}

func (h *handlers) getMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	ownerStr, _ := args["owner"].(string)
	if ownerStr == "" {
		return mcp.NewToolResultError("owner parameter is required"), nil
	}
	owner, err := jid.Parse(ownerStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid owner: %v", err)), nil
	}

	v, ok := args["id"].(float64)
	if !ok || v != math.Trunc(v) || v < 1 || v > math.MaxInt64 {
		return mcp.NewToolResultError("id must be a positive integer"), nil
	}

	m, err := h.engine.Get(ctx, owner.Bare(), int64(v))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}
	// MCP callers are unprivileged.
	return jsonResult(messageOutOf(*m, mam.DisclosureAllowed(*m, archive.Criteria{})))
}

type conversationOut struct {
	ID           int64  `json:"id"`
	Owner        string `json:"owner"`
	Peer         string `json:"peer"`
	Start        string `json:"start"`
	LastActivity string `json:"last_activity"`
	MessageCount int64  `json:"message_count"`
}

func (h *handlers) activeConversations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	convs, err := h.tracker.Active(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	out := make([]conversationOut, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationOut{
			ID:           c.ID,
			Owner:        c.Owner.String(),
			Peer:         c.Peer.String(),
			Start:        c.Start.UTC().Format(time.RFC3339),
			LastActivity: c.LastActivity.UTC().Format(time.RFC3339),
			MessageCount: c.MessageCount,
		})
	}
	return jsonResult(out)
}

func (h *handlers) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.store.GetStats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"total_messages":       stats.MessageCount,
		"total_conversations":  stats.ConversationCount,
		"active_conversations": stats.ActiveCount,
		"total_participants":   stats.ParticipantCount,
		"total_archives":       stats.ArchiveCount,
		"database_size_bytes":  stats.DatabaseSize,
		"search_available":     h.store.FTSAvailable(),
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
