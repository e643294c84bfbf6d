package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mamvault/mamvault/internal/archive"
	"github.com/mamvault/mamvault/internal/mam"
	"github.com/mamvault/mamvault/internal/testutil/dbtest"
	"github.com/mamvault/mamvault/internal/tracker"
)

// toolHandler is the function signature for MCP tool handler methods.
type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func testHandlers(t *testing.T) *handlers {
	t.Helper()
	st := dbtest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dbtest.Seed(t, st, []archive.Message{
		{
			Owner: dbtest.MustJID(t, "room@muc.example.net"),
			Time:  dbtest.At(0), Body: "first",
			Room: dbtest.MustJID(t, "room@muc.example.net"),
			Nick: "alpha", RealJID: dbtest.MustJID(t, "alice@example.com"),
			RoomMode: archive.SemiAnonymous,
		},
		{
			Owner: dbtest.MustJID(t, "room@muc.example.net"),
			Time:  dbtest.At(1), Body: "second",
			Room: dbtest.MustJID(t, "room@muc.example.net"),
			Nick: "beta", RealJID: dbtest.MustJID(t, "bob@example.com"),
			RoomMode: archive.SemiAnonymous,
		},
	})

	return &handlers{
		engine:  mam.NewEngine(st, logger, mam.Options{DefaultPageSize: 50}),
		tracker: tracker.New(st, logger, time.Hour),
		store:   st,
	}
}

func callToolDirect(t *testing.T, fn toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty content")
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", r.Content[0])
	}
	return tc.Text
}

func runTool[T any](t *testing.T, fn toolHandler, args map[string]any) T {
	t.Helper()
	r := callToolDirect(t, fn, args)
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, r))
	}
	var out T
	if err := json.Unmarshal([]byte(resultText(t, r)), &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return out
}

func runToolExpectError(t *testing.T, fn toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	r := callToolDirect(t, fn, args)
	if !r.IsError {
		t.Fatal("expected error result")
	}
	return r
}

func TestQueryArchiveTool(t *testing.T) {
	h := testHandlers(t)

	page := runTool[pageOut](t, h.queryArchive, map[string]any{
		"owner":     "room@muc.example.net",
		"room":      true,
		"room_mode": "semi-anonymous",
	})
	if len(page.Messages) != 2 || page.Total != 2 || !page.Complete {
		t.Fatalf("unexpected page: %+v", page)
	}
	// Unprivileged surface: identities stay hidden.
	for _, m := range page.Messages {
		if m.RealJID != "" {
			t.Errorf("message %d leaked real JID %s", m.ID, m.RealJID)
		}
	}

	t.Run("missing owner", func(t *testing.T) {
		runToolExpectError(t, h.queryArchive, map[string]any{})
	})
	t.Run("forbidden probe reported as error", func(t *testing.T) {
		r := runToolExpectError(t, h.queryArchive, map[string]any{
			"owner":     "room@muc.example.net",
			"room":      true,
			"room_mode": "semi-anonymous",
			"with":      "alice@example.com",
		})
		if !strings.Contains(resultText(t, r), "forbidden") {
			t.Errorf("error text %q does not mention forbidden", resultText(t, r))
		}
	})
}

func TestQueryArchiveToolPaging(t *testing.T) {
	h := testHandlers(t)

	page := runTool[pageOut](t, h.queryArchive, map[string]any{
		"owner":     "room@muc.example.net",
		"room":      true,
		"room_mode": "semi-anonymous",
		"max":       float64(1),
	})
	if len(page.Messages) != 1 || page.Complete {
		t.Fatalf("first page: %+v", page)
	}

	next := runTool[pageOut](t, h.queryArchive, map[string]any{
		"owner":     "room@muc.example.net",
		"room":      true,
		"room_mode": "semi-anonymous",
		"max":       float64(1),
		"after":     page.Last,
	})
	if len(next.Messages) != 1 || !next.Complete {
		t.Fatalf("second page: %+v", next)
	}
	if next.Messages[0].Body != "second" {
		t.Errorf("second page body = %q", next.Messages[0].Body)
	}
}

func TestGetMessageTool(t *testing.T) {
	h := testHandlers(t)

	m := runTool[messageOut](t, h.getMessage, map[string]any{
		"owner": "room@muc.example.net",
		"id":    float64(1),
	})
	if m.Body != "first" {
		t.Errorf("Body = %q, want first", m.Body)
	}
	if m.RealJID != "" {
		t.Errorf("semi-anonymous room record leaked real JID %s", m.RealJID)
	}

	runToolExpectError(t, h.getMessage, map[string]any{
		"owner": "room@muc.example.net",
		"id":    float64(0),
	})
	runToolExpectError(t, h.getMessage, map[string]any{
		"owner": "room@muc.example.net",
		"id":    float64(424242),
	})
}

func TestGetStatsTool(t *testing.T) {
	h := testHandlers(t)

	stats := runTool[map[string]any](t, h.getStats, map[string]any{})
	if stats["total_messages"].(float64) != 2 {
		t.Errorf("total_messages = %v, want 2", stats["total_messages"])
	}
}

func TestActiveConversationsTool(t *testing.T) {
	h := testHandlers(t)

	convs := runTool[[]conversationOut](t, h.activeConversations, map[string]any{})
	if len(convs) != 0 {
		t.Errorf("got %d conversations, want 0", len(convs))
	}
}
