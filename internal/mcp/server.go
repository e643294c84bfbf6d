// Package mcp exposes the archive over the Model Context Protocol:
// read-only tools for querying archives, fetching single messages,
// listing active conversations, and archive statistics.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mamvault/mamvault/internal/mam"
	"github.com/mamvault/mamvault/internal/store"
	"github.com/mamvault/mamvault/internal/tracker"
)

// Tool name constants.
const (
	ToolQueryArchive        = "query_archive"
	ToolGetMessage          = "get_message"
	ToolActiveConversations = "active_conversations"
	ToolGetStats            = "get_stats"
)

// Serve creates an MCP server with archive tools and serves over stdio.
// It blocks until stdin is closed or the context is cancelled.
func Serve(ctx context.Context, engine *mam.Engine, tr *tracker.Tracker, st *store.Store) error {
	s := server.NewMCPServer(
		"mamvault",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	h := &handlers{engine: engine, tracker: tr, store: st}

	s.AddTool(queryArchiveTool(), h.queryArchive)
	s.AddTool(getMessageTool(), h.getMessage)
	s.AddTool(activeConversationsTool(), h.activeConversations)
	s.AddTool(getStatsTool(), h.getStats)

	stdio := server.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func queryArchiveTool() mcp.Tool {
	return mcp.NewTool(ToolQueryArchive,
		mcp.WithDescription("Query an archive for messages. Supports peer filters, date ranges, full-text search, and cursor paging. Identities hidden by room anonymity policy are never returned."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("owner",
			mcp.Required(),
			mcp.Description("Bare JID of the archive to query (user or room)"),
		),
		mcp.WithBoolean("room",
			mcp.Description("Whether the owner is a room archive (default false)"),
		),
		mcp.WithString("with",
			mcp.Description("Counterpart filter: bare JID for coarse matching, full JID for a single connection or occupant"),
		),
		mcp.WithString("room_mode",
			mcp.Description("Room anonymity mode for room queries: non-anonymous, semi-anonymous, or fully-anonymous"),
		),
		mcp.WithString("start",
			mcp.Description("Only messages on or after this date (YYYY-MM-DD)"),
		),
		mcp.WithString("end",
			mcp.Description("Only messages before this date (YYYY-MM-DD)"),
		),
		mcp.WithString("text",
			mcp.Description("Full-text body filter (requires the search index)"),
		),
		mcp.WithString("after",
			mcp.Description("Paging cursor: return messages after this token"),
		),
		mcp.WithString("before",
			mcp.Description("Paging cursor: return the page ending before this token"),
		),
		mcp.WithNumber("max",
			mcp.Description("Maximum messages per page (default 50)"),
		),
	)
}

func getMessageTool() mcp.Tool {
	return mcp.NewTool(ToolGetMessage,
		mcp.WithDescription("Get one archived message by archive owner and message ID."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("owner",
			mcp.Required(),
			mcp.Description("Bare JID of the archive"),
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Message ID"),
		),
	)
}

func activeConversationsTool() mcp.Tool {
	return mcp.NewTool(ToolActiveConversations,
		mcp.WithDescription("List conversations that are currently active (open and within the idle window)."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func getStatsTool() mcp.Tool {
	return mcp.NewTool(ToolGetStats,
		mcp.WithDescription("Get archive overview: message, conversation, and participant counts plus database size."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}
