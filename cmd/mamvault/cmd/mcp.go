package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamvault/mamvault/internal/mam"
	"github.com/mamvault/mamvault/internal/mcp"
	"github.com/mamvault/mamvault/internal/store"
	"github.com/mamvault/mamvault/internal/tracker"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	Long: `Run an MCP (Model Context Protocol) server over stdio, exposing
read-only archive tools: query_archive, get_message,
active_conversations, and get_stats.

Add to an MCP client configuration:
  {"command": "mamvault", "args": ["mcp"]}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		idle, err := cfg.IdleTimeout()
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer st.Close()
		if err := st.InitSchema(); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}

		engine := mam.NewEngine(st, logger, mam.Options{
			DefaultPageSize: cfg.Archive.DefaultPageSize,
			MaxPageSize:     cfg.Archive.MaxPageSize,
		})
		tr := tracker.New(st, logger, idle)

		return mcp.Serve(cmd.Context(), engine, tr, st)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
