package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamvault/mamvault/internal/store"
	"github.com/mamvault/mamvault/internal/tracker"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List active conversations",
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

		tr := tracker.New(st, logger, idle)
		convs, err := tr.Active(cmd.Context())
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}

		if len(convs) == 0 {
			fmt.Println("No active conversations.")
			return nil
		}
		for _, c := range convs {
			fmt.Printf("%-6d %s <-> %s  %d message(s), last activity %s\n",
				c.ID, c.Owner, c.Peer, c.MessageCount,
				c.LastActivity.UTC().Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
}
