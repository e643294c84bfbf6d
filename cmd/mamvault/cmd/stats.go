package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamvault/mamvault/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		if err := s.InitSchema(); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}

		stats, err := s.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		fmt.Printf("Database: %s\n", cfg.DatabasePath())
		fmt.Printf("  Messages:             %d\n", stats.MessageCount)
		fmt.Printf("  Archives:             %d\n", stats.ArchiveCount)
		fmt.Printf("  Conversations:        %d\n", stats.ConversationCount)
		fmt.Printf("  Active conversations: %d\n", stats.ActiveCount)
		fmt.Printf("  Participant spans:    %d\n", stats.ParticipantCount)
		fmt.Printf("  Size:                 %.2f MB\n", float64(stats.DatabaseSize)/(1024*1024))
		fmt.Printf("  Full-text search:     %v\n", s.FTSAvailable())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
