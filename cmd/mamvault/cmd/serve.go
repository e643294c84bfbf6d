package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mamvault/mamvault/internal/api"
	"github.com/mamvault/mamvault/internal/archiver"
	"github.com/mamvault/mamvault/internal/mam"
	"github.com/mamvault/mamvault/internal/store"
	"github.com/mamvault/mamvault/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the archive service",
	Long: `Run mamvault as a long-running service.

The service runs in the foreground and provides:
  - HTTP API on the configured port (default: 8080) for archiving
    messages and answering archive queries
  - A periodic sweep that closes conversations idle past the timeout

Configure the sweep in config.toml:
  [archive]
  idle_timeout = "1h"
  sweep_schedule = "*/15 * * * *"   # cron format

Use Ctrl+C to stop the service gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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
	if !st.FTSAvailable() {
		logger.Warn("sqlite built without fts5, text queries will be rejected")
	}

	tr := tracker.New(st, logger, idle)
	engine := mam.NewEngine(st, logger, mam.Options{
		DefaultPageSize: cfg.Archive.DefaultPageSize,
		MaxPageSize:     cfg.Archive.MaxPageSize,
	})
	arch := archiver.New(st, tr, logger)

	sweeper, err := tracker.NewSweeper(tr, cfg.Archive.SweepSchedule, logger)
	if err != nil {
		return err
	}

	srv := api.NewServer(cfg, engine, arch, tr, st, logger)

	sweeper.Start()
	defer sweeper.Stop()

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("service stopped")
	return nil
}
