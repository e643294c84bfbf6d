package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the idle-conversation sweep on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	tracker *Tracker
	logger  *slog.Logger

	mu        sync.Mutex
	entryID   cron.EntryID
	running   bool
	lastRun   time.Time
	lastSwept int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper schedules the sweep with a five-field cron expression.
func NewSweeper(tr *Tracker, schedule string, logger *slog.Logger) (*Sweeper, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
		))),
		tracker: tr,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.mu.Lock()
		if s.running {
			s.mu.Unlock()
			return
		}
		s.running = true
		s.wg.Add(1)
		s.mu.Unlock()
		s.runSweep()
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.entryID = entryID
	return s, nil
}

// Start begins executing scheduled sweeps.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper started",
		"next_run", s.cron.Entry(s.entryID).Next,
		"idle_timeout", s.tracker.IdleTimeout())
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	cronCtx := s.cron.Stop()
	s.cancel()
	<-cronCtx.Done()
	s.wg.Wait()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) runSweep() {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	n, err := s.tracker.SweepIdle(s.ctx, start)
	if err != nil {
		s.logger.Error("idle sweep failed", "error", err, "duration", time.Since(start))
		return
	}

	s.mu.Lock()
	s.lastRun = start
	s.lastSwept = n
	s.mu.Unlock()

	if n > 0 {
		s.logger.Info("idle sweep closed conversations",
			"closed", n, "duration", time.Since(start))
	}
}

// ValidateSchedule validates a cron expression without scheduling anything.
func ValidateSchedule(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
