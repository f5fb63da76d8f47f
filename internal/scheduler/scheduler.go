package scheduler

import (
	"context"
	"fmt"
	"time"

	"driver-settlement-engine/internal/core/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the settlement sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweep   ports.SweepService
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a scheduler and registers the sweep job. schedule uses the
// six-field cron format (with seconds).
func New(sweep ports.SweepService, schedule string, timeout time.Duration, log zerolog.Logger) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{cron: c, sweep: sweep, timeout: timeout, log: log}
	if _, err := c.AddFunc(schedule, s.runSweep); err != nil {
		return nil, fmt.Errorf("register sweep job %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) runSweep() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.sweep.Run(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled sweep failed")
		return
	}
	s.log.Debug().
		Int("scanned", report.Scanned).
		Int("settled", report.Settled).
		Int("failed", report.Failed).
		Msg("scheduled sweep done")
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("cron scheduler started")
}

// Stop waits for a running sweep to finish or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("cron scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
