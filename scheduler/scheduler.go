package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"alquilercito/aggregator"
)

// Refresher is the aggregator as driven by the scheduler.
type Refresher interface {
	Snapshot(ctx context.Context, force bool) *aggregator.Snapshot
}

// Scheduler force-refreshes the listings at the daily cutoff so the first
// request after it is served from a warm cache.
type Scheduler struct {
	refresher Refresher
	cutoff    aggregator.Cutoff
	warm      bool
	cron      *cron.Cron
	entry     cron.EntryID
	logger    *slog.Logger
}

type Options struct {
	Cutoff      aggregator.Cutoff
	Location    *time.Location
	WarmOnStart bool
	Logger      *slog.Logger
}

func New(r Refresher, opts Options) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		refresher: r,
		cutoff:    opts.Cutoff,
		warm:      opts.WarmOnStart,
		cron:      cron.New(cron.WithLocation(loc)),
		logger:    logger.With("component", "scheduler"),
	}
}

// CronExpr is the cron expression firing daily at c.
func CronExpr(c aggregator.Cutoff) string {
	return fmt.Sprintf("%d %d * * *", c.Minute, c.Hour)
}

func (s *Scheduler) Start(ctx context.Context) error {
	spec := CronExpr(s.cutoff)
	id, err := s.cron.AddFunc(spec, func() {
		s.run(ctx, true, "scheduled")
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	s.entry = id
	s.cron.Start()
	s.logger.Info("scheduler started", "cron", spec, "next", s.Next())

	if s.warm {
		go s.run(ctx, false, "warm-up")
	}
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next is the time of the next scheduled refresh, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// TriggerNow forces a refresh outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) *aggregator.Snapshot {
	return s.run(ctx, true, "manual")
}

func (s *Scheduler) run(ctx context.Context, force bool, reason string) *aggregator.Snapshot {
	if ctx.Err() != nil {
		return nil
	}
	snap := s.refresher.Snapshot(ctx, force)
	s.logger.Info("refresh finished",
		"reason", reason,
		"run_id", snap.RunID,
		"listings", len(snap.Listings),
		"expires_at", snap.ExpiresAt,
	)
	return snap
}
