// Package scheduler drives the unattended re-scoring cadences: a daily full
// recompute and an hourly urgent scan.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"aidchain/internal/platform/clock"
	"aidchain/internal/priority/models"
	"aidchain/internal/priority/service"
)

// PriorityService is the slice of the priority service the scheduler drives.
type PriorityService interface {
	UpdateAll(ctx context.Context) (models.BatchReport, error)
	RefreshUrgentSnapshot(ctx context.Context) ([]models.UrgentCase, error)
}

// Runner executes the two scheduled jobs until its context is canceled.
type Runner struct {
	priority       PriorityService
	logger         *slog.Logger
	fullInterval   time.Duration
	urgentInterval time.Duration
}

// New constructs a scheduler runner.
func New(priority PriorityService, fullInterval, urgentInterval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		priority:       priority,
		logger:         logger,
		fullInterval:   fullInterval,
		urgentInterval: urgentInterval,
	}
}

// Run blocks until ctx is canceled, running both cadences. It always returns
// ctx's error; job failures are logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.loop(gctx, "full_recompute", r.fullInterval, r.fullRecompute) })
	g.Go(func() error { return r.loop(gctx, "urgent_scan", r.urgentInterval, r.urgentScan) })
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context)) error {
	r.logger.InfoContext(ctx, "scheduled job started", "job", name, "interval", interval.String())
	for {
		if err := clock.SleepWithContext(ctx, interval); err != nil {
			r.logger.InfoContext(ctx, "scheduled job stopped", "job", name)
			return err
		}
		job(ctx)
	}
}

func (r *Runner) fullRecompute(ctx context.Context) {
	report, err := r.priority.UpdateAll(ctx)
	if err != nil {
		// A manually triggered run may still be in flight; that run's
		// results cover this tick.
		if errors.Is(err, service.ErrRunInProgress) {
			r.logger.InfoContext(ctx, "full recompute skipped, run already in progress")
			return
		}
		r.logger.ErrorContext(ctx, "scheduled full recompute failed", "error", err)
		return
	}
	r.logger.InfoContext(ctx, "scheduled full recompute completed",
		"updated", report.Updated,
		"escalated", len(report.Escalated),
		"errors", len(report.Errors),
	)
}

func (r *Runner) urgentScan(ctx context.Context) {
	cases, err := r.priority.RefreshUrgentSnapshot(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "urgent scan failed", "error", err)
		return
	}
	r.logger.InfoContext(ctx, "urgent scan completed", "urgent_cases", len(cases))
}
