package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aidchain/internal/priority/models"
	"aidchain/internal/priority/service"
)

type countingService struct {
	fullRuns   atomic.Int64
	urgentRuns atomic.Int64
	fullErr    error
}

func (c *countingService) UpdateAll(context.Context) (models.BatchReport, error) {
	c.fullRuns.Add(1)
	if c.fullErr != nil {
		return models.BatchReport{}, c.fullErr
	}
	return models.BatchReport{Updated: 1}, nil
}

func (c *countingService) RefreshUrgentSnapshot(context.Context) ([]models.UrgentCase, error) {
	c.urgentRuns.Add(1)
	return nil, nil
}

func TestRunnerTicksBothJobs(t *testing.T) {
	svc := &countingService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := New(svc, 10*time.Millisecond, 10*time.Millisecond, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := runner.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Greater(t, svc.fullRuns.Load(), int64(0))
	require.Greater(t, svc.urgentRuns.Load(), int64(0))
}

func TestRunnerSurvivesJobFailures(t *testing.T) {
	svc := &countingService{fullErr: service.ErrRunInProgress}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := New(svc, 5*time.Millisecond, time.Hour, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, runner.Run(ctx), context.DeadlineExceeded)
	// Kept ticking despite every run reporting a failure.
	require.Greater(t, svc.fullRuns.Load(), int64(1))
}

func TestRunnerStopsPromptlyOnCancel(t *testing.T) {
	svc := &countingService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := New(svc, time.Hour, time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}
