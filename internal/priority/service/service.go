// Package service orchestrates bulk re-scoring of beneficiaries and the
// urgent-case feed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"aidchain/internal/alerting"
	"aidchain/internal/priority/metrics"
	"aidchain/internal/priority/models"
	"aidchain/internal/priority/scoring"
	"aidchain/internal/priority/store"
	"aidchain/pkg/domain"
	dErrors "aidchain/pkg/domain-errors"
	"aidchain/pkg/platform/sentinel"
)

const defaultWorkers = 8

// ErrRunInProgress is returned when a batch run is requested while a
// previous one is still in flight. The new invocation is skipped; re-scoring
// is idempotent, so the in-flight run's results are just as good.
var ErrRunInProgress = errors.New("batch re-scoring already in progress")

// Service re-scores beneficiaries, detects escalations, and serves the
// urgent-case feed.
type Service struct {
	store     store.BeneficiaryStore
	publisher alerting.Publisher
	cache     Cache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	workers   int

	running atomic.Bool
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithWorkers bounds batch re-scoring concurrency.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithUrgentCache enables urgent-snapshot caching.
func WithUrgentCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// New constructs a priority service. The publisher receives escalation
// alerts; pass alerting.NewMemory() when no broker is configured.
func New(beneficiaries store.BeneficiaryStore, publisher alerting.Publisher, opts ...Option) (*Service, error) {
	if beneficiaries == nil {
		return nil, errors.New("beneficiary store is required")
	}
	if publisher == nil {
		return nil, errors.New("alert publisher is required")
	}

	s := &Service{
		store:     beneficiaries,
		publisher: publisher,
		logger:    slog.Default(),
		now:       time.Now,
		workers:   defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UpdateOne re-scores a single beneficiary and persists the derived state.
func (s *Service) UpdateOne(ctx context.Context, id domain.BeneficiaryID) (models.UpdateResult, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.UpdateResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "beneficiary not found")
		}
		return models.UpdateResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load beneficiary")
	}
	return s.rescore(ctx, b)
}

// rescore applies the scorer to a loaded snapshot, persists the replacement
// state, and fires the escalation alert when warranted.
func (s *Service) rescore(ctx context.Context, b models.Beneficiary) (models.UpdateResult, error) {
	now := s.now().UTC()
	state, escalated := scoring.Apply(b, now)

	if err := s.store.UpdateVulnerability(ctx, b.ID, state); err != nil {
		return models.UpdateResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist vulnerability state")
	}
	s.metrics.IncRescored()

	result := models.UpdateResult{
		BeneficiaryID: b.ID,
		PreviousTier:  b.Vulnerability.Tier,
		State:         state,
		Escalated:     escalated,
	}
	if escalated {
		s.metrics.IncEscalation()
		s.publishEscalation(ctx, result)
	}
	return result, nil
}

// publishEscalation is best-effort: the new state is already persisted, so a
// failed alert is logged and dropped rather than failing the update.
func (s *Service) publishEscalation(ctx context.Context, result models.UpdateResult) {
	event := models.Escalation{
		BeneficiaryID: result.BeneficiaryID,
		PreviousTier:  result.PreviousTier,
		NewTier:       result.State.Tier,
		Score:         result.State.Score,
		OccurredAt:    result.State.LastScoreUpdate,
	}
	if err := s.publisher.PublishEscalation(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "escalation alert publish failed",
			"beneficiary_id", event.BeneficiaryID,
			"new_tier", event.NewTier,
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "priority escalation",
		"beneficiary_id", event.BeneficiaryID,
		"previous_tier", event.PreviousTier,
		"new_tier", event.NewTier,
		"score", event.Score,
	)
}

// UpdateAll re-scores every active beneficiary. Per-record failures are
// collected into the report and never abort the batch; only an unreachable
// store on the initial listing does. A second invocation while one is in
// flight returns ErrRunInProgress.
func (s *Service) UpdateAll(ctx context.Context) (models.BatchReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.ObserveBatchRun("skipped", 0)
		return models.BatchReport{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	start := s.now().UTC()
	active, err := s.store.ListActive(ctx)
	if err != nil {
		s.metrics.ObserveBatchRun("aborted", 0)
		return models.BatchReport{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list active beneficiaries")
	}

	report := models.BatchReport{
		Escalated: []models.Escalation{},
		Errors:    []models.BatchError{},
		StartedAt: start,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, b := range active {
		g.Go(func() error {
			result, err := s.rescore(gctx, b)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.metrics.IncRescoreError()
				report.Errors = append(report.Errors, models.BatchError{
					BeneficiaryID: b.ID,
					Error:         err.Error(),
				})
				return nil
			}
			report.Updated++
			if result.Escalated {
				report.Escalated = append(report.Escalated, models.Escalation{
					BeneficiaryID: result.BeneficiaryID,
					PreviousTier:  result.PreviousTier,
					NewTier:       result.State.Tier,
					Score:         result.State.Score,
					OccurredAt:    result.State.LastScoreUpdate,
				})
			}
			return nil
		})
	}
	// Per-record errors never propagate, so Wait only reflects ctx cancellation.
	_ = g.Wait()

	report.Duration = s.now().UTC().Sub(start)
	report.DurationMS = report.Duration.Milliseconds()
	s.metrics.ObserveBatchRun("completed", report.Duration)

	s.logger.InfoContext(ctx, "batch re-scoring completed",
		"total", len(active),
		"updated", report.Updated,
		"escalated", len(report.Escalated),
		"errors", len(report.Errors),
		"duration_ms", report.DurationMS,
	)
	return report, nil
}

// GetUrgentCases returns active beneficiaries who are currently CRITICAL or
// overdue (past their delivery ETA without aid). Read-only: nothing is
// re-scored.
func (s *Service) GetUrgentCases(ctx context.Context) ([]models.UrgentCase, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list active beneficiaries")
	}

	now := s.now().UTC()
	cases := make([]models.UrgentCase, 0)
	for _, b := range active {
		v := b.Vulnerability
		overdue := !v.EstimatedDelivery.IsZero() && v.EstimatedDelivery.Before(now) && !b.AidDelivered
		if v.Tier != models.TierCritical && !overdue {
			continue
		}
		cases = append(cases, models.UrgentCase{
			BeneficiaryID:     b.ID,
			Tier:              v.Tier,
			Score:             v.Score,
			EstimatedDelivery: v.EstimatedDelivery,
			Overdue:           overdue,
		})
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Score > cases[j].Score })

	s.metrics.SetUrgentCases(len(cases))
	return cases, nil
}

// RefreshUrgentSnapshot recomputes the urgent feed and caches it for the
// dashboard. Called by the hourly scan and after manual recomputes.
func (s *Service) RefreshUrgentSnapshot(ctx context.Context) ([]models.UrgentCase, error) {
	cases, err := s.GetUrgentCases(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheUrgentSnapshot(ctx, cases)
	return cases, nil
}

// CachedUrgentCases serves the urgent feed from the snapshot cache, falling
// back to a live computation (which repopulates the cache) on a miss.
func (s *Service) CachedUrgentCases(ctx context.Context) ([]models.UrgentCase, error) {
	if s.cache != nil {
		cases, ok, err := s.cache.GetSnapshot(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "urgent snapshot read failed", "error", err)
		} else if ok {
			return cases, nil
		}
	}
	return s.RefreshUrgentSnapshot(ctx)
}

func (s *Service) cacheUrgentSnapshot(ctx context.Context, cases []models.UrgentCase) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetSnapshot(ctx, cases); err != nil {
		s.logger.WarnContext(ctx, "urgent snapshot write failed", "error", err)
	}
}
