// Package handler exposes operator actions for the priority module: manual
// recomputes and the urgent-case dashboard feed.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	ledgermodels "aidchain/internal/ledger/models"
	"aidchain/internal/priority/models"
	"aidchain/internal/priority/service"
	"aidchain/pkg/domain"
	dErrors "aidchain/pkg/domain-errors"
	"aidchain/pkg/platform/httputil"
)

// Service defines the priority operations the HTTP layer depends on.
type Service interface {
	UpdateOne(ctx context.Context, id domain.BeneficiaryID) (models.UpdateResult, error)
	UpdateAll(ctx context.Context) (models.BatchReport, error)
	RefreshUrgentSnapshot(ctx context.Context) ([]models.UrgentCase, error)
	CachedUrgentCases(ctx context.Context) ([]models.UrgentCase, error)
}

// Journal records operator actions on the audit ledger. Satisfied by the
// ledger service.
type Journal interface {
	AddBlock(ctx context.Context, txType ledgermodels.TransactionType, data map[string]any, createdBy domain.ActorID, description string) (ledgermodels.Block, error)
}

// Handler wires priority endpoints to the priority service.
type Handler struct {
	service Service
	journal Journal
	logger  *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithJournal enables audit-ledger entries for manual recomputes.
func WithJournal(j Journal) Option {
	return func(h *Handler) {
		h.journal = j
	}
}

// New constructs a priority handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts priority endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/priority/recompute", h.HandleRecomputeAll)
	r.Post("/priority/beneficiaries/{id}/recompute", h.HandleRecomputeOne)
	r.Get("/priority/urgent", h.HandleUrgentCases)
}

// HandleRecomputeAll handles POST /priority/recompute: a manual full batch
// run. Returns 409 when a run is already in flight.
func (h *Handler) HandleRecomputeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.service.UpdateAll(ctx)
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, "a batch run is already in progress"))
			return
		}
		httputil.WriteError(w, err)
		return
	}

	// The run changed derived state, so the cached urgent feed is stale.
	if _, err := h.service.RefreshUrgentSnapshot(ctx); err != nil {
		h.logger.WarnContext(ctx, "urgent snapshot refresh failed after recompute", "error", err)
	}
	h.journalRecompute(ctx, report)

	httputil.WriteJSON(w, http.StatusOK, report)
}

// journalRecompute appends a system_event block recording the manual run.
// Best-effort: the ledger is an audit trail, not the system of record, so a
// failed append is logged and the request still succeeds.
func (h *Handler) journalRecompute(ctx context.Context, report models.BatchReport) {
	if h.journal == nil {
		return
	}
	_, err := h.journal.AddBlock(ctx, ledgermodels.TypeSystemEvent,
		map[string]any{
			"event":     "priority_recompute",
			"updated":   report.Updated,
			"escalated": len(report.Escalated),
			"errors":    len(report.Errors),
		},
		"system",
		"manual full priority recompute",
	)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to journal recompute on ledger", "error", err)
	}
}

// HandleRecomputeOne handles POST /priority/beneficiaries/{id}/recompute.
func (h *Handler) HandleRecomputeOne(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseBeneficiaryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.UpdateOne(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleUrgentCases handles GET /priority/urgent, served from the snapshot
// cache when one is fresh.
func (h *Handler) HandleUrgentCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.service.CachedUrgentCases(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if cases == nil {
		cases = []models.UrgentCase{}
	}
	httputil.WriteJSON(w, http.StatusOK, cases)
}
