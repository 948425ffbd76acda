// Package handler exposes the operator-facing audit surface of the ledger.
// Handlers stay thin: decode, delegate, translate errors.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"aidchain/internal/ledger/models"
	ledger "aidchain/internal/ledger/service"
	"aidchain/pkg/domain"
	dErrors "aidchain/pkg/domain-errors"
	"aidchain/pkg/platform/httputil"
)

// Service defines the ledger operations the HTTP layer depends on.
type Service interface {
	AddBlock(ctx context.Context, txType models.TransactionType, data map[string]any, createdBy domain.ActorID, description string) (models.Block, error)
	Block(ctx context.Context, number uint64) (models.Block, error)
	VerifyBlock(ctx context.Context, number uint64) (models.BlockVerification, error)
	VerifyChain(ctx context.Context) (models.ChainVerification, error)
	BlocksByType(ctx context.Context, txType models.TransactionType, limit int) ([]models.Block, error)
	Search(ctx context.Context, query string, limit int) ([]models.Block, error)
	Statistics(ctx context.Context) (models.Statistics, error)
	MarkBlockVerified(ctx context.Context, number uint64, verifiedBy domain.ActorID) (models.Block, error)
}

// Handler wires ledger endpoints to the ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a ledger handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts ledger endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ledger/blocks", h.HandleAddBlock)
	r.Get("/ledger/blocks", h.HandleListByType)
	r.Get("/ledger/blocks/{number}", h.HandleGetBlock)
	r.Post("/ledger/blocks/{number}/verify", h.HandleVerifyBlock)
	r.Put("/ledger/blocks/{number}/verification", h.HandleMarkVerified)
	r.Get("/ledger/verify", h.HandleVerifyChain)
	r.Get("/ledger/search", h.HandleSearch)
	r.Get("/ledger/statistics", h.HandleStatistics)
}

// AddBlockRequest is the append payload collaborators send after their
// business transaction has committed.
type AddBlockRequest struct {
	TransactionType string         `json:"transaction_type"`
	Data            map[string]any `json:"data"`
	CreatedBy       string         `json:"created_by"`
	Description     string         `json:"description"`
}

// HandleAddBlock handles POST /ledger/blocks.
func (h *Handler) HandleAddBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.Decode[AddBlockRequest](w, r, h.logger)
	if !ok {
		return
	}

	block, err := h.service.AddBlock(ctx,
		models.TransactionType(req.TransactionType),
		req.Data,
		domain.ActorID(req.CreatedBy),
		req.Description,
	)
	if err != nil {
		h.logger.ErrorContext(ctx, "block append failed",
			"transaction_type", req.TransactionType,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "block appended via api",
		"block_number", block.BlockNumber,
		"transaction_type", block.TransactionType,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, block)
}

// HandleGetBlock handles GET /ledger/blocks/{number}.
func (h *Handler) HandleGetBlock(w http.ResponseWriter, r *http.Request) {
	number, ok := h.blockNumber(w, r)
	if !ok {
		return
	}
	block, err := h.service.Block(r.Context(), number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, block)
}

// HandleVerifyBlock handles POST /ledger/blocks/{number}/verify.
func (h *Handler) HandleVerifyBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number, ok := h.blockNumber(w, r)
	if !ok {
		return
	}
	result, err := h.service.VerifyBlock(ctx, number)
	if err != nil {
		if errors.Is(err, ledger.ErrPreviousBlockMissing) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, "previous block missing"))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	if !result.Valid {
		h.logger.WarnContext(ctx, "block failed verification",
			"block_number", result.BlockNumber,
			"reason", result.Reason,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleVerifyChain handles GET /ledger/verify. A failed verification is
// still a 200: the result body carries the structured defect report the
// auditor acts on.
func (h *Handler) HandleVerifyChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	result, err := h.service.VerifyChain(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "chain verification completed",
		"valid", result.Valid,
		"total_blocks", result.TotalBlocks,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// MarkVerifiedRequest identifies the auditor recording a verification pass.
type MarkVerifiedRequest struct {
	VerifiedBy string `json:"verified_by"`
}

// HandleMarkVerified handles PUT /ledger/blocks/{number}/verification.
func (h *Handler) HandleMarkVerified(w http.ResponseWriter, r *http.Request) {
	number, ok := h.blockNumber(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[MarkVerifiedRequest](w, r, h.logger)
	if !ok {
		return
	}
	block, err := h.service.MarkBlockVerified(r.Context(), number, domain.ActorID(req.VerifiedBy))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, block)
}

// HandleListByType handles GET /ledger/blocks?type=...&limit=...
func (h *Handler) HandleListByType(w http.ResponseWriter, r *http.Request) {
	txType := r.URL.Query().Get("type")
	if txType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "type query parameter is required"))
		return
	}
	blocks, err := h.service.BlocksByType(r.Context(), models.TransactionType(txType), queryLimit(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, blockList(blocks))
}

// HandleSearch handles GET /ledger/search?q=...&limit=...
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, blockList(blocks))
}

// HandleStatistics handles GET /ledger/statistics.
func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) blockNumber(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "number")
	number, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || number == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "block number must be a positive integer"))
		return 0, false
	}
	return number, true
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// blockList keeps empty results as [] rather than null in JSON responses.
func blockList(blocks []models.Block) []models.Block {
	if blocks == nil {
		return []models.Block{}
	}
	return blocks
}
