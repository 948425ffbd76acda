package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"aidchain/internal/ledger/models"
	"aidchain/internal/ledger/service"
	"aidchain/internal/ledger/store"
)

func newLedgerRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := service.New(store.NewMemoryStore())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func postBlock(t *testing.T, router http.Handler, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/ledger/blocks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAddBlockEndpoint(t *testing.T) {
	router := newLedgerRouter(t)

	rec := postBlock(t, router, map[string]any{
		"transaction_type": "aid_distribution",
		"data":             map[string]any{"beneficiary": "b-1", "items": []string{"water", "blankets"}},
		"created_by":       "field-officer-7",
		"description":      "water and blankets delivered",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var block models.Block
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&block))
	// Genesis is created lazily, so the first business block is number 2.
	require.Equal(t, uint64(2), block.BlockNumber)
	require.Len(t, block.Hash, 64)
	require.Equal(t, models.TypeAidDistribution, block.TransactionType)
}

func TestAddBlockRejectsUnknownType(t *testing.T) {
	router := newLedgerRouter(t)

	rec := postBlock(t, router, map[string]any{
		"transaction_type": "bribe",
		"data":             map[string]any{"x": 1},
		"created_by":       "someone",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	require.Equal(t, "invalid_input", errResp.Error)
}

func TestGetBlockEndpoint(t *testing.T) {
	router := newLedgerRouter(t)
	postBlock(t, router, map[string]any{
		"transaction_type": "donation_received",
		"data":             map[string]any{"amount": 500},
		"created_by":       "donor-desk",
	})

	req := httptest.NewRequest(http.MethodGet, "/ledger/blocks/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var block models.Block
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&block))
	require.Equal(t, uint64(2), block.BlockNumber)

	req = httptest.NewRequest(http.MethodGet, "/ledger/blocks/99", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/ledger/blocks/zero", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEndpoints(t *testing.T) {
	router := newLedgerRouter(t)
	for i := 0; i < 3; i++ {
		rec := postBlock(t, router, map[string]any{
			"transaction_type": "resource_received",
			"data":             map[string]any{"seq": i},
			"created_by":       "warehouse",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/ledger/blocks/3/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var blockResult models.BlockVerification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&blockResult))
	require.True(t, blockResult.Valid)

	req = httptest.NewRequest(http.MethodGet, "/ledger/verify", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var chainResult models.ChainVerification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&chainResult))
	require.True(t, chainResult.Valid)
	require.Equal(t, uint64(4), chainResult.TotalBlocks)
}

func TestMarkVerifiedEndpoint(t *testing.T) {
	router := newLedgerRouter(t)
	postBlock(t, router, map[string]any{
		"transaction_type": "verification",
		"data":             map[string]any{"case": "c-12"},
		"created_by":       "auditor-2",
	})

	body, _ := json.Marshal(map[string]string{"verified_by": "auditor-2"})
	req := httptest.NewRequest(http.MethodPut, "/ledger/blocks/2/verification", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var block models.Block
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&block))
	require.True(t, block.Verified)
	require.NotNil(t, block.VerifiedAt)
	require.Equal(t, "auditor-2", block.VerifiedBy.String())
}

func TestListAndSearchEndpoints(t *testing.T) {
	router := newLedgerRouter(t)
	postBlock(t, router, map[string]any{
		"transaction_type": "aid_distribution",
		"data":             map[string]any{"site": "north-camp"},
		"created_by":       "field-officer-7",
	})
	postBlock(t, router, map[string]any{
		"transaction_type": "donation_received",
		"data":             map[string]any{"site": "south-camp"},
		"created_by":       "donor-desk",
	})

	req := httptest.NewRequest(http.MethodGet, "/ledger/blocks?type=aid_distribution", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var blocks []models.Block
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&blocks))
	require.Len(t, blocks, 1)
	require.Equal(t, models.TypeAidDistribution, blocks[0].TransactionType)

	// Missing type parameter is a client error.
	req = httptest.NewRequest(http.MethodGet, "/ledger/blocks", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/ledger/search?q=north-camp", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	blocks = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&blocks))
	require.Len(t, blocks, 1)
	require.Equal(t, "north-camp", blocks[0].Data["site"])

	// No matches still returns an empty array, not null.
	req = httptest.NewRequest(http.MethodGet, "/ledger/search?q=nowhere", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}

func TestStatisticsEndpoint(t *testing.T) {
	router := newLedgerRouter(t)
	postBlock(t, router, map[string]any{
		"transaction_type": "aid_distribution",
		"data":             map[string]any{"n": 1},
		"created_by":       "field-officer-7",
	})

	req := httptest.NewRequest(http.MethodGet, "/ledger/statistics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.Statistics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	require.Equal(t, uint64(2), stats.TotalBlocks)
	require.Equal(t, uint64(1), stats.CountsByType[models.TypeAidDistribution])
}

func TestVerifyUnknownBlock(t *testing.T) {
	router := newLedgerRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/ledger/blocks/5/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
