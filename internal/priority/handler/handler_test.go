package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"aidchain/internal/alerting"
	ledgerservice "aidchain/internal/ledger/service"
	ledgerstore "aidchain/internal/ledger/store"
	"aidchain/internal/priority/models"
	"aidchain/internal/priority/service"
	"aidchain/internal/priority/store"
	"aidchain/pkg/domain"
)

type fixture struct {
	router  http.Handler
	store   *store.MemoryStore
	ledger  *ledgerservice.Service
	service *service.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	beneficiaries := store.NewMemoryStore()
	svc, err := service.New(beneficiaries, alerting.NewMemory())
	require.NoError(t, err)

	ledger, err := ledgerservice.New(ledgerstore.NewMemoryStore())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(svc, logger, WithJournal(ledger)).Register(r)

	return &fixture{router: r, store: beneficiaries, ledger: ledger, service: svc}
}

func (f *fixture) seed(t *testing.T, needs int) models.Beneficiary {
	t.Helper()
	b := models.Beneficiary{
		ID:         domain.NewBeneficiaryID(),
		FamilySize: 2,
		Geographic: models.GeographicFactors{AccessibilityScore: 5},
		Active:     true,
	}
	for i := 0; i < needs; i++ {
		b.Needs = append(b.Needs, models.Need{Description: "shelter", Priority: models.SeverityCritical})
	}
	require.NoError(t, f.store.Put(context.Background(), b))
	return b
}

func TestRecomputeAllEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	f.seed(t, 3)

	req := httptest.NewRequest(http.MethodPost, "/priority/recompute", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.BatchReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Equal(t, 2, report.Updated)
	require.Empty(t, report.Errors)

	// The manual run is journaled on the ledger as a system event.
	block, err := f.ledger.LatestBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, "system_event", string(block.TransactionType))
	require.Equal(t, "priority_recompute", block.Data["event"])
}

func TestRecomputeOneEndpoint(t *testing.T) {
	f := newFixture(t)
	b := f.seed(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/priority/beneficiaries/"+b.ID.String()+"/recompute", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.UpdateResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Equal(t, 55.0, result.State.Score)
	require.Equal(t, models.TierMedium, result.State.Tier)

	t.Run("bad id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/priority/beneficiaries/not-a-uuid/recompute", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/priority/beneficiaries/"+domain.NewBeneficiaryID().String()+"/recompute", nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUrgentCasesEndpoint(t *testing.T) {
	f := newFixture(t)
	critical := f.seed(t, 3)
	f.seed(t, 0)

	// Score everyone so derived state exists, then serve the feed.
	req := httptest.NewRequest(http.MethodPost, "/priority/recompute", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/priority/urgent", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var cases []models.UrgentCase
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cases))
	require.Len(t, cases, 1)
	require.Equal(t, critical.ID, cases[0].BeneficiaryID)
	require.Equal(t, models.TierCritical, cases[0].Tier)
	require.False(t, cases[0].EstimatedDelivery.IsZero())
	require.WithinDuration(t, time.Now().Add(6*time.Hour), cases[0].EstimatedDelivery, time.Minute)
}

func TestUrgentCasesEmptyFeed(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/priority/urgent", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}
