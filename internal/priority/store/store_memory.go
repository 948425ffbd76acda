package store

import (
	"context"
	"slices"
	"sync"

	"aidchain/internal/priority/models"
	"aidchain/pkg/domain"
	"aidchain/pkg/platform/sentinel"
)

// MemoryStore is the in-memory BeneficiaryStore used in dev mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[domain.BeneficiaryID]models.Beneficiary
}

var _ BeneficiaryStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.BeneficiaryID]models.Beneficiary)}
}

// Put inserts or replaces a beneficiary snapshot. Not part of the
// BeneficiaryStore interface: registration belongs to the beneficiary
// service, this exists for seeding.
func (s *MemoryStore) Put(_ context.Context, b models.Beneficiary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[b.ID] = copyBeneficiary(b)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.BeneficiaryID) (models.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.records[id]
	if !ok {
		return models.Beneficiary{}, sentinel.ErrNotFound
	}
	return copyBeneficiary(b), nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]models.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Beneficiary, 0, len(s.records))
	for _, b := range s.records {
		if b.Active {
			out = append(out, copyBeneficiary(b))
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateVulnerability(_ context.Context, id domain.BeneficiaryID, state models.VulnerabilityState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Single struct swap under the lock keeps the derived fields atomic.
	b.Vulnerability = state
	s.records[id] = b
	return nil
}

func copyBeneficiary(b models.Beneficiary) models.Beneficiary {
	out := b
	out.MedicalConditions = slices.Clone(b.MedicalConditions)
	out.Losses = slices.Clone(b.Losses)
	out.Needs = slices.Clone(b.Needs)
	if b.LastAidDate != nil {
		t := *b.LastAidDate
		out.LastAidDate = &t
	}
	return out
}
