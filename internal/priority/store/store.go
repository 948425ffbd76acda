// Package store persists beneficiary snapshots and their derived
// vulnerability state.
package store

import (
	"context"

	"aidchain/internal/priority/models"
	"aidchain/pkg/domain"
)

// BeneficiaryStore is the persistence boundary of the priority module.
//
// UpdateVulnerability replaces the whole derived field set in one atomic
// write: score, tier, color, ETA, breakdown, and timestamp move together or
// not at all. Implementations return sentinel.ErrNotFound for unknown ids.
type BeneficiaryStore interface {
	Get(ctx context.Context, id domain.BeneficiaryID) (models.Beneficiary, error)
	ListActive(ctx context.Context) ([]models.Beneficiary, error)
	UpdateVulnerability(ctx context.Context, id domain.BeneficiaryID, state models.VulnerabilityState) error
}
