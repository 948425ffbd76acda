// Package domain holds the typed identifiers shared across modules.
// Wrapping uuid.UUID in distinct named types lets the compiler catch
// cross-entity mixups at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "aidchain/pkg/domain-errors"
)

// BeneficiaryID identifies a registered beneficiary.
type BeneficiaryID uuid.UUID

// ActorID identifies the user or process that performed an action.
// It is a free-form string because ledger writers include system jobs
// and external collaborators that are not provisioned as users.
type ActorID string

// ParseBeneficiaryID validates and returns a BeneficiaryID.
// IDs must be valid, non-nil UUIDs.
func ParseBeneficiaryID(s string) (BeneficiaryID, error) {
	if s == "" {
		return BeneficiaryID{}, dErrors.New(dErrors.CodeInvalidInput, "beneficiary id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return BeneficiaryID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "beneficiary id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return BeneficiaryID{}, dErrors.New(dErrors.CodeInvalidInput, "beneficiary id must not be the nil UUID")
	}
	return BeneficiaryID(parsed), nil
}

// NewBeneficiaryID returns a fresh random BeneficiaryID.
func NewBeneficiaryID() BeneficiaryID {
	return BeneficiaryID(uuid.New())
}

func (id BeneficiaryID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero UUID.
func (id BeneficiaryID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText renders the canonical UUID string, so JSON carries
// "8f14e45f-..." rather than a byte array.
func (id BeneficiaryID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the canonical UUID string.
func (id *BeneficiaryID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = BeneficiaryID(parsed)
	return nil
}

func (a ActorID) String() string {
	return string(a)
}

// IsNil reports whether the actor is unset.
func (a ActorID) IsNil() bool {
	return a == ""
}
