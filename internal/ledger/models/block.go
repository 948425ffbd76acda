// Package models defines the ledger's block record and verification results.
package models

import (
	"time"

	"aidchain/pkg/domain"
)

// GenesisPreviousHash is the reserved previous-hash sentinel for block 1.
// It is part of the published verification contract and must never change.
const GenesisPreviousHash = "0"

// TransactionType is the closed set of event categories recorded on chain.
type TransactionType string

const (
	TypeAidDistribution         TransactionType = "aid_distribution"
	TypeResourceReceived        TransactionType = "resource_received"
	TypeBeneficiaryRegistration TransactionType = "beneficiary_registration"
	TypeResourceTransfer        TransactionType = "resource_transfer"
	TypeDonationReceived        TransactionType = "donation_received"
	TypeVerification            TransactionType = "verification"
	TypeSystemEvent             TransactionType = "system_event"
)

var transactionTypes = map[TransactionType]struct{}{
	TypeAidDistribution:         {},
	TypeResourceReceived:        {},
	TypeBeneficiaryRegistration: {},
	TypeResourceTransfer:        {},
	TypeDonationReceived:        {},
	TypeVerification:            {},
	TypeSystemEvent:             {},
}

// IsValid reports whether t belongs to the closed transaction type set.
func (t TransactionType) IsValid() bool {
	_, ok := transactionTypes[t]
	return ok
}

// Block is one immutable, sequentially-numbered ledger entry. Once appended,
// everything except the verification audit fields is frozen; corrections are
// recorded as new transactions referencing the old one, never as edits.
type Block struct {
	BlockNumber     uint64          `json:"block_number"`
	Hash            string          `json:"hash"`
	PreviousHash    string          `json:"previous_hash"`
	Nonce           int64           `json:"nonce"`
	TransactionType TransactionType `json:"transaction_type"`

	// Data is the opaque event payload. The ledger never inspects it beyond
	// computing DataHash; collaborators own its structure.
	Data     map[string]any `json:"data"`
	DataHash string         `json:"data_hash"`

	Timestamp   time.Time      `json:"timestamp"`
	CreatedBy   domain.ActorID `json:"created_by"`
	Description string         `json:"description"`

	// Audit metadata set by a separate verification pass. Does not affect
	// chain validity.
	Verified   bool           `json:"verified"`
	VerifiedAt *time.Time     `json:"verified_at,omitempty"`
	VerifiedBy domain.ActorID `json:"verified_by,omitempty"`
}

// IsGenesis reports whether b is the chain's first block.
func (b Block) IsGenesis() bool {
	return b.BlockNumber == 1
}

// FailureReason categorizes a chain integrity defect.
type FailureReason string

const (
	ReasonPreviousHashMismatch FailureReason = "PREVIOUS_HASH_MISMATCH"
	ReasonBlockHashInvalid     FailureReason = "BLOCK_HASH_INVALID"
	ReasonDataHashInvalid      FailureReason = "DATA_HASH_INVALID"
	ReasonSequenceGap          FailureReason = "SEQUENCE_GAP"
)

// BlockVerification is the structured result of a single-block check.
type BlockVerification struct {
	Valid       bool          `json:"valid"`
	BlockNumber uint64        `json:"block_number"`
	Reason      FailureReason `json:"reason,omitempty"`
	Detail      string        `json:"detail,omitempty"`
}

// ChainVerification is the structured result of a full-chain scan. On
// failure it pinpoints the first offending block so an auditor can locate
// the exact corrupted entry.
type ChainVerification struct {
	Valid       bool          `json:"valid"`
	TotalBlocks uint64        `json:"total_blocks"`
	BlockNumber uint64        `json:"block_number,omitempty"`
	Reason      FailureReason `json:"reason,omitempty"`
	Detail      string        `json:"detail,omitempty"`
}

// Statistics aggregates read-side chain counters for the transparency UI.
type Statistics struct {
	TotalBlocks    uint64                     `json:"total_blocks"`
	LatestNumber   uint64                     `json:"latest_number"`
	CountsByType   map[TransactionType]uint64 `json:"counts_by_type"`
	FirstTimestamp *time.Time                 `json:"first_timestamp,omitempty"`
	LastTimestamp  *time.Time                 `json:"last_timestamp,omitempty"`
}
