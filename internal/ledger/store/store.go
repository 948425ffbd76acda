// Package store persists ledger blocks. Stores are pure I/O; chain rules
// (hashing, numbering, retries) live in the ledger service.
package store

import (
	"context"
	"time"

	"aidchain/internal/ledger/models"
	"aidchain/pkg/domain"
)

// BlockStore is the persistence port for the append-only block sequence.
// Implementations must enforce uniqueness of block_number so that two
// concurrent appends racing for the same tail cannot both commit; the loser
// receives sentinel.ErrConflict and the service retries the whole
// read-compute-write sequence.
type BlockStore interface {
	// Append persists a new block. Returns sentinel.ErrConflict when the
	// block number is already taken.
	Append(ctx context.Context, block models.Block) error

	// GetByNumber returns the block with the given number or
	// sentinel.ErrNotFound.
	GetByNumber(ctx context.Context, number uint64) (models.Block, error)

	// GetLatest returns the block with the highest number or
	// sentinel.ErrNotFound on an empty chain.
	GetLatest(ctx context.Context) (models.Block, error)

	// ListAscending returns up to limit blocks with number >= from, in
	// ascending order. limit <= 0 means no limit.
	ListAscending(ctx context.Context, from uint64, limit int) ([]models.Block, error)

	// ListByType returns the most recent blocks of one transaction type,
	// newest first.
	ListByType(ctx context.Context, txType models.TransactionType, limit int) ([]models.Block, error)

	// Search returns the most recent blocks whose description matches the
	// free-text query, newest first.
	Search(ctx context.Context, query string, limit int) ([]models.Block, error)

	// Count returns the total number of persisted blocks.
	Count(ctx context.Context) (uint64, error)

	// CountByType returns per-transaction-type block counts.
	CountByType(ctx context.Context) (map[models.TransactionType]uint64, error)

	// MarkVerified records the verification audit pass on a block. Chain
	// content fields are never touched.
	MarkVerified(ctx context.Context, number uint64, verifiedBy domain.ActorID, verifiedAt time.Time) error
}
