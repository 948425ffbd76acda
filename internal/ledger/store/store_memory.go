package store

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"aidchain/internal/ledger/models"
	"aidchain/pkg/domain"
	"aidchain/pkg/platform/sentinel"
)

// MemoryStore is the in-process BlockStore used in development and tests.
// It enforces the same contiguity constraint the PostgreSQL schema does so
// the service's optimistic-retry path behaves identically against both.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks []models.Block // ascending by block number, blocks[i].BlockNumber == i+1
}

// NewMemoryStore constructs an empty in-memory block store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, block models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := uint64(len(s.blocks)) + 1
	if block.BlockNumber != next {
		return fmt.Errorf("append block %d (next is %d): %w", block.BlockNumber, next, sentinel.ErrConflict)
	}
	block.Data = maps.Clone(block.Data)
	s.blocks = append(s.blocks, block)
	return nil
}

func (s *MemoryStore) GetByNumber(_ context.Context, number uint64) (models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if number == 0 || number > uint64(len(s.blocks)) {
		return models.Block{}, fmt.Errorf("block %d: %w", number, sentinel.ErrNotFound)
	}
	return copyBlock(s.blocks[number-1]), nil
}

func (s *MemoryStore) GetLatest(_ context.Context) (models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.blocks) == 0 {
		return models.Block{}, fmt.Errorf("latest block: %w", sentinel.ErrNotFound)
	}
	return copyBlock(s.blocks[len(s.blocks)-1]), nil
}

func (s *MemoryStore) ListAscending(_ context.Context, from uint64, limit int) ([]models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if from < 1 {
		from = 1
	}
	var out []models.Block
	for i := int(from) - 1; i < len(s.blocks); i++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, copyBlock(s.blocks[i]))
	}
	return out, nil
}

func (s *MemoryStore) ListByType(_ context.Context, txType models.TransactionType, limit int) ([]models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterNewestFirst(limit, func(b models.Block) bool {
		return b.TransactionType == txType
	}), nil
}

func (s *MemoryStore) Search(_ context.Context, query string, limit int) ([]models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	return s.filterNewestFirst(limit, func(b models.Block) bool {
		return strings.Contains(strings.ToLower(b.Description), needle)
	}), nil
}

func (s *MemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.blocks)), nil
}

func (s *MemoryStore) CountByType(_ context.Context) (map[models.TransactionType]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.TransactionType]uint64)
	for _, b := range s.blocks {
		counts[b.TransactionType]++
	}
	return counts, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, number uint64, verifiedBy domain.ActorID, verifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if number == 0 || number > uint64(len(s.blocks)) {
		return fmt.Errorf("mark verified %d: %w", number, sentinel.ErrNotFound)
	}
	b := &s.blocks[number-1]
	b.Verified = true
	b.VerifiedBy = verifiedBy
	at := verifiedAt
	b.VerifiedAt = &at
	return nil
}

// Tamper mutates a stored block in place, bypassing the append-only
// contract. Test hook for exercising integrity detection; production code
// has no path to it because BlockStore does not expose it.
func (s *MemoryStore) Tamper(number uint64, mutate func(*models.Block)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if number == 0 || number > uint64(len(s.blocks)) {
		return fmt.Errorf("tamper %d: %w", number, sentinel.ErrNotFound)
	}
	mutate(&s.blocks[number-1])
	return nil
}

// filterNewestFirst collects matching blocks in descending number order.
// Callers hold at least the read lock.
func (s *MemoryStore) filterNewestFirst(limit int, match func(models.Block) bool) []models.Block {
	var out []models.Block
	for i := len(s.blocks) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if match(s.blocks[i]) {
			out = append(out, copyBlock(s.blocks[i]))
		}
	}
	return out
}

func copyBlock(b models.Block) models.Block {
	b.Data = maps.Clone(b.Data)
	if b.VerifiedAt != nil {
		at := *b.VerifiedAt
		b.VerifiedAt = &at
	}
	return b
}
