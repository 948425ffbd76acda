// Package service implements the ledger: an append-only, hash-chained
// sequence of blocks recording every critical transaction in the relief
// platform. The ledger is an audit trail, not the system of record —
// callers treat append failures as loggable, never as a reason to roll
// back the business transaction that triggered the write.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"aidchain/internal/ledger/hashchain"
	"aidchain/internal/ledger/metrics"
	"aidchain/internal/ledger/models"
	"aidchain/internal/ledger/store"
	"aidchain/pkg/domain"
	dErrors "aidchain/pkg/domain-errors"
	"aidchain/pkg/platform/sentinel"
)

// ledgerVersion tags the genesis payload. Bump only together with a
// hashchain contract revision.
const ledgerVersion = "1"

// maxAppendRetries bounds the optimistic-retry loop before a conflict is
// surfaced as a persistence failure.
const maxAppendRetries = 5

// verifyBatchSize pages the full-chain scan so verification never loads the
// whole chain into memory at once.
const verifyBatchSize = 500

var (
	// ErrAlreadyInitialized is returned when genesis creation is attempted
	// on a chain that already has a genesis block.
	ErrAlreadyInitialized = errors.New("ledger already initialized")

	// ErrPreviousBlockMissing is returned when verifying a non-genesis
	// block whose predecessor cannot be located.
	ErrPreviousBlockMissing = errors.New("previous block missing")
)

// Service owns the chain-level invariants over a BlockStore.
type Service struct {
	store   store.BlockStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	nonce   func() int64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches the ledger metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the ledger service.
func New(blockStore store.BlockStore, opts ...Option) (*Service, error) {
	if blockStore == nil {
		return nil, fmt.Errorf("block store is required")
	}
	svc := &Service{
		store: blockStore,
		now:   time.Now,
		// The nonce is a uniqueness salt in the hash input, not a
		// proof-of-work puzzle; a fast PRNG is sufficient.
		nonce: rand.Int64,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// GenesisBlock returns the block with number 1, or sentinel.ErrNotFound if
// the ledger is uninitialized.
func (s *Service) GenesisBlock(ctx context.Context) (models.Block, error) {
	return s.store.GetByNumber(ctx, 1)
}

// LatestBlock returns the current chain tail, or sentinel.ErrNotFound on an
// empty chain.
func (s *Service) LatestBlock(ctx context.Context) (models.Block, error) {
	return s.store.GetLatest(ctx)
}

// CreateGenesis creates block 1 with the fixed system payload. It fails
// with ErrAlreadyInitialized if a genesis block already exists — including
// when a concurrent caller wins the race for block 1.
func (s *Service) CreateGenesis(ctx context.Context) (models.Block, error) {
	if _, err := s.store.GetByNumber(ctx, 1); err == nil {
		return models.Block{}, ErrAlreadyInitialized
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Block{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read genesis block")
	}

	genesis, err := s.buildGenesis()
	if err != nil {
		return models.Block{}, err
	}
	if err := s.store.Append(ctx, genesis); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Block{}, ErrAlreadyInitialized
		}
		return models.Block{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist genesis block")
	}

	s.logger.InfoContext(ctx, "genesis block created", "hash", genesis.Hash)
	s.metrics.IncBlocksAppended(string(genesis.TransactionType))
	return genesis, nil
}

// AddBlock appends a new block recording one business event. The
// read-tail / compute / write sequence is logically atomic: the store's
// uniqueness constraint on block_number rejects the loser of any race, and
// the whole sequence is retried from a fresh tail read, a bounded number of
// times. An empty ledger gets its genesis block implicitly, exactly once.
func (s *Service) AddBlock(ctx context.Context, txType models.TransactionType, data map[string]any, createdBy domain.ActorID, description string) (models.Block, error) {
	if !txType.IsValid() {
		return models.Block{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown transaction type %q", txType))
	}
	if createdBy.IsNil() {
		return models.Block{}, dErrors.New(dErrors.CodeInvalidInput, "created_by is required")
	}
	if data == nil {
		data = map[string]any{}
	}

	dataHash, err := hashchain.Hash(data)
	if err != nil {
		return models.Block{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "transaction payload is not serializable")
	}

	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		tail, err := s.store.GetLatest(ctx)
		if errors.Is(err, sentinel.ErrNotFound) {
			genesis, genErr := s.buildGenesis()
			if genErr != nil {
				return models.Block{}, genErr
			}
			if appendErr := s.store.Append(ctx, genesis); appendErr != nil {
				if errors.Is(appendErr, sentinel.ErrConflict) {
					// A concurrent writer created genesis first; re-read the tail.
					s.metrics.IncAppendConflict()
					continue
				}
				s.metrics.IncAppendFailure()
				return models.Block{}, dErrors.Wrap(appendErr, dErrors.CodeUnavailable, "failed to persist genesis block")
			}
			s.metrics.IncBlocksAppended(string(genesis.TransactionType))
			tail = genesis
		} else if err != nil {
			return models.Block{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read chain tail")
		}

		block := s.buildBlock(tail, txType, data, dataHash, createdBy, description)
		if err := s.store.Append(ctx, block); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				s.metrics.IncAppendConflict()
				continue
			}
			s.metrics.IncAppendFailure()
			return models.Block{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to persist block")
		}

		s.logger.InfoContext(ctx, "block appended",
			"block_number", block.BlockNumber,
			"transaction_type", block.TransactionType,
			"created_by", block.CreatedBy,
		)
		s.metrics.IncBlocksAppended(string(block.TransactionType))
		return block, nil
	}

	s.metrics.IncAppendFailure()
	return models.Block{}, dErrors.Wrap(sentinel.ErrConflict, dErrors.CodeUnavailable,
		fmt.Sprintf("append contention persisted across %d attempts", maxAppendRetries))
}

// VerifyBlock checks a single block: payload digest, block hash, and (for
// non-genesis blocks) the link to its predecessor. A missing predecessor is
// reported as ErrPreviousBlockMissing.
func (s *Service) VerifyBlock(ctx context.Context, number uint64) (models.BlockVerification, error) {
	block, err := s.store.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.BlockVerification{}, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("block %d not found", number))
		}
		return models.BlockVerification{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read block")
	}

	result := s.checkBlock(block)
	if !result.Valid || block.IsGenesis() {
		return result, nil
	}

	previous, err := s.store.GetByNumber(ctx, number-1)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.BlockVerification{}, fmt.Errorf("block %d: %w", number, ErrPreviousBlockMissing)
		}
		return models.BlockVerification{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read previous block")
	}
	if ok, reason := hashchain.VerifyLink(block, previous); !ok {
		return models.BlockVerification{
			Valid:       false,
			BlockNumber: number,
			Reason:      reason,
			Detail:      fmt.Sprintf("block %d does not chain onto block %d", number, previous.BlockNumber),
		}, nil
	}
	return result, nil
}

// VerifyChain scans all blocks in ascending order and reports the first
// defect with its block number and failure category. The scan is paged and
// read-only; it may run concurrently with appends and is correct for the
// committed prefix it observes.
func (s *Service) VerifyChain(ctx context.Context) (models.ChainVerification, error) {
	start := s.now()

	var (
		previous models.Block
		total    uint64
		from     uint64 = 1
	)
	for {
		batch, err := s.store.ListAscending(ctx, from, verifyBatchSize)
		if err != nil {
			s.metrics.ObserveChainVerification("error", s.now().Sub(start))
			return models.ChainVerification{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read chain")
		}
		for _, block := range batch {
			if total == 0 {
				if !block.IsGenesis() || block.PreviousHash != models.GenesisPreviousHash {
					return s.chainDefect(start, block.BlockNumber, models.ReasonPreviousHashMismatch,
						"chain does not begin with a well-formed genesis block"), nil
				}
			} else {
				if block.BlockNumber != previous.BlockNumber+1 {
					return s.chainDefect(start, block.BlockNumber, models.ReasonSequenceGap,
						fmt.Sprintf("expected block %d, found %d", previous.BlockNumber+1, block.BlockNumber)), nil
				}
				if ok, reason := hashchain.VerifyLink(block, previous); !ok {
					return s.chainDefect(start, block.BlockNumber, reason,
						fmt.Sprintf("block %d does not chain onto block %d", block.BlockNumber, previous.BlockNumber)), nil
				}
			}
			if check := s.checkBlock(block); !check.Valid {
				return s.chainDefect(start, block.BlockNumber, check.Reason, check.Detail), nil
			}
			previous = block
			total++
		}
		if len(batch) < verifyBatchSize {
			break
		}
		from = previous.BlockNumber + 1
	}

	s.metrics.ObserveChainVerification("valid", s.now().Sub(start))
	return models.ChainVerification{Valid: true, TotalBlocks: total}, nil
}

// Search returns blocks whose description matches the free-text query.
// Not part of the integrity contract.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.Block, error) {
	if query == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "search query is required")
	}
	blocks, err := s.store.Search(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to search blocks")
	}
	return blocks, nil
}

// BlocksByType returns the most recent blocks of one transaction type.
func (s *Service) BlocksByType(ctx context.Context, txType models.TransactionType, limit int) ([]models.Block, error) {
	if !txType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown transaction type %q", txType))
	}
	blocks, err := s.store.ListByType(ctx, txType, normalizeLimit(limit))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list blocks")
	}
	return blocks, nil
}

// Block returns one block by number.
func (s *Service) Block(ctx context.Context, number uint64) (models.Block, error) {
	block, err := s.store.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Block{}, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("block %d not found", number))
		}
		return models.Block{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read block")
	}
	return block, nil
}

// Statistics aggregates read-side chain counters.
func (s *Service) Statistics(ctx context.Context) (models.Statistics, error) {
	stats := models.Statistics{}

	total, err := s.store.Count(ctx)
	if err != nil {
		return stats, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count blocks")
	}
	stats.TotalBlocks = total
	if total == 0 {
		stats.CountsByType = map[models.TransactionType]uint64{}
		return stats, nil
	}

	counts, err := s.store.CountByType(ctx)
	if err != nil {
		return stats, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count blocks by type")
	}
	stats.CountsByType = counts

	genesis, err := s.store.GetByNumber(ctx, 1)
	if err == nil {
		first := genesis.Timestamp
		stats.FirstTimestamp = &first
	}
	latest, err := s.store.GetLatest(ctx)
	if err == nil {
		last := latest.Timestamp
		stats.LastTimestamp = &last
		stats.LatestNumber = latest.BlockNumber
	}
	return stats, nil
}

// MarkBlockVerified records a manual verification pass over a block. The
// audit metadata never participates in the chain hashes.
func (s *Service) MarkBlockVerified(ctx context.Context, number uint64, verifiedBy domain.ActorID) (models.Block, error) {
	if verifiedBy.IsNil() {
		return models.Block{}, dErrors.New(dErrors.CodeInvalidInput, "verified_by is required")
	}
	if err := s.store.MarkVerified(ctx, number, verifiedBy, s.now().UTC()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Block{}, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("block %d not found", number))
		}
		return models.Block{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to mark block verified")
	}
	return s.Block(ctx, number)
}

// checkBlock runs the two hash checks that need no predecessor context.
func (s *Service) checkBlock(block models.Block) models.BlockVerification {
	ok, err := hashchain.VerifyDataHash(block.Data, block.DataHash)
	if err != nil || !ok {
		return models.BlockVerification{
			Valid:       false,
			BlockNumber: block.BlockNumber,
			Reason:      models.ReasonDataHashInvalid,
			Detail:      "stored data hash does not match the payload",
		}
	}
	if !hashchain.VerifyBlockHash(block) {
		return models.BlockVerification{
			Valid:       false,
			BlockNumber: block.BlockNumber,
			Reason:      models.ReasonBlockHashInvalid,
			Detail:      "stored block hash does not match the block fields",
		}
	}
	return models.BlockVerification{Valid: true, BlockNumber: block.BlockNumber}
}

func (s *Service) chainDefect(start time.Time, number uint64, reason models.FailureReason, detail string) models.ChainVerification {
	s.metrics.ObserveChainVerification("invalid", s.now().Sub(start))
	s.logger.Warn("chain integrity defect detected",
		"block_number", number,
		"reason", reason,
	)
	return models.ChainVerification{
		Valid:       false,
		BlockNumber: number,
		Reason:      reason,
		Detail:      detail,
	}
}

func (s *Service) buildGenesis() (models.Block, error) {
	ts := s.now().UTC().Truncate(time.Millisecond)
	data := map[string]any{
		"ledger_version": ledgerVersion,
		"created_at":     ts.Format(time.RFC3339Nano),
	}
	dataHash, err := hashchain.Hash(data)
	if err != nil {
		return models.Block{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash genesis payload")
	}
	block := models.Block{
		BlockNumber:     1,
		PreviousHash:    models.GenesisPreviousHash,
		Nonce:           s.nonce(),
		TransactionType: models.TypeSystemEvent,
		Data:            data,
		DataHash:        dataHash,
		Timestamp:       ts,
		CreatedBy:       "system",
		Description:     "genesis block",
	}
	block.Hash = hashchain.BlockHash(block.BlockNumber, ts.UnixMilli(), block.DataHash, block.PreviousHash, block.Nonce)
	return block, nil
}

func (s *Service) buildBlock(tail models.Block, txType models.TransactionType, data map[string]any, dataHash string, createdBy domain.ActorID, description string) models.Block {
	ts := s.now().UTC().Truncate(time.Millisecond)
	block := models.Block{
		BlockNumber:     tail.BlockNumber + 1,
		PreviousHash:    tail.Hash,
		Nonce:           s.nonce(),
		TransactionType: txType,
		Data:            data,
		DataHash:        dataHash,
		Timestamp:       ts,
		CreatedBy:       createdBy,
		Description:     description,
	}
	block.Hash = hashchain.BlockHash(block.BlockNumber, ts.UnixMilli(), block.DataHash, block.PreviousHash, block.Nonce)
	return block
}

func normalizeLimit(limit int) int {
	const (
		defaultLimit = 50
		maxLimit     = 500
	)
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
