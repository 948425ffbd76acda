package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"aidchain/internal/ledger/models"
	"aidchain/pkg/domain"
	"aidchain/pkg/platform/sentinel"
)

// Schema creates the ledger_blocks table. The PRIMARY KEY on block_number is
// load-bearing: it is the uniqueness constraint the optimistic append path
// relies on to serialize concurrent writers.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_blocks (
	block_number     BIGINT PRIMARY KEY,
	hash             TEXT NOT NULL,
	previous_hash    TEXT NOT NULL,
	nonce            BIGINT NOT NULL,
	transaction_type TEXT NOT NULL,
	data             JSONB NOT NULL,
	data_hash        TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	created_by       TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	verified         BOOLEAN NOT NULL DEFAULT FALSE,
	verified_at      TIMESTAMPTZ,
	verified_by      TEXT
);
CREATE INDEX IF NOT EXISTS idx_ledger_blocks_type ON ledger_blocks (transaction_type, block_number DESC);
`

const blockColumns = `block_number, hash, previous_hash, nonce, transaction_type, data, data_hash, created_at, created_by, description, verified, verified_at, verified_by`

const uniqueViolation = "23505"

// PostgresStore persists blocks in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed block store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, block models.Block) error {
	dataBytes, err := json.Marshal(block.Data)
	if err != nil {
		return fmt.Errorf("marshal block data: %w", err)
	}
	query := `
		INSERT INTO ledger_blocks (` + blockColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		int64(block.BlockNumber),
		block.Hash,
		block.PreviousHash,
		block.Nonce,
		string(block.TransactionType),
		dataBytes,
		block.DataHash,
		block.Timestamp,
		string(block.CreatedBy),
		block.Description,
		block.Verified,
		block.VerifiedAt,
		nullActor(block.VerifiedBy),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("append block %d: %w", block.BlockNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("append block %d: %w", block.BlockNumber, err)
	}
	return nil
}

func (s *PostgresStore) GetByNumber(ctx context.Context, number uint64) (models.Block, error) {
	query := `SELECT ` + blockColumns + ` FROM ledger_blocks WHERE block_number = $1`
	block, err := scanBlock(s.db.QueryRowContext(ctx, query, int64(number)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Block{}, fmt.Errorf("block %d: %w", number, sentinel.ErrNotFound)
		}
		return models.Block{}, fmt.Errorf("get block %d: %w", number, err)
	}
	return block, nil
}

func (s *PostgresStore) GetLatest(ctx context.Context) (models.Block, error) {
	query := `SELECT ` + blockColumns + ` FROM ledger_blocks ORDER BY block_number DESC LIMIT 1`
	block, err := scanBlock(s.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Block{}, fmt.Errorf("latest block: %w", sentinel.ErrNotFound)
		}
		return models.Block{}, fmt.Errorf("get latest block: %w", err)
	}
	return block, nil
}

func (s *PostgresStore) ListAscending(ctx context.Context, from uint64, limit int) ([]models.Block, error) {
	if from < 1 {
		from = 1
	}
	query := `SELECT ` + blockColumns + ` FROM ledger_blocks WHERE block_number >= $1 ORDER BY block_number ASC`
	args := []any{int64(from)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryBlocks(ctx, "list blocks", query, args...)
}

func (s *PostgresStore) ListByType(ctx context.Context, txType models.TransactionType, limit int) ([]models.Block, error) {
	query := `SELECT ` + blockColumns + ` FROM ledger_blocks WHERE transaction_type = $1 ORDER BY block_number DESC`
	args := []any{string(txType)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryBlocks(ctx, "list blocks by type", query, args...)
}

func (s *PostgresStore) Search(ctx context.Context, query string, limit int) ([]models.Block, error) {
	sqlQuery := `SELECT ` + blockColumns + ` FROM ledger_blocks WHERE description ILIKE '%' || $1 || '%' ORDER BY block_number DESC`
	args := []any{query}
	if limit > 0 {
		sqlQuery += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryBlocks(ctx, "search blocks", sqlQuery, args...)
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_blocks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count blocks: %w", err)
	}
	return uint64(count), nil
}

func (s *PostgresStore) CountByType(ctx context.Context) (map[models.TransactionType]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT transaction_type, COUNT(*) FROM ledger_blocks GROUP BY transaction_type`)
	if err != nil {
		return nil, fmt.Errorf("count blocks by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TransactionType]uint64)
	for rows.Next() {
		var txType string
		var count int64
		if err := rows.Scan(&txType, &count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		counts[models.TransactionType(txType)] = uint64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count blocks by type: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) MarkVerified(ctx context.Context, number uint64, verifiedBy domain.ActorID, verifiedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE ledger_blocks
		SET verified = TRUE, verified_at = $2, verified_by = $3
		WHERE block_number = $1
	`, int64(number), verifiedAt, string(verifiedBy))
	if err != nil {
		return fmt.Errorf("mark verified %d: %w", number, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark verified %d rows affected: %w", number, err)
	}
	if affected == 0 {
		return fmt.Errorf("mark verified %d: %w", number, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) queryBlocks(ctx context.Context, op, query string, args ...any) ([]models.Block, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var blocks []models.Block
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return blocks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (models.Block, error) {
	var (
		block      models.Block
		number     int64
		txType     string
		dataBytes  []byte
		createdBy  string
		verifiedAt sql.NullTime
		verifiedBy sql.NullString
	)
	err := row.Scan(
		&number,
		&block.Hash,
		&block.PreviousHash,
		&block.Nonce,
		&txType,
		&dataBytes,
		&block.DataHash,
		&block.Timestamp,
		&createdBy,
		&block.Description,
		&block.Verified,
		&verifiedAt,
		&verifiedBy,
	)
	if err != nil {
		return models.Block{}, err
	}
	block.BlockNumber = uint64(number)
	block.TransactionType = models.TransactionType(txType)
	block.CreatedBy = domain.ActorID(createdBy)
	if len(dataBytes) > 0 {
		if err := json.Unmarshal(dataBytes, &block.Data); err != nil {
			return models.Block{}, fmt.Errorf("unmarshal block data: %w", err)
		}
	}
	if verifiedAt.Valid {
		at := verifiedAt.Time
		block.VerifiedAt = &at
	}
	if verifiedBy.Valid {
		block.VerifiedBy = domain.ActorID(verifiedBy.String)
	}
	return block, nil
}

func nullActor(actor domain.ActorID) sql.NullString {
	if actor.IsNil() {
		return sql.NullString{}
	}
	return sql.NullString{String: string(actor), Valid: true}
}
