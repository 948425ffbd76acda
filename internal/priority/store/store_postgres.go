package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aidchain/internal/priority/models"
	"aidchain/pkg/domain"
	"aidchain/pkg/platform/sentinel"
)

// Schema creates the beneficiaries table. The derived vulnerability fields
// live as first-class columns so the urgent-case query can filter on tier
// and ETA without unpacking JSON.
const Schema = `
CREATE TABLE IF NOT EXISTS beneficiaries (
	id                 UUID PRIMARY KEY,
	family_size        INT NOT NULL DEFAULT 0,
	age                INT NOT NULL DEFAULT 0,
	dependents         INT NOT NULL DEFAULT 0,
	medical_conditions JSONB NOT NULL DEFAULT '[]',
	losses             JSONB NOT NULL DEFAULT '[]',
	geographic         JSONB NOT NULL DEFAULT '{}',
	last_aid_date      TIMESTAMPTZ,
	needs              JSONB NOT NULL DEFAULT '[]',
	aid_delivered      BOOLEAN NOT NULL DEFAULT FALSE,
	active             BOOLEAN NOT NULL DEFAULT TRUE,
	vulnerability_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	priority_tier      TEXT NOT NULL DEFAULT '',
	priority_color     TEXT NOT NULL DEFAULT '',
	estimated_delivery TIMESTAMPTZ,
	score_breakdown    JSONB NOT NULL DEFAULT '{}',
	last_score_update  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_beneficiaries_active_tier ON beneficiaries (active, priority_tier);
`

const beneficiaryColumns = `id, family_size, age, dependents, medical_conditions, losses, geographic, last_aid_date, needs, aid_delivered, active, vulnerability_score, priority_tier, priority_color, estimated_delivery, score_breakdown, last_score_update`

// PostgresStore persists beneficiaries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ BeneficiaryStore = (*PostgresStore)(nil)

// NewPostgres constructs a PostgreSQL-backed beneficiary store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert stores a full beneficiary snapshot. Like MemoryStore.Put this is a
// seeding helper outside the BeneficiaryStore interface.
func (s *PostgresStore) Insert(ctx context.Context, b models.Beneficiary) error {
	conditions, err := json.Marshal(b.MedicalConditions)
	if err != nil {
		return fmt.Errorf("marshal medical conditions: %w", err)
	}
	losses, err := json.Marshal(b.Losses)
	if err != nil {
		return fmt.Errorf("marshal losses: %w", err)
	}
	geographic, err := json.Marshal(b.Geographic)
	if err != nil {
		return fmt.Errorf("marshal geographic factors: %w", err)
	}
	needs, err := json.Marshal(b.Needs)
	if err != nil {
		return fmt.Errorf("marshal needs: %w", err)
	}
	breakdown, err := json.Marshal(b.Vulnerability.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal score breakdown: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO beneficiaries (`+beneficiaryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		b.ID.String(),
		b.FamilySize,
		b.Age,
		b.Dependents,
		conditions,
		losses,
		geographic,
		b.LastAidDate,
		needs,
		b.AidDelivered,
		b.Active,
		b.Vulnerability.Score,
		string(b.Vulnerability.Tier),
		b.Vulnerability.Color,
		nullTime(b.Vulnerability.EstimatedDelivery),
		breakdown,
		nullTime(b.Vulnerability.LastScoreUpdate),
	)
	if err != nil {
		return fmt.Errorf("insert beneficiary %s: %w", b.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.BeneficiaryID) (models.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE id = $1`
	b, err := scanBeneficiary(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Beneficiary{}, fmt.Errorf("beneficiary %s: %w", id, sentinel.ErrNotFound)
		}
		return models.Beneficiary{}, fmt.Errorf("get beneficiary %s: %w", id, err)
	}
	return b, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]models.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE active = TRUE ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active beneficiaries: %w", err)
	}
	defer rows.Close()

	var out []models.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("list active beneficiaries: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active beneficiaries: %w", err)
	}
	return out, nil
}

// UpdateVulnerability writes the whole derived field set in a single UPDATE,
// keeping score and tier atomic with respect to readers.
func (s *PostgresStore) UpdateVulnerability(ctx context.Context, id domain.BeneficiaryID, state models.VulnerabilityState) error {
	breakdown, err := json.Marshal(state.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal score breakdown: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE beneficiaries
		SET vulnerability_score = $2,
		    priority_tier = $3,
		    priority_color = $4,
		    estimated_delivery = $5,
		    score_breakdown = $6,
		    last_score_update = $7
		WHERE id = $1
	`,
		id.String(),
		state.Score,
		string(state.Tier),
		state.Color,
		state.EstimatedDelivery,
		breakdown,
		state.LastScoreUpdate,
	)
	if err != nil {
		return fmt.Errorf("update vulnerability %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update vulnerability %s rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update vulnerability %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func scanBeneficiary(row rowScanner) (models.Beneficiary, error) {
	var (
		b          models.Beneficiary
		id         string
		conditions []byte
		losses     []byte
		geographic []byte
		needs      []byte
		breakdown  []byte
		tier       string
		lastAid    sql.NullTime
		estimated  sql.NullTime
		lastUpdate sql.NullTime
	)
	err := row.Scan(
		&id,
		&b.FamilySize,
		&b.Age,
		&b.Dependents,
		&conditions,
		&losses,
		&geographic,
		&lastAid,
		&needs,
		&b.AidDelivered,
		&b.Active,
		&b.Vulnerability.Score,
		&tier,
		&b.Vulnerability.Color,
		&estimated,
		&breakdown,
		&lastUpdate,
	)
	if err != nil {
		return models.Beneficiary{}, err
	}

	parsed, err := domain.ParseBeneficiaryID(id)
	if err != nil {
		return models.Beneficiary{}, fmt.Errorf("parse beneficiary id: %w", err)
	}
	b.ID = parsed
	b.Vulnerability.Tier = models.Tier(tier)

	if err := json.Unmarshal(conditions, &b.MedicalConditions); err != nil {
		return models.Beneficiary{}, fmt.Errorf("unmarshal medical conditions: %w", err)
	}
	if err := json.Unmarshal(losses, &b.Losses); err != nil {
		return models.Beneficiary{}, fmt.Errorf("unmarshal losses: %w", err)
	}
	if err := json.Unmarshal(geographic, &b.Geographic); err != nil {
		return models.Beneficiary{}, fmt.Errorf("unmarshal geographic factors: %w", err)
	}
	if err := json.Unmarshal(needs, &b.Needs); err != nil {
		return models.Beneficiary{}, fmt.Errorf("unmarshal needs: %w", err)
	}
	if err := json.Unmarshal(breakdown, &b.Vulnerability.Breakdown); err != nil {
		return models.Beneficiary{}, fmt.Errorf("unmarshal score breakdown: %w", err)
	}

	if lastAid.Valid {
		t := lastAid.Time
		b.LastAidDate = &t
	}
	if estimated.Valid {
		b.Vulnerability.EstimatedDelivery = estimated.Time
	}
	if lastUpdate.Valid {
		b.Vulnerability.LastScoreUpdate = lastUpdate.Time
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
