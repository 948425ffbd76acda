// Package models defines the beneficiary snapshot the scorer reads and the
// derived vulnerability state it writes back.
package models

import (
	"time"

	"aidchain/pkg/domain"
)

// Severity grades a medical condition or a declared need.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// MedicalCondition is one declared condition with its triage severity.
type MedicalCondition struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
}

// LossType categorizes damage suffered in the disaster. Values outside the
// known set score as "other".
type LossType string

const (
	LossDeath          LossType = "death"
	LossHomeDestroyed  LossType = "home_destroyed"
	LossMissingPerson  LossType = "missing_person"
	LossHomeDamaged    LossType = "home_damaged"
	LossLivelihoodLost LossType = "livelihood_lost"
)

// GeographicFactors describe how hard the beneficiary is to reach.
// AccessibilityScore runs 0 (unreachable) to 10 (easily reached).
type GeographicFactors struct {
	IsRemote           bool    `json:"is_remote"`
	AccessibilityScore float64 `json:"accessibility_score"`
}

// Need is one declared need with a priority tag.
type Need struct {
	Description string   `json:"description"`
	Priority    Severity `json:"priority"`
}

// Tier is the priority band derived from the vulnerability score.
type Tier string

const (
	TierCritical Tier = "CRITICAL"
	TierHigh     Tier = "HIGH"
	TierMedium   Tier = "MEDIUM"
	TierLow      Tier = "LOW"
)

// ScoreBreakdown retains the per-factor subscores for transparency and
// debugging. Values are pre-clamp; their sum may exceed the final score.
type ScoreBreakdown struct {
	Medical       float64 `json:"medical"`
	Family        float64 `json:"family"`
	Damage        float64 `json:"damage"`
	Geographic    float64 `json:"geographic"`
	TimeSinceAid  float64 `json:"time_since_aid"`
	CriticalNeeds float64 `json:"critical_needs"`
}

// VulnerabilityState is the full derived field set. It is always written as
// one unit so score and tier can never drift apart.
type VulnerabilityState struct {
	Score             float64        `json:"score"`
	Tier              Tier           `json:"tier"`
	Color             string         `json:"color"`
	EstimatedDelivery time.Time      `json:"estimated_delivery"`
	Breakdown         ScoreBreakdown `json:"breakdown"`
	LastScoreUpdate   time.Time      `json:"last_score_update"`
}

// Beneficiary is the scoring-relevant snapshot of one registered person or
// household. The wider registration record lives with the beneficiary
// service; this module only reads the inputs and owns the derived state.
type Beneficiary struct {
	ID                domain.BeneficiaryID `json:"id"`
	FamilySize        int                  `json:"family_size"`
	Age               int                  `json:"age"`
	Dependents        int                  `json:"dependents"`
	MedicalConditions []MedicalCondition   `json:"medical_conditions"`
	Losses            []LossType           `json:"losses"`
	Geographic        GeographicFactors    `json:"geographic"`
	LastAidDate       *time.Time           `json:"last_aid_date,omitempty"`
	Needs             []Need               `json:"needs"`
	AidDelivered      bool                 `json:"aid_delivered"`
	Active            bool                 `json:"active"`

	Vulnerability VulnerabilityState `json:"vulnerability"`
}

// UpdateResult reports one re-scoring pass over a single beneficiary.
type UpdateResult struct {
	BeneficiaryID domain.BeneficiaryID `json:"beneficiary_id"`
	PreviousTier  Tier                 `json:"previous_tier"`
	State         VulnerabilityState   `json:"state"`
	Escalated     bool                 `json:"escalated"`
}

// Escalation is the alert payload published when a beneficiary crosses from
// a low-urgency tier into a high-urgency one.
type Escalation struct {
	BeneficiaryID domain.BeneficiaryID `json:"beneficiary_id"`
	PreviousTier  Tier                 `json:"previous_tier"`
	NewTier       Tier                 `json:"new_tier"`
	Score         float64              `json:"score"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// BatchError records a per-record failure inside a bulk run.
type BatchError struct {
	BeneficiaryID domain.BeneficiaryID `json:"beneficiary_id"`
	Error         string               `json:"error"`
}

// BatchReport aggregates one full re-scoring run.
type BatchReport struct {
	Updated    int           `json:"updated"`
	Escalated  []Escalation  `json:"escalated"`
	Errors     []BatchError  `json:"errors"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	StartedAt  time.Time     `json:"started_at"`
}

// UrgentCase is one entry in the operator dashboard's urgent feed.
type UrgentCase struct {
	BeneficiaryID     domain.BeneficiaryID `json:"beneficiary_id"`
	Tier              Tier                 `json:"tier"`
	Score             float64              `json:"score"`
	EstimatedDelivery time.Time            `json:"estimated_delivery"`
	Overdue           bool                 `json:"overdue"`
}
