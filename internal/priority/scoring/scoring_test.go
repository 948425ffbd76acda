package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidchain/internal/priority/models"
	"aidchain/pkg/domain"
)

var scoreTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestComputeScoreDeterministic(t *testing.T) {
	b := models.Beneficiary{
		ID:         domain.NewBeneficiaryID(),
		FamilySize: 6,
		Age:        70,
		Dependents: 3,
		MedicalConditions: []models.MedicalCondition{
			{Name: "diabetes", Severity: models.SeverityHigh},
			{Name: "asthma", Severity: models.SeverityMedium},
		},
		Losses:     []models.LossType{models.LossHomeDamaged},
		Geographic: models.GeographicFactors{IsRemote: true, AccessibilityScore: 3},
		Needs:      []models.Need{{Description: "insulin", Priority: models.SeverityHigh}},
	}

	first, firstBD := ComputeScore(b, scoreTime)
	for i := 0; i < 5; i++ {
		score, bd := ComputeScore(b, scoreTime)
		require.Equal(t, first, score)
		require.Equal(t, firstBD, bd)
	}
	require.GreaterOrEqual(t, first, 0.0)
	require.LessOrEqual(t, first, 100.0)
}

func TestSubscoreCaps(t *testing.T) {
	t.Run("medical caps at 50", func(t *testing.T) {
		conditions := make([]models.MedicalCondition, 10)
		for i := range conditions {
			conditions[i] = models.MedicalCondition{Severity: models.SeverityCritical}
		}
		assert.Equal(t, 50.0, medicalScore(conditions))
	})

	t.Run("family caps at 25", func(t *testing.T) {
		// 15 + 5 (elderly) + 5 (dependents>=4) = 25, already at the cap.
		assert.Equal(t, 25.0, familyScore(12, 80, 6))
	})

	t.Run("damage caps at 40", func(t *testing.T) {
		losses := []models.LossType{
			models.LossDeath, models.LossDeath, models.LossHomeDestroyed,
		}
		assert.Equal(t, 40.0, damageScore(losses))
	})

	t.Run("geographic caps at 25", func(t *testing.T) {
		g := models.GeographicFactors{IsRemote: true, AccessibilityScore: 0}
		assert.Equal(t, 25.0, geographicScore(g))
	})

	t.Run("accessibility of five or better costs nothing", func(t *testing.T) {
		assert.Equal(t, 0.0, geographicScore(models.GeographicFactors{AccessibilityScore: 5}))
		assert.Equal(t, 0.0, geographicScore(models.GeographicFactors{AccessibilityScore: 9}))
	})

	t.Run("critical needs cap at 90", func(t *testing.T) {
		needs := make([]models.Need, 4)
		for i := range needs {
			needs[i] = models.Need{Priority: models.SeverityCritical}
		}
		assert.Equal(t, 90.0, criticalNeedsScore(needs))
	})

	t.Run("final clamp at 100 applied last", func(t *testing.T) {
		b := maximallyVulnerable()
		score, bd := ComputeScore(b, scoreTime)
		assert.Equal(t, 100.0, score)
		// Breakdown keeps pre-clamp subscores; their sum exceeds the total.
		sum := bd.Medical + bd.Family + bd.Damage + bd.Geographic + bd.TimeSinceAid + bd.CriticalNeeds
		assert.Greater(t, sum, 100.0)
	})
}

func TestTimeSinceAid(t *testing.T) {
	cases := []struct {
		name string
		days int
		want float64
	}{
		{"five days ago", 5, 0},
		{"one week", 7, 10},
		{"two weeks", 14, 20},
		{"three weeks", 21, 25},
		{"one month", 30, 30},
		{"two months", 60, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			last := scoreTime.AddDate(0, 0, -tc.days)
			assert.Equal(t, tc.want, timeSinceAidScore(&last, scoreTime))
		})
	}

	t.Run("never aided", func(t *testing.T) {
		assert.Equal(t, 25.0, timeSinceAidScore(nil, scoreTime))
	})
}

func TestTierThresholdsExhaustive(t *testing.T) {
	for score := 0; score <= 100; score++ {
		assign := TierFromScore(float64(score))
		switch {
		case score >= 80:
			require.Equal(t, models.TierCritical, assign.Tier, "score %d", score)
			require.Equal(t, "red", assign.Color)
			require.Equal(t, 6, assign.ETAHours)
		case score >= 60:
			require.Equal(t, models.TierHigh, assign.Tier, "score %d", score)
			require.Equal(t, "orange", assign.Color)
			require.Equal(t, 24, assign.ETAHours)
		case score >= 30:
			require.Equal(t, models.TierMedium, assign.Tier, "score %d", score)
			require.Equal(t, "yellow", assign.Color)
			require.Equal(t, 48, assign.ETAHours)
		default:
			require.Equal(t, models.TierLow, assign.Tier, "score %d", score)
			require.Equal(t, "green", assign.Color)
			require.Equal(t, 72, assign.ETAHours)
		}
	}
}

// A household with one critical need and no aid history lands in MEDIUM:
// criticalNeeds 30 + timeSinceAid 25, all other factors zero.
func TestSingleCriticalNeedScoresMedium(t *testing.T) {
	b := models.Beneficiary{
		ID:         domain.NewBeneficiaryID(),
		FamilySize: 2,
		Geographic: models.GeographicFactors{IsRemote: false, AccessibilityScore: 5},
		Needs:      []models.Need{{Description: "shelter", Priority: models.SeverityCritical}},
	}

	score, bd := ComputeScore(b, scoreTime)
	assert.Equal(t, 30.0, bd.CriticalNeeds)
	assert.Equal(t, 25.0, bd.TimeSinceAid)
	assert.Equal(t, 0.0, bd.Medical)
	assert.Equal(t, 0.0, bd.Family)
	assert.Equal(t, 0.0, bd.Damage)
	assert.Equal(t, 0.0, bd.Geographic)
	assert.Equal(t, 55.0, score)

	state, escalated := Apply(b, scoreTime)
	assert.Equal(t, models.TierMedium, state.Tier)
	assert.Equal(t, "yellow", state.Color)
	assert.Equal(t, scoreTime.Add(48*time.Hour), state.EstimatedDelivery)
	assert.False(t, escalated)
}

// A second critical need pushes the same household to CRITICAL and, since it
// previously sat in MEDIUM, flags an escalation.
func TestSecondCriticalNeedEscalates(t *testing.T) {
	b := models.Beneficiary{
		ID:         domain.NewBeneficiaryID(),
		FamilySize: 2,
		Geographic: models.GeographicFactors{IsRemote: false, AccessibilityScore: 5},
		Needs:      []models.Need{{Description: "shelter", Priority: models.SeverityCritical}},
	}
	first, _ := Apply(b, scoreTime)
	require.Equal(t, models.TierMedium, first.Tier)
	b.Vulnerability = first

	b.Needs = append(b.Needs, models.Need{Description: "medical evacuation", Priority: models.SeverityCritical})
	state, escalated := Apply(b, scoreTime.Add(time.Hour))

	assert.Equal(t, 85.0, state.Score)
	assert.Equal(t, models.TierCritical, state.Tier)
	assert.Equal(t, "red", state.Color)
	assert.True(t, escalated)
}

func TestEscalationIsOneDirectional(t *testing.T) {
	cases := []struct {
		name     string
		previous models.Tier
		current  models.Tier
		want     bool
	}{
		{"low to high", models.TierLow, models.TierHigh, true},
		{"low to critical", models.TierLow, models.TierCritical, true},
		{"medium to high", models.TierMedium, models.TierHigh, true},
		{"medium to critical", models.TierMedium, models.TierCritical, true},
		{"high to critical", models.TierHigh, models.TierCritical, false},
		{"critical to low", models.TierCritical, models.TierLow, false},
		{"high to medium", models.TierHigh, models.TierMedium, false},
		{"medium to medium", models.TierMedium, models.TierMedium, false},
		{"first scoring", "", models.TierCritical, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isEscalation(tc.previous, tc.current))
		})
	}
}

func TestApplyWritesCompleteState(t *testing.T) {
	state, _ := Apply(maximallyVulnerable(), scoreTime)
	assert.Equal(t, 100.0, state.Score)
	assert.Equal(t, models.TierCritical, state.Tier)
	assert.Equal(t, "red", state.Color)
	assert.Equal(t, scoreTime.Add(6*time.Hour), state.EstimatedDelivery)
	assert.Equal(t, scoreTime, state.LastScoreUpdate)
	assert.NotZero(t, state.Breakdown)
}

func maximallyVulnerable() models.Beneficiary {
	return models.Beneficiary{
		ID:         domain.NewBeneficiaryID(),
		FamilySize: 9,
		Age:        78,
		Dependents: 5,
		MedicalConditions: []models.MedicalCondition{
			{Severity: models.SeverityCritical},
			{Severity: models.SeverityCritical},
			{Severity: models.SeverityCritical},
		},
		Losses: []models.LossType{
			models.LossDeath, models.LossHomeDestroyed, models.LossLivelihoodLost,
		},
		Geographic: models.GeographicFactors{IsRemote: true, AccessibilityScore: 1},
		Needs: []models.Need{
			{Priority: models.SeverityCritical},
			{Priority: models.SeverityCritical},
			{Priority: models.SeverityHigh},
		},
	}
}
