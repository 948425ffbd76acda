// Package scoring implements the vulnerability score: a deterministic,
// side-effect-free mapping from a beneficiary snapshot to a 0-100 score,
// a priority tier, and a delivery ETA.
//
// Six independent, additive subscores, each capped separately:
//
//	medical        cap 50   critical=20 high=10 medium=5 low=2 per condition
//	family         cap 25   household size, elderly, young children, dependents
//	damage         cap 40   per declared loss, weighted by kind
//	geographic     cap 25   remoteness plus poor accessibility
//	timeSinceAid   cap 30   days since the last delivery, or never aided
//	criticalNeeds  cap 90   critical needs x30 + high needs x15
//
// The subscore caps sum past 100, so the final clamp to 100 is load-bearing
// and applied last. Absent numeric inputs score as zero.
package scoring

import (
	"time"

	"aidchain/internal/priority/models"
)

const (
	medicalCap       = 50
	familyCap        = 25
	damageCap        = 40
	geographicCap    = 25
	timeSinceAidCap  = 30
	criticalNeedsCap = 90
	totalCap         = 100
)

// ComputeScore derives the vulnerability score and its per-factor breakdown
// at the given reference time. Pure: the same snapshot and reference time
// always yield the same result.
func ComputeScore(b models.Beneficiary, now time.Time) (float64, models.ScoreBreakdown) {
	breakdown := models.ScoreBreakdown{
		Medical:       medicalScore(b.MedicalConditions),
		Family:        familyScore(b.FamilySize, b.Age, b.Dependents),
		Damage:        damageScore(b.Losses),
		Geographic:    geographicScore(b.Geographic),
		TimeSinceAid:  timeSinceAidScore(b.LastAidDate, now),
		CriticalNeeds: criticalNeedsScore(b.Needs),
	}
	return clampTotal(breakdown), breakdown
}

func clampTotal(bd models.ScoreBreakdown) float64 {
	total := bd.Medical + bd.Family + bd.Damage + bd.Geographic + bd.TimeSinceAid + bd.CriticalNeeds
	if total > totalCap {
		return totalCap
	}
	return total
}

func medicalScore(conditions []models.MedicalCondition) float64 {
	var score float64
	for _, c := range conditions {
		switch c.Severity {
		case models.SeverityCritical:
			score += 20
		case models.SeverityHigh:
			score += 10
		case models.SeverityMedium:
			score += 5
		case models.SeverityLow:
			score += 2
		}
	}
	return min(score, medicalCap)
}

func familyScore(size, age, dependents int) float64 {
	var score float64
	switch {
	case size >= 8:
		score += 15
	case size >= 5:
		score += 10
	case size >= 3:
		score += 5
	}
	if age >= 65 {
		score += 5
	}
	if age > 0 && age <= 5 {
		score += 5
	}
	switch {
	case dependents >= 4:
		score += 5
	case dependents >= 2:
		score += 3
	}
	return min(score, familyCap)
}

func damageScore(losses []models.LossType) float64 {
	var score float64
	for _, loss := range losses {
		switch loss {
		case models.LossDeath:
			score += 20
		case models.LossHomeDestroyed, models.LossMissingPerson:
			score += 15
		case models.LossHomeDamaged:
			score += 10
		case models.LossLivelihoodLost:
			score += 8
		default:
			score += 5
		}
	}
	return min(score, damageCap)
}

// geographicScore adds 10 for remoteness and up to 15 for poor road access.
// The accessibility penalty only kicks in below the adequate-access midpoint
// of 5; a site rated 5 or better costs nothing.
func geographicScore(g models.GeographicFactors) float64 {
	var score float64
	if g.IsRemote {
		score += 10
	}
	if g.AccessibilityScore < 5 {
		score += min((10-g.AccessibilityScore)*1.5, 15)
	}
	return min(score, geographicCap)
}

func timeSinceAidScore(lastAid *time.Time, now time.Time) float64 {
	if lastAid == nil {
		return 25
	}
	days := now.Sub(*lastAid).Hours() / 24
	switch {
	case days >= 30:
		return 30
	case days >= 21:
		return 25
	case days >= 14:
		return 20
	case days >= 7:
		return 10
	default:
		return 0
	}
}

func criticalNeedsScore(needs []models.Need) float64 {
	var score float64
	for _, need := range needs {
		switch need.Priority {
		case models.SeverityCritical:
			score += 30
		case models.SeverityHigh:
			score += 15
		}
	}
	return min(score, criticalNeedsCap)
}

// TierAssignment is the resolved tier row: band, display color, delivery ETA.
type TierAssignment struct {
	Tier     models.Tier
	Color    string
	ETAHours int
}

// tierTable is evaluated top-down, first match wins.
var tierTable = []struct {
	threshold float64
	assign    TierAssignment
}{
	{80, TierAssignment{models.TierCritical, "red", 6}},
	{60, TierAssignment{models.TierHigh, "orange", 24}},
	{30, TierAssignment{models.TierMedium, "yellow", 48}},
	{0, TierAssignment{models.TierLow, "green", 72}},
}

// TierFromScore maps a score to its priority band. Thresholds are fixed and
// exhaustive: every score lands in exactly one band.
func TierFromScore(score float64) TierAssignment {
	for _, row := range tierTable {
		if score >= row.threshold {
			return row.assign
		}
	}
	return tierTable[len(tierTable)-1].assign
}

// Apply rescores a beneficiary at the given instant and returns the complete
// replacement vulnerability state plus whether the move counts as an
// escalation. Escalation is one-directional: only movement from {LOW, MEDIUM}
// into {HIGH, CRITICAL} is flagged; recovery is never an alert.
func Apply(b models.Beneficiary, now time.Time) (models.VulnerabilityState, bool) {
	score, breakdown := ComputeScore(b, now)
	assign := TierFromScore(score)

	state := models.VulnerabilityState{
		Score:             score,
		Tier:              assign.Tier,
		Color:             assign.Color,
		EstimatedDelivery: now.Add(time.Duration(assign.ETAHours) * time.Hour),
		Breakdown:         breakdown,
		LastScoreUpdate:   now,
	}
	escalated := isEscalation(b.Vulnerability.Tier, assign.Tier)
	return state, escalated
}

func isEscalation(previous, current models.Tier) bool {
	wasCalm := previous == models.TierLow || previous == models.TierMedium
	isUrgent := current == models.TierHigh || current == models.TierCritical
	return wasCalm && isUrgent
}
