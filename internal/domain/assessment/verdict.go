package assessment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskCategory buckets a risk score
type RiskCategory string

// Risk categories
const (
	RiskLow      RiskCategory = "low"
	RiskModerate RiskCategory = "moderate"
	RiskHigh     RiskCategory = "high"
)

// Category thresholds and the two-tier categorical scores. The criterion
// thresholds themselves come from the interview protocol; these bounds
// describe how a score maps to a category and do not vary per protocol.
var (
	riskScoreCriteriaMet = decimal.NewFromInt(80)
	riskScoreNoCriteria  = decimal.NewFromInt(20)
	riskHighBound        = decimal.NewFromInt(70)
	riskModerateBound    = decimal.NewFromInt(30)
)

// RiskCategoryForScore maps a 0.00-100.00 score to its category
func RiskCategoryForScore(score decimal.Decimal) RiskCategory {
	switch {
	case score.GreaterThanOrEqual(riskHighBound):
		return RiskHigh
	case score.GreaterThanOrEqual(riskModerateBound):
		return RiskModerate
	default:
		return RiskLow
	}
}

// AssessmentVerdict is the immutable outcome of one criteria evaluation.
// A later evaluation produces a new verdict that supersedes this one; no
// verdict is ever mutated in place.
type AssessmentVerdict struct {
	ID            uuid.UUID          `json:"id"`
	SessionID     uuid.UUID          `json:"session_id"`
	MeetsCriteria bool               `json:"meets_criteria"`
	CriteriaMet   []string           `json:"criteria_met"`
	RiskCategory  RiskCategory       `json:"risk_category"`
	RiskScore     decimal.Decimal    `json:"risk_score"`
	Confidence    float64            `json:"confidence"`
	Facts         ClinicalFactRecord `json:"facts"`
	EvaluatedAt   time.Time          `json:"evaluated_at"`
}

// NewAssessmentVerdict materializes an evaluation outcome for a session,
// snapshotting the fact record it was derived from.
func NewAssessmentVerdict(sessionID uuid.UUID, outcome Outcome, facts ClinicalFactRecord) *AssessmentVerdict {
	met := make([]string, len(outcome.CriteriaMet))
	copy(met, outcome.CriteriaMet)
	return &AssessmentVerdict{
		ID:            uuid.New(),
		SessionID:     sessionID,
		MeetsCriteria: outcome.MeetsCriteria,
		CriteriaMet:   met,
		RiskCategory:  outcome.RiskCategory,
		RiskScore:     outcome.RiskScore,
		Confidence:    outcome.Confidence,
		Facts:         facts.Clone(),
		EvaluatedAt:   time.Now(),
	}
}

// RiskScoreString renders the score with the fixed two-decimal precision
func (v *AssessmentVerdict) RiskScoreString() string {
	return v.RiskScore.StringFixed(2)
}
