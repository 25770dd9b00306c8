package interview

import (
	"time"

	"github.com/google/uuid"

	"github.com/genintake/backend/internal/domain/assessment"
)

// StartSessionRequest opens an interview for a subject
type StartSessionRequest struct {
	SubjectID uuid.UUID `json:"subject_id"`
	Specialty string    `json:"specialty"`
}

// SessionStartedResponse returns the new session and its opening question
type SessionStartedResponse struct {
	SessionID       uuid.UUID `json:"session_id"`
	Specialty       string    `json:"specialty"`
	ProtocolID      string    `json:"protocol_id"`
	OpeningQuestion string    `json:"opening_question"`
	SessionStatus   string    `json:"session_status"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// TurnResponse is the outcome of one interview turn. Verdict is present
// only once the session reached a terminal state.
type TurnResponse struct {
	SessionID     uuid.UUID        `json:"session_id"`
	Reply         string           `json:"reply"`
	Verdict       *VerdictResponse `json:"verdict,omitempty"`
	SessionStatus string           `json:"session_status"`
	TurnCount     int              `json:"turn_count"`
}

// VerdictResponse is the wire form of an assessment verdict
type VerdictResponse struct {
	SessionID     uuid.UUID `json:"session_id"`
	MeetsCriteria bool      `json:"meets_criteria"`
	CriteriaMet   []string  `json:"criteria_met"`
	RiskScore     string    `json:"risk_score"`
	RiskCategory  string    `json:"risk_category"`
	Confidence    float64   `json:"confidence"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

// NewVerdictResponse maps a domain verdict to its wire form, keeping the
// fixed two-decimal risk score rendering
func NewVerdictResponse(verdict *assessment.AssessmentVerdict) *VerdictResponse {
	if verdict == nil {
		return nil
	}
	met := make([]string, len(verdict.CriteriaMet))
	copy(met, verdict.CriteriaMet)
	return &VerdictResponse{
		SessionID:     verdict.SessionID,
		MeetsCriteria: verdict.MeetsCriteria,
		CriteriaMet:   met,
		RiskScore:     verdict.RiskScoreString(),
		RiskCategory:  string(verdict.RiskCategory),
		Confidence:    verdict.Confidence,
		EvaluatedAt:   verdict.EvaluatedAt,
	}
}
