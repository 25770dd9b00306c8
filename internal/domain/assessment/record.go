package assessment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/genintake/backend/internal/domain/shared"
)

// AssessmentRecord is the cross-subject analytics projection of a verdict.
// Exactly one record exists per session; a superseding verdict overwrites
// it through an upsert keyed by session identifier.
type AssessmentRecord struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	SubjectID      uuid.UUID
	AssessmentType string
	MeetsCriteria  bool
	RiskScore      decimal.Decimal
	RiskCategory   RiskCategory
	Verdict        *AssessmentVerdict
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAssessmentRecord projects a verdict into its analytics record
func NewAssessmentRecord(session *ChatSession, verdict *AssessmentVerdict) (*AssessmentRecord, error) {
	if session == nil || verdict == nil {
		return nil, shared.ErrInvalidInput
	}
	now := time.Now()
	return &AssessmentRecord{
		ID:             uuid.New(),
		SessionID:      session.ID,
		SubjectID:      session.SubjectID,
		AssessmentType: session.Specialty,
		MeetsCriteria:  verdict.MeetsCriteria,
		RiskScore:      verdict.RiskScore,
		RiskCategory:   verdict.RiskCategory,
		Verdict:        verdict,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
