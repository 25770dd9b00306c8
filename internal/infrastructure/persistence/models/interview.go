package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/genintake/backend/internal/domain/assessment"
)

// logger for model conversion errors (silent failures are logged for debugging)
var modelLogger = zap.L().Named("interview.models")

// ChatSessionModel is the persistence model for the ChatSession aggregate.
// The fact record and the latest verdict are stored as JSONB documents;
// their schemas evolve with the protocol, not with the table.
type ChatSessionModel struct {
	AggregateModel
	SubjectID     uuid.UUID                `gorm:"type:uuid;not null;index"`
	Specialty     string                   `gorm:"type:varchar(100);not null;index"`
	ProtocolID    string                   `gorm:"type:varchar(100);not null"`
	Status        assessment.SessionStatus `gorm:"type:varchar(20);not null;index"`
	FactsJSON     string                   `gorm:"column:facts;type:jsonb;not null;default:'{}'"`
	VerdictJSON   *string                  `gorm:"column:last_verdict;type:jsonb"`
	TurnCount     int                      `gorm:"not null;default:0"`
	MaxTurns      int                      `gorm:"not null"`
	ExpiresAt     time.Time                `gorm:"not null;index"`
	CompletedAt   *time.Time
	AbandonedAt   *time.Time
	AbandonReason string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (ChatSessionModel) TableName() string {
	return "interview_sessions"
}

// ToDomain converts the persistence model to a domain ChatSession.
// Transcript messages are attached separately by the repository.
func (m *ChatSessionModel) ToDomain() *assessment.ChatSession {
	session := &assessment.ChatSession{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SubjectID:         m.SubjectID,
		Specialty:         m.Specialty,
		ProtocolID:        m.ProtocolID,
		Status:            m.Status,
		Facts:             assessment.NewClinicalFactRecord(),
		Messages:          make([]assessment.Message, 0),
		TurnCount:         m.TurnCount,
		MaxTurns:          m.MaxTurns,
		ExpiresAt:         m.ExpiresAt,
		CompletedAt:       m.CompletedAt,
		AbandonedAt:       m.AbandonedAt,
		AbandonReason:     m.AbandonReason,
	}

	if m.FactsJSON != "" && m.FactsJSON != "{}" {
		var facts assessment.ClinicalFactRecord
		if err := json.Unmarshal([]byte(m.FactsJSON), &facts); err != nil {
			modelLogger.Warn("failed to parse session facts JSON",
				zap.String("session_id", m.ID.String()),
				zap.Error(err))
		} else {
			session.Facts = facts
		}
	}

	if m.VerdictJSON != nil && *m.VerdictJSON != "" {
		var verdict assessment.AssessmentVerdict
		if err := json.Unmarshal([]byte(*m.VerdictJSON), &verdict); err != nil {
			modelLogger.Warn("failed to parse session verdict JSON",
				zap.String("session_id", m.ID.String()),
				zap.Error(err))
		} else {
			session.LastVerdict = &verdict
		}
	}

	return session
}

// FromDomain populates the persistence model from a domain ChatSession
func (m *ChatSessionModel) FromDomain(s *assessment.ChatSession) error {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.SubjectID = s.SubjectID
	m.Specialty = s.Specialty
	m.ProtocolID = s.ProtocolID
	m.Status = s.Status
	m.TurnCount = s.TurnCount
	m.MaxTurns = s.MaxTurns
	m.ExpiresAt = s.ExpiresAt
	m.CompletedAt = s.CompletedAt
	m.AbandonedAt = s.AbandonedAt
	m.AbandonReason = s.AbandonReason

	factsJSON, err := json.Marshal(s.Facts)
	if err != nil {
		return err
	}
	m.FactsJSON = string(factsJSON)

	m.VerdictJSON = nil
	if s.LastVerdict != nil {
		verdictJSON, err := json.Marshal(s.LastVerdict)
		if err != nil {
			return err
		}
		v := string(verdictJSON)
		m.VerdictJSON = &v
	}
	return nil
}

// ChatSessionModelFromDomain creates a persistence model from a domain ChatSession
func ChatSessionModelFromDomain(s *assessment.ChatSession) (*ChatSessionModel, error) {
	model := &ChatSessionModel{}
	if err := model.FromDomain(s); err != nil {
		return nil, err
	}
	return model, nil
}

// MessageModel is the persistence model for one transcript message.
// Messages are immutable once written; the (session_id, seq) pair pins
// transcript order.
type MessageModel struct {
	ID        uuid.UUID              `gorm:"type:uuid;primary_key"`
	SessionID uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_session_seq,priority:1"`
	Seq       int                    `gorm:"not null;uniqueIndex:idx_session_seq,priority:2"`
	Role      assessment.MessageRole `gorm:"type:varchar(20);not null"`
	Text      string                 `gorm:"type:text;not null"`
	CreatedAt time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MessageModel) TableName() string {
	return "interview_messages"
}

// ToDomain converts the persistence model to a domain Message
func (m *MessageModel) ToDomain() assessment.Message {
	return assessment.Message{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Text:      m.Text,
		Seq:       m.Seq,
		CreatedAt: m.CreatedAt,
	}
}

// MessageModelFromDomain creates a persistence model from a domain Message
func MessageModelFromDomain(msg assessment.Message) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Seq:       msg.Seq,
		Role:      msg.Role,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
}

// AssessmentRecordModel is the persistence model for the analytics
// projection of a verdict. One record per session, replaced on re-evaluation.
type AssessmentRecordModel struct {
	ID             uuid.UUID               `gorm:"type:uuid;primary_key"`
	SessionID      uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex"`
	SubjectID      uuid.UUID               `gorm:"type:uuid;not null;index"`
	AssessmentType string                  `gorm:"type:varchar(100);not null;index"`
	MeetsCriteria  bool                    `gorm:"not null;index"`
	RiskScore      decimal.Decimal         `gorm:"type:decimal(5,2);not null"`
	RiskCategory   assessment.RiskCategory `gorm:"type:varchar(20);not null;index"`
	VerdictJSON    string                  `gorm:"column:verdict;type:jsonb;not null"`
	CreatedAt      time.Time               `gorm:"not null"`
	UpdatedAt      time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AssessmentRecordModel) TableName() string {
	return "assessment_records"
}

// ToDomain converts the persistence model to a domain AssessmentRecord
func (m *AssessmentRecordModel) ToDomain() *assessment.AssessmentRecord {
	record := &assessment.AssessmentRecord{
		ID:             m.ID,
		SessionID:      m.SessionID,
		SubjectID:      m.SubjectID,
		AssessmentType: m.AssessmentType,
		MeetsCriteria:  m.MeetsCriteria,
		RiskScore:      m.RiskScore,
		RiskCategory:   m.RiskCategory,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}

	if m.VerdictJSON != "" {
		var verdict assessment.AssessmentVerdict
		if err := json.Unmarshal([]byte(m.VerdictJSON), &verdict); err != nil {
			modelLogger.Warn("failed to parse record verdict JSON",
				zap.String("session_id", m.SessionID.String()),
				zap.Error(err))
		} else {
			record.Verdict = &verdict
		}
	}

	return record
}

// AssessmentRecordModelFromDomain creates a persistence model from a domain AssessmentRecord
func AssessmentRecordModelFromDomain(r *assessment.AssessmentRecord) (*AssessmentRecordModel, error) {
	model := &AssessmentRecordModel{
		ID:             r.ID,
		SessionID:      r.SessionID,
		SubjectID:      r.SubjectID,
		AssessmentType: r.AssessmentType,
		MeetsCriteria:  r.MeetsCriteria,
		RiskScore:      r.RiskScore,
		RiskCategory:   r.RiskCategory,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}

	verdictJSON, err := json.Marshal(r.Verdict)
	if err != nil {
		return nil, err
	}
	model.VerdictJSON = string(verdictJSON)
	return model, nil
}
