package assessment

import (
	"github.com/google/uuid"

	"github.com/genintake/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeChatSession = "ChatSession"

// Event type constants
const (
	EventTypeSessionStarted   = "InterviewSessionStarted"
	EventTypeSessionCompleted = "InterviewSessionCompleted"
	EventTypeSessionAbandoned = "InterviewSessionAbandoned"
)

// SessionStartedEvent is raised when an interview session is opened
type SessionStartedEvent struct {
	shared.BaseDomainEvent
	SessionID uuid.UUID `json:"session_id"`
	SubjectID uuid.UUID `json:"subject_id"`
	Specialty string    `json:"specialty"`
}

// NewSessionStartedEvent creates a new SessionStartedEvent
func NewSessionStartedEvent(session *ChatSession) *SessionStartedEvent {
	return &SessionStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionStarted, AggregateTypeChatSession, session.ID),
		SessionID:       session.ID,
		SubjectID:       session.SubjectID,
		Specialty:       session.Specialty,
	}
}

// EventType returns the event type name
func (e *SessionStartedEvent) EventType() string {
	return EventTypeSessionStarted
}

// SessionCompletedEvent is raised when a session reaches completed
type SessionCompletedEvent struct {
	shared.BaseDomainEvent
	SessionID     uuid.UUID `json:"session_id"`
	Specialty     string    `json:"specialty"`
	MeetsCriteria bool      `json:"meets_criteria"`
	RiskCategory  string    `json:"risk_category"`
	TurnCount     int       `json:"turn_count"`
}

// NewSessionCompletedEvent creates a new SessionCompletedEvent
func NewSessionCompletedEvent(session *ChatSession) *SessionCompletedEvent {
	evt := &SessionCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionCompleted, AggregateTypeChatSession, session.ID),
		SessionID:       session.ID,
		Specialty:       session.Specialty,
		TurnCount:       session.TurnCount,
	}
	if session.LastVerdict != nil {
		evt.MeetsCriteria = session.LastVerdict.MeetsCriteria
		evt.RiskCategory = string(session.LastVerdict.RiskCategory)
	}
	return evt
}

// EventType returns the event type name
func (e *SessionCompletedEvent) EventType() string {
	return EventTypeSessionCompleted
}

// SessionAbandonedEvent is raised when a session is abandoned
type SessionAbandonedEvent struct {
	shared.BaseDomainEvent
	SessionID  uuid.UUID `json:"session_id"`
	Specialty  string    `json:"specialty"`
	Reason     string    `json:"reason"`
	TurnCount  int       `json:"turn_count"`
	HadVerdict bool      `json:"had_verdict"`
}

// NewSessionAbandonedEvent creates a new SessionAbandonedEvent
func NewSessionAbandonedEvent(session *ChatSession) *SessionAbandonedEvent {
	return &SessionAbandonedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSessionAbandoned, AggregateTypeChatSession, session.ID),
		SessionID:       session.ID,
		Specialty:       session.Specialty,
		Reason:          session.AbandonReason,
		TurnCount:       session.TurnCount,
		HadVerdict:      session.LastVerdict != nil,
	}
}

// EventType returns the event type name
func (e *SessionAbandonedEvent) EventType() string {
	return EventTypeSessionAbandoned
}
