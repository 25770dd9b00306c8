package assessment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/genintake/backend/internal/domain/shared"
)

// SessionStatus represents the lifecycle status of a chat session
type SessionStatus string

const (
	StatusActive        SessionStatus = "active"
	StatusAwaitingReply SessionStatus = "awaiting_reply"
	StatusAnalyzing     SessionStatus = "analyzing"
	StatusCompleted     SessionStatus = "completed"
	StatusAbandoned     SessionStatus = "abandoned"
)

// IsValid checks if the status is a valid SessionStatus
func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusAwaitingReply, StatusAnalyzing, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// String returns the string representation of SessionStatus
func (s SessionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is permanent
func (s SessionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// CanTransitionTo checks if the status can transition to the target status
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	switch s {
	case StatusActive:
		return target == StatusAwaitingReply || target == StatusAbandoned
	case StatusAwaitingReply:
		return target == StatusAnalyzing || target == StatusAbandoned
	case StatusAnalyzing:
		return target == StatusActive || target == StatusCompleted || target == StatusAbandoned
	case StatusCompleted, StatusAbandoned:
		return false // Terminal states
	}
	return false
}

// ChatSession is the interview aggregate root. It owns the transcript, the
// accumulated clinical facts and the latest verdict; all lifecycle changes
// go through its transition methods. Sessions terminate, they are never
// deleted.
type ChatSession struct {
	shared.BaseAggregateRoot
	SubjectID     uuid.UUID
	Specialty     string
	ProtocolID    string
	Status        SessionStatus
	Facts         ClinicalFactRecord
	LastVerdict   *AssessmentVerdict
	Messages      []Message
	TurnCount     int
	MaxTurns      int
	ExpiresAt     time.Time
	CompletedAt   *time.Time
	AbandonedAt   *time.Time
	AbandonReason string
}

// NewChatSession starts an interview session for a subject. Turn and
// wall-clock limits come from the interview protocol.
func NewChatSession(subjectID uuid.UUID, specialty, protocolID string, maxTurns int, maxDuration time.Duration) (*ChatSession, error) {
	if subjectID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUBJECT", "Subject ID cannot be empty")
	}
	if specialty == "" {
		return nil, shared.NewDomainError("INVALID_SPECIALTY", "Specialty cannot be empty")
	}
	if protocolID == "" {
		return nil, shared.NewDomainError("INVALID_PROTOCOL", "Protocol ID cannot be empty")
	}
	if maxTurns <= 0 {
		return nil, shared.NewDomainError("INVALID_LIMIT", "Turn limit must be positive")
	}
	if maxDuration <= 0 {
		return nil, shared.NewDomainError("INVALID_LIMIT", "Session duration limit must be positive")
	}

	session := &ChatSession{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SubjectID:         subjectID,
		Specialty:         specialty,
		ProtocolID:        protocolID,
		Status:            StatusActive,
		Facts:             NewClinicalFactRecord(),
		Messages:          make([]Message, 0),
		MaxTurns:          maxTurns,
		ExpiresAt:         time.Now().Add(maxDuration),
	}

	session.AddDomainEvent(NewSessionStartedEvent(session))

	return session, nil
}

// CanAcceptTurn checks that the session may process another subject
// utterance. Terminal sessions reject turns without mutating anything.
func (s *ChatSession) CanAcceptTurn() error {
	if s.Status.IsTerminal() {
		return shared.ErrSessionTerminal
	}
	if s.Status != StatusActive {
		return shared.ErrTurnInProgress
	}
	return nil
}

// AppendSubjectUtterance records the subject's utterance and opens a new
// turn. The message sequence number is the next transcript position.
func (s *ChatSession) AppendSubjectUtterance(text string) (Message, error) {
	if err := s.CanAcceptTurn(); err != nil {
		return Message{}, err
	}
	msg, err := NewMessage(s.ID, RoleSubject, text, len(s.Messages))
	if err != nil {
		return Message{}, err
	}
	s.Messages = append(s.Messages, msg)
	s.TurnCount++
	s.UpdatedAt = time.Now()
	return msg, nil
}

// AppendAssistantReply records the assistant's side of the exchange
func (s *ChatSession) AppendAssistantReply(text string) (Message, error) {
	if s.Status.IsTerminal() {
		return Message{}, shared.ErrSessionTerminal
	}
	msg, err := NewMessage(s.ID, RoleAssistant, text, len(s.Messages))
	if err != nil {
		return Message{}, err
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
	return msg, nil
}

// BeginReply transitions to awaiting_reply while the model generates
func (s *ChatSession) BeginReply() error {
	if !s.Status.CanTransitionTo(StatusAwaitingReply) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot await a reply in %s status", s.Status))
	}
	s.Status = StatusAwaitingReply
	s.UpdatedAt = time.Now()
	return nil
}

// BeginAnalysis transitions to analyzing while facts and criteria are
// computed for the turn
func (s *ChatSession) BeginAnalysis() error {
	if !s.Status.CanTransitionTo(StatusAnalyzing) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot analyze in %s status", s.Status))
	}
	s.Status = StatusAnalyzing
	s.UpdatedAt = time.Now()
	return nil
}

// ResumeActive returns the session to active for the next turn
func (s *ChatSession) ResumeActive() error {
	if !s.Status.CanTransitionTo(StatusActive) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot resume from %s status", s.Status))
	}
	s.Status = StatusActive
	s.UpdatedAt = time.Now()
	return nil
}

// ApplyExtraction merges a validated extraction into the fact record,
// attributing provenance to the given message and the current turn.
// Returns the fact keys that changed.
func (s *ChatSession) ApplyExtraction(ex Extraction, sourceMessageID uuid.UUID) ([]FactKey, error) {
	if s.Status.IsTerminal() {
		return nil, shared.ErrSessionTerminal
	}
	applied := s.Facts.Merge(ex, sourceMessageID, s.TurnCount, time.Now())
	if len(applied) > 0 {
		s.UpdatedAt = time.Now()
	}
	return applied, nil
}

// RecordVerdict stores the latest verdict on the session. An existing
// verdict is superseded by reference, never mutated.
func (s *ChatSession) RecordVerdict(verdict *AssessmentVerdict) error {
	if s.Status.IsTerminal() {
		return shared.ErrSessionTerminal
	}
	if verdict == nil {
		return shared.ErrInvalidInput
	}
	s.LastVerdict = verdict
	s.UpdatedAt = time.Now()
	return nil
}

// Complete terminates the session with a final verdict. Only reachable
// from analyzing, once the evaluator's outcome warrants completion.
func (s *ChatSession) Complete(verdict *AssessmentVerdict) error {
	if !s.Status.CanTransitionTo(StatusCompleted) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete session in %s status", s.Status))
	}
	if verdict == nil {
		return shared.NewDomainError("NO_VERDICT", "Completion requires a verdict")
	}

	now := time.Now()
	s.LastVerdict = verdict
	s.Status = StatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now

	s.AddDomainEvent(NewSessionCompletedEvent(s))

	return nil
}

// Abandon terminates the session without a conclusive interview. The last
// computed verdict, when present, is retained for audit.
func (s *ChatSession) Abandon(reason string) error {
	if !s.Status.CanTransitionTo(StatusAbandoned) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot abandon session in %s status", s.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Abandon reason is required")
	}

	now := time.Now()
	s.Status = StatusAbandoned
	s.AbandonedAt = &now
	s.AbandonReason = reason
	s.UpdatedAt = now

	s.AddDomainEvent(NewSessionAbandonedEvent(s))

	return nil
}

// LimitsReached reports whether the configured turn-count or wall-clock
// limit has been hit
func (s *ChatSession) LimitsReached(now time.Time) bool {
	return s.TurnCount >= s.MaxTurns || !now.Before(s.ExpiresAt)
}

// AssistantMessageCount counts assistant messages in the transcript,
// used to pick the next scripted opening question.
func (s *ChatSession) AssistantMessageCount() int {
	count := 0
	for _, m := range s.Messages {
		if m.Role == RoleAssistant {
			count++
		}
	}
	return count
}

// History returns up to limit most recent messages in transcript order
func (s *ChatSession) History(limit int) []Message {
	if limit <= 0 || limit >= len(s.Messages) {
		out := make([]Message, len(s.Messages))
		copy(out, s.Messages)
		return out
	}
	out := make([]Message, limit)
	copy(out, s.Messages[len(s.Messages)-limit:])
	return out
}
