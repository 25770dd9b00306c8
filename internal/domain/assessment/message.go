package assessment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genintake/backend/internal/domain/shared"
)

// MessageRole identifies who produced a message
type MessageRole string

// Message roles
const (
	RoleSubject   MessageRole = "subject"
	RoleAssistant MessageRole = "assistant"
)

// IsValid checks if the role is valid
func (r MessageRole) IsValid() bool {
	return r == RoleSubject || r == RoleAssistant
}

// Message is one ordered entry of a session transcript. Messages are
// append-only and immutable once written; sequence numbers are the sole
// source of conversational ordering.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"session_id"`
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	Seq       int         `json:"seq"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewMessage creates a transcript message
func NewMessage(sessionID uuid.UUID, role MessageRole, text string, seq int) (Message, error) {
	if !role.IsValid() {
		return Message{}, shared.NewDomainError("INVALID_ROLE", "Message role must be subject or assistant")
	}
	if strings.TrimSpace(text) == "" {
		return Message{}, shared.NewDomainError("EMPTY_MESSAGE", "Message text cannot be empty")
	}
	if seq < 0 {
		return Message{}, shared.ErrInvalidInput
	}
	return Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		Seq:       seq,
		CreatedAt: time.Now(),
	}, nil
}
