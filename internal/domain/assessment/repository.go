package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionRepository defines the interface for chat session persistence.
// Implementations persist the aggregate together with any transcript
// messages appended since the last save.
type SessionRepository interface {
	// Save creates a new session
	Save(ctx context.Context, session *ChatSession) error

	// Update saves session state and appends new messages. The write is
	// atomic; a turn is only committed once Update succeeds.
	Update(ctx context.Context, session *ChatSession) error

	// FindByID finds a session with its full transcript
	FindByID(ctx context.Context, id uuid.UUID) (*ChatSession, error)

	// FindExpired returns non-terminal sessions whose wall-clock limit
	// elapsed before the given time, up to limit
	FindExpired(ctx context.Context, before time.Time, limit int) ([]*ChatSession, error)
}

// AssessmentRecordRepository defines the interface for the analytics store
type AssessmentRecordRepository interface {
	// Upsert writes the record for its session, replacing any earlier
	// record for the same session identifier
	Upsert(ctx context.Context, record *AssessmentRecord) error

	// FindBySessionID finds the record for a session
	FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*AssessmentRecord, error)

	// CountByCategory counts records per risk category
	CountByCategory(ctx context.Context, category RiskCategory) (int64, error)
}
