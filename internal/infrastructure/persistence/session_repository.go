package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/genintake/backend/internal/domain/assessment"
	"github.com/genintake/backend/internal/domain/shared"
	"github.com/genintake/backend/internal/infrastructure/persistence/models"
)

// GormSessionRepository implements SessionRepository using GORM
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

var _ assessment.SessionRepository = (*GormSessionRepository)(nil)

// WithTx returns a new repository instance with the given transaction
func (r *GormSessionRepository) WithTx(tx *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: tx}
}

// Save creates a new session together with its opening transcript
func (r *GormSessionRepository) Save(ctx context.Context, session *assessment.ChatSession) error {
	model, err := models.ChatSessionModelFromDomain(session)
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return r.appendMessages(tx, session.Messages)
	})
}

// Update saves session state and appends new messages atomically. The
// write is guarded on the version the session was loaded with, so a
// stale aggregate loses to whichever writer committed first.
// Messages are immutable; re-writing an already persisted message is a
// no-op, so retrying a failed commit cannot duplicate transcript rows.
func (r *GormSessionRepository) Update(ctx context.Context, session *assessment.ChatSession) error {
	model, err := models.ChatSessionModelFromDomain(session)
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ChatSessionModel{}).
			Where("id = ? AND version = ?", session.ID, model.Version).
			Updates(map[string]any{
				"status":         model.Status,
				"facts":          model.FactsJSON,
				"last_verdict":   model.VerdictJSON,
				"turn_count":     model.TurnCount,
				"completed_at":   model.CompletedAt,
				"abandoned_at":   model.AbandonedAt,
				"abandon_reason": model.AbandonReason,
				"version":        model.Version + 1,
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ChatSessionModel{}).
				Where("id = ?", session.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}
		return r.appendMessages(tx, session.Messages)
	})
	if err != nil {
		return err
	}

	session.IncrementVersion()
	return nil
}

// appendMessages writes any transcript messages not yet persisted
func (r *GormSessionRepository) appendMessages(tx *gorm.DB, messages []assessment.Message) error {
	if len(messages) == 0 {
		return nil
	}
	rows := make([]*models.MessageModel, len(messages))
	for i, msg := range messages {
		rows[i] = models.MessageModelFromDomain(msg)
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).CreateInBatches(rows, 100).Error
}

// FindByID finds a session with its full transcript
func (r *GormSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*assessment.ChatSession, error) {
	var model models.ChatSessionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	session := model.ToDomain()

	var messageRows []models.MessageModel
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", id).
		Order("seq ASC").
		Find(&messageRows).Error; err != nil {
		return nil, err
	}
	session.Messages = make([]assessment.Message, len(messageRows))
	for i := range messageRows {
		session.Messages[i] = messageRows[i].ToDomain()
	}

	return session, nil
}

// FindExpired returns non-terminal sessions whose wall-clock limit elapsed
// before the given time, oldest first, up to limit
func (r *GormSessionRepository) FindExpired(ctx context.Context, before time.Time, limit int) ([]*assessment.ChatSession, error) {
	var rows []models.ChatSessionModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at < ?", []assessment.SessionStatus{
			assessment.StatusActive,
			assessment.StatusAwaitingReply,
			assessment.StatusAnalyzing,
		}, before).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]*assessment.ChatSession, len(rows))
	for i := range rows {
		sessions[i] = rows[i].ToDomain()
	}
	return sessions, nil
}
