package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/genintake/backend/internal/domain/assessment"
	"github.com/genintake/backend/internal/domain/shared"
	"github.com/genintake/backend/internal/infrastructure/persistence/models"
)

// GormAssessmentRecordRepository implements AssessmentRecordRepository using GORM
type GormAssessmentRecordRepository struct {
	db *gorm.DB
}

// NewGormAssessmentRecordRepository creates a new GormAssessmentRecordRepository
func NewGormAssessmentRecordRepository(db *gorm.DB) *GormAssessmentRecordRepository {
	return &GormAssessmentRecordRepository{db: db}
}

var _ assessment.AssessmentRecordRepository = (*GormAssessmentRecordRepository)(nil)

// WithTx returns a new repository instance with the given transaction
func (r *GormAssessmentRecordRepository) WithTx(tx *gorm.DB) *GormAssessmentRecordRepository {
	return &GormAssessmentRecordRepository{db: tx}
}

// Upsert writes the record for its session. The unique session_id index
// makes re-evaluation replace the earlier record instead of duplicating it.
func (r *GormAssessmentRecordRepository) Upsert(ctx context.Context, record *assessment.AssessmentRecord) error {
	model, err := models.AssessmentRecordModelFromDomain(record)
	if err != nil {
		return fmt.Errorf("serialize assessment record: %w", err)
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"meets_criteria",
			"risk_score",
			"risk_category",
			"verdict",
			"updated_at",
		}),
	}).Create(model).Error
}

// FindBySessionID finds the record for a session
func (r *GormAssessmentRecordRepository) FindBySessionID(ctx context.Context, sessionID uuid.UUID) (*assessment.AssessmentRecord, error) {
	var model models.AssessmentRecordModel
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountByCategory counts records per risk category
func (r *GormAssessmentRecordRepository) CountByCategory(ctx context.Context, category assessment.RiskCategory) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AssessmentRecordModel{}).
		Where("risk_category = ?", category).
		Count(&count).Error
	return count, err
}
