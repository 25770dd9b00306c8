package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/genintake/backend/internal/domain/knowledge"
	"github.com/genintake/backend/internal/infrastructure/persistence/models"
)

// GormChunkRepository implements ChunkRepository using GORM
type GormChunkRepository struct {
	db *gorm.DB
}

// NewGormChunkRepository creates a new GormChunkRepository
func NewGormChunkRepository(db *gorm.DB) *GormChunkRepository {
	return &GormChunkRepository{db: db}
}

var _ knowledge.ChunkRepository = (*GormChunkRepository)(nil)

// SaveBatch persists a set of chunks in one transaction
func (r *GormChunkRepository) SaveBatch(ctx context.Context, chunks []*knowledge.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]*models.KnowledgeChunkModel, len(chunks))
	for i, chunk := range chunks {
		model, err := models.KnowledgeChunkModelFromDomain(chunk)
		if err != nil {
			return fmt.Errorf("serialize chunk %d of %s: %w", chunk.ChunkIndex, chunk.Source, err)
		}
		rows[i] = model
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 100).Error
	})
}

// FindBySpecialty returns every chunk of a specialty corpus in stable
// document order. Ranking happens in the retrieval layer, so the full
// corpus is loaded rather than filtered in SQL.
func (r *GormChunkRepository) FindBySpecialty(ctx context.Context, specialty string) ([]*knowledge.KnowledgeChunk, error) {
	var rows []models.KnowledgeChunkModel
	err := r.db.WithContext(ctx).
		Where("specialty = ?", specialty).
		Order("source ASC, chunk_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	chunks := make([]*knowledge.KnowledgeChunk, len(rows))
	for i := range rows {
		chunks[i] = rows[i].ToDomain()
	}
	return chunks, nil
}

// CountBySpecialty reports the corpus size for a specialty
func (r *GormChunkRepository) CountBySpecialty(ctx context.Context, specialty string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.KnowledgeChunkModel{}).
		Where("specialty = ?", specialty).
		Count(&count).Error
	return count, err
}

// DeleteBySource removes all chunks ingested from a source document
func (r *GormChunkRepository) DeleteBySource(ctx context.Context, source string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("source = ?", source).
		Delete(&models.KnowledgeChunkModel{})
	return result.RowsAffected, result.Error
}
