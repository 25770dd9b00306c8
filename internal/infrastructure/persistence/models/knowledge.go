package models

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/genintake/backend/internal/domain/knowledge"
)

// KnowledgeChunkModel is the persistence model for one chunk of the
// specialty knowledge corpus. The embedding is stored as a JSON array;
// similarity ranking happens in process, never in SQL.
type KnowledgeChunkModel struct {
	BaseModel
	Specialty     string `gorm:"type:varchar(100);not null;index"`
	Source        string `gorm:"type:varchar(255);not null;index"`
	Title         string `gorm:"type:varchar(255);not null"`
	ChunkIndex    int    `gorm:"not null"`
	Content       string `gorm:"type:text;not null"`
	EmbeddingJSON string `gorm:"column:embedding;type:jsonb;not null;default:'[]'"`
}

// TableName returns the table name for GORM
func (KnowledgeChunkModel) TableName() string {
	return "knowledge_chunks"
}

// ToDomain converts the persistence model to a domain KnowledgeChunk
func (m *KnowledgeChunkModel) ToDomain() *knowledge.KnowledgeChunk {
	chunk := &knowledge.KnowledgeChunk{
		BaseEntity: m.BaseModel.ToDomain(),
		Specialty:  m.Specialty,
		Source:     m.Source,
		Title:      m.Title,
		ChunkIndex: m.ChunkIndex,
		Content:    m.Content,
		Embedding:  knowledge.Vector{},
	}

	if m.EmbeddingJSON != "" && m.EmbeddingJSON != "[]" {
		var embedding knowledge.Vector
		if err := json.Unmarshal([]byte(m.EmbeddingJSON), &embedding); err != nil {
			modelLogger.Warn("failed to parse chunk embedding JSON",
				zap.String("chunk_id", m.ID.String()),
				zap.String("source", m.Source),
				zap.Error(err))
		} else {
			chunk.Embedding = embedding
		}
	}

	return chunk
}

// KnowledgeChunkModelFromDomain creates a persistence model from a domain KnowledgeChunk
func KnowledgeChunkModelFromDomain(c *knowledge.KnowledgeChunk) (*KnowledgeChunkModel, error) {
	embeddingJSON, err := json.Marshal(c.Embedding)
	if err != nil {
		return nil, err
	}

	model := &KnowledgeChunkModel{
		Specialty:     c.Specialty,
		Source:        c.Source,
		Title:         c.Title,
		ChunkIndex:    c.ChunkIndex,
		Content:       c.Content,
		EmbeddingJSON: string(embeddingJSON),
	}
	model.FromDomainBaseEntity(c.BaseEntity)
	return model, nil
}
