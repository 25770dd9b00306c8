package knowledge

import (
	"strings"

	"github.com/genintake/backend/internal/domain/shared"
)

// KnowledgeChunk is a retrievable passage of clinical guideline text
// together with its embedding. Chunks are written by ingestion and are
// read-only during interviews.
type KnowledgeChunk struct {
	shared.BaseEntity
	Specialty  string
	Source     string
	Title      string
	ChunkIndex int
	Content    string
	Embedding  Vector
}

// NewKnowledgeChunk creates a chunk for a specialty corpus. The embedding
// must already be computed; the store never embeds on read paths.
func NewKnowledgeChunk(specialty, source, title, content string, chunkIndex int, embedding Vector) (*KnowledgeChunk, error) {
	if strings.TrimSpace(specialty) == "" {
		return nil, shared.NewDomainError("INVALID_SPECIALTY", "Specialty cannot be empty")
	}
	if strings.TrimSpace(source) == "" {
		return nil, shared.NewDomainError("INVALID_SOURCE", "Source cannot be empty")
	}
	if strings.TrimSpace(content) == "" {
		return nil, shared.NewDomainError("INVALID_CONTENT", "Content cannot be empty")
	}
	if chunkIndex < 0 {
		return nil, shared.NewDomainError("INVALID_INDEX", "Chunk index cannot be negative")
	}
	if len(embedding) == 0 {
		return nil, shared.NewDomainError("INVALID_EMBEDDING", "Embedding cannot be empty")
	}

	return &KnowledgeChunk{
		BaseEntity: shared.NewBaseEntity(),
		Specialty:  strings.ToLower(strings.TrimSpace(specialty)),
		Source:     strings.TrimSpace(source),
		Title:      strings.TrimSpace(title),
		ChunkIndex: chunkIndex,
		Content:    strings.TrimSpace(content),
		Embedding:  embedding,
	}, nil
}

// SimilarityTo scores this chunk against a query embedding
func (c *KnowledgeChunk) SimilarityTo(query Vector) float64 {
	return CosineSimilarity(c.Embedding, query)
}
