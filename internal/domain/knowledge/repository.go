package knowledge

import "context"

// ChunkRepository defines the persistence interface for knowledge chunks
type ChunkRepository interface {
	// SaveBatch persists a set of chunks in one transaction
	SaveBatch(ctx context.Context, chunks []*KnowledgeChunk) error

	// FindBySpecialty returns every chunk of a specialty corpus
	FindBySpecialty(ctx context.Context, specialty string) ([]*KnowledgeChunk, error)

	// CountBySpecialty reports the corpus size for a specialty
	CountBySpecialty(ctx context.Context, specialty string) (int64, error)

	// DeleteBySource removes all chunks ingested from a source document,
	// making re-ingestion idempotent
	DeleteBySource(ctx context.Context, source string) (int64, error)
}
