package knowledge

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/genintake/backend/internal/domain/knowledge"
)

// Embedder computes embedding vectors for free text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrievedChunk is one scored retrieval result
type RetrievedChunk struct {
	Chunk *knowledge.KnowledgeChunk
	Score float64
}

// RetrieverService ranks knowledge chunks against a query by cosine
// similarity. Retrieval is advisory: it degrades to an empty result on
// any failure and never fails the caller's turn.
type RetrieverService struct {
	chunkRepo knowledge.ChunkRepository
	embedder  Embedder
	logger    *zap.Logger
}

// NewRetrieverService creates a new RetrieverService
func NewRetrieverService(chunkRepo knowledge.ChunkRepository, embedder Embedder, logger *zap.Logger) *RetrieverService {
	return &RetrieverService{
		chunkRepo: chunkRepo,
		embedder:  embedder,
		logger:    logger,
	}
}

// Retrieve returns the top k chunks of a specialty corpus ranked by
// similarity to the query. An empty result is a valid outcome, never an
// error: embedding or store failures are logged and degrade to empty.
func (s *RetrieverService) Retrieve(ctx context.Context, query, specialty string, k int) []RetrievedChunk {
	if k <= 0 || query == "" {
		return nil
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("retrieval skipped, query embedding failed",
			zap.String("specialty", specialty),
			zap.Error(err))
		return nil
	}

	chunks, err := s.chunkRepo.FindBySpecialty(ctx, specialty)
	if err != nil {
		s.logger.Warn("retrieval skipped, knowledge store unavailable",
			zap.String("specialty", specialty),
			zap.Error(err))
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}

	scored := make([]RetrievedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		scored = append(scored, RetrievedChunk{
			Chunk: chunk,
			Score: chunk.SimilarityTo(queryVector),
		})
	}

	// Ties break on source position so rankings are stable across runs
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Chunk.Source != scored[j].Chunk.Source {
			return scored[i].Chunk.Source < scored[j].Chunk.Source
		}
		return scored[i].Chunk.ChunkIndex < scored[j].Chunk.ChunkIndex
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// Excerpts renders retrieval results as plain passages for prompting
func Excerpts(results []RetrievedChunk) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Chunk.Content)
	}
	return out
}
