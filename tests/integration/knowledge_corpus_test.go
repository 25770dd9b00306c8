package integration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	knowledgeapp "github.com/genintake/backend/internal/application/knowledge"
	"github.com/genintake/backend/internal/infrastructure/persistence"
)

// keywordEmbedder projects texts onto fixed topic axes so similarity
// ranking in tests is deterministic
type keywordEmbedder struct {
	mu  sync.Mutex
	err error
}

func (e *keywordEmbedder) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}

	lower := strings.ToLower(text)
	vector := []float32{0.05, 0.05, 0.05}
	switch {
	case strings.Contains(lower, "brca"):
		vector[0] = 1
	case strings.Contains(lower, "ovarian"):
		vector[1] = 1
	case strings.Contains(lower, "ashkenazi"):
		vector[2] = 1
	}
	return vector, nil
}

func TestKnowledgeCorpus_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	chunks := persistence.NewGormChunkRepository(testDB.DB)
	embedder := &keywordEmbedder{}
	logger := zap.NewNop()
	ingestor := knowledgeapp.NewIngestorService(chunks, embedder, logger)
	retriever := knowledgeapp.NewRetrieverService(chunks, embedder, logger)
	ctx := context.Background()

	t.Run("ingesting a document embeds and stores its chunks", func(t *testing.T) {
		testDB.CleanTables()

		count, err := ingestor.IngestDocument(ctx, knowledgeapp.Document{
			Specialty: "hereditary_cancer",
			Source:    "nccn-hboc-2026",
			Title:     "HBOC testing criteria",
			Content:   "BRCA1 and BRCA2 sequencing is indicated after early onset breast cancer.",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		stored, err := chunks.FindBySpecialty(ctx, "hereditary_cancer")
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "nccn-hboc-2026", stored[0].Source)
		assert.Equal(t, "HBOC testing criteria", stored[0].Title)
		assert.Equal(t, 0, stored[0].ChunkIndex)
		assert.Contains(t, stored[0].Content, "BRCA1")
		assert.NotEmpty(t, stored[0].Embedding)
	})

	t.Run("a long document is split and re-ingestion replaces it", func(t *testing.T) {
		testDB.CleanTables()

		// Two paragraphs that cannot share one passage force a split
		long := strings.Repeat("BRCA sequencing is indicated for early onset disease. ", 16) +
			"\n\n" +
			strings.Repeat("Ovarian cancer in a close relative raises hereditary risk. ", 16)

		count, err := ingestor.IngestDocument(ctx, knowledgeapp.Document{
			Specialty: "hereditary_cancer",
			Source:    "nccn-hboc-2026",
			Title:     "HBOC testing criteria",
			Content:   long,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		total, err := chunks.CountBySpecialty(ctx, "hereditary_cancer")
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		// The same source ingested again replaces its chunks instead of
		// accumulating next to them
		count, err = ingestor.IngestDocument(ctx, knowledgeapp.Document{
			Specialty: "hereditary_cancer",
			Source:    "nccn-hboc-2026",
			Title:     "HBOC testing criteria, revised",
			Content:   "Revised criteria: BRCA testing thresholds were broadened.",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		stored, err := chunks.FindBySpecialty(ctx, "hereditary_cancer")
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Contains(t, stored[0].Content, "Revised criteria")
		assert.Equal(t, "HBOC testing criteria, revised", stored[0].Title)
	})

	t.Run("retrieval ranks chunks matching the query first", func(t *testing.T) {
		testDB.CleanTables()

		docs := []knowledgeapp.Document{
			{Specialty: "hereditary_cancer", Source: "guideline-brca", Title: "BRCA variants", Content: "Pathogenic BRCA variants warrant genetic counseling."},
			{Specialty: "hereditary_cancer", Source: "guideline-ovarian", Title: "Family history", Content: "Ovarian cancer in a close relative raises hereditary risk."},
			{Specialty: "hereditary_cancer", Source: "guideline-ancestry", Title: "Founder mutations", Content: "Ashkenazi ancestry carries founder mutations at higher frequency."},
		}
		for _, doc := range docs {
			_, err := ingestor.IngestDocument(ctx, doc)
			require.NoError(t, err)
		}

		results := retriever.Retrieve(ctx, "Which BRCA variants warrant testing?", "hereditary_cancer", 2)
		require.Len(t, results, 2)
		assert.Equal(t, "guideline-brca", results[0].Chunk.Source)
		assert.Greater(t, results[0].Score, results[1].Score)

		excerpts := knowledgeapp.Excerpts(results)
		require.Len(t, excerpts, 2)
		assert.Contains(t, excerpts[0], "BRCA")
	})

	t.Run("retrieval is scoped to the requested specialty", func(t *testing.T) {
		testDB.CleanTables()

		_, err := ingestor.IngestDocument(ctx, knowledgeapp.Document{
			Specialty: "hereditary_cancer",
			Source:    "guideline-brca",
			Title:     "BRCA variants",
			Content:   "Pathogenic BRCA variants warrant genetic counseling.",
		})
		require.NoError(t, err)

		results := retriever.Retrieve(ctx, "BRCA testing", "cardiology", 4)
		assert.Empty(t, results)
	})

	t.Run("an empty corpus retrieves nothing", func(t *testing.T) {
		testDB.CleanTables()

		results := retriever.Retrieve(ctx, "BRCA testing", "hereditary_cancer", 4)
		assert.Empty(t, results)
	})

	t.Run("an embedding failure degrades retrieval to empty", func(t *testing.T) {
		testDB.CleanTables()

		_, err := ingestor.IngestDocument(ctx, knowledgeapp.Document{
			Specialty: "hereditary_cancer",
			Source:    "guideline-brca",
			Title:     "BRCA variants",
			Content:   "Pathogenic BRCA variants warrant genetic counseling.",
		})
		require.NoError(t, err)

		embedder.fail(errors.New("embedding endpoint down"))
		defer embedder.fail(nil)

		results := retriever.Retrieve(ctx, "BRCA testing", "hereditary_cancer", 4)
		assert.Empty(t, results)
	})

	t.Run("an embedding failure aborts ingestion before the corpus changes", func(t *testing.T) {
		testDB.CleanTables()

		_, err := ingestor.IngestDocument(ctx, knowledgeapp.Document{
			Specialty: "hereditary_cancer",
			Source:    "guideline-brca",
			Title:     "BRCA variants",
			Content:   "Pathogenic BRCA variants warrant genetic counseling.",
		})
		require.NoError(t, err)

		embedder.fail(errors.New("embedding endpoint down"))
		defer embedder.fail(nil)

		_, err = ingestor.IngestDocument(ctx, knowledgeapp.Document{
			Specialty: "hereditary_cancer",
			Source:    "guideline-brca",
			Title:     "BRCA variants, revised",
			Content:   "This revision must not land.",
		})
		require.Error(t, err)

		stored, findErr := chunks.FindBySpecialty(ctx, "hereditary_cancer")
		require.NoError(t, findErr)
		require.Len(t, stored, 1)
		assert.Equal(t, "BRCA variants", stored[0].Title)
	})
}
