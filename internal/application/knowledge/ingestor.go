package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/genintake/backend/internal/domain/knowledge"
)

// defaultChunkRunes bounds one chunk's length. Guideline paragraphs are
// packed up to this size so a retrieved excerpt stays prompt-friendly.
const defaultChunkRunes = 1200

// Document is a guideline document to ingest into the knowledge store
type Document struct {
	Specialty string
	Source    string
	Title     string
	Content   string
}

// IngestorService turns guideline documents into embedded chunks. Writes
// happen offline; interviews only ever read the resulting corpus.
type IngestorService struct {
	chunkRepo  knowledge.ChunkRepository
	embedder   Embedder
	logger     *zap.Logger
	chunkRunes int
}

// NewIngestorService creates a new IngestorService
func NewIngestorService(chunkRepo knowledge.ChunkRepository, embedder Embedder, logger *zap.Logger) *IngestorService {
	return &IngestorService{
		chunkRepo:  chunkRepo,
		embedder:   embedder,
		logger:     logger,
		chunkRunes: defaultChunkRunes,
	}
}

// IngestDocument splits, embeds and stores one document, replacing any
// chunks previously ingested from the same source. Returns the number of
// chunks written.
func (s *IngestorService) IngestDocument(ctx context.Context, doc Document) (int, error) {
	passages := splitDocument(doc.Content, s.chunkRunes)
	if len(passages) == 0 {
		return 0, fmt.Errorf("document %s has no ingestable content", doc.Source)
	}

	chunks := make([]*knowledge.KnowledgeChunk, 0, len(passages))
	for i, passage := range passages {
		vector, err := s.embedder.Embed(ctx, passage)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d of %s: %w", i, doc.Source, err)
		}
		chunk, err := knowledge.NewKnowledgeChunk(doc.Specialty, doc.Source, doc.Title, passage, i, vector)
		if err != nil {
			return 0, err
		}
		chunks = append(chunks, chunk)
	}

	removed, err := s.chunkRepo.DeleteBySource(ctx, doc.Source)
	if err != nil {
		return 0, fmt.Errorf("clear previous chunks of %s: %w", doc.Source, err)
	}
	if err := s.chunkRepo.SaveBatch(ctx, chunks); err != nil {
		return 0, fmt.Errorf("save chunks of %s: %w", doc.Source, err)
	}

	s.logger.Info("document ingested",
		zap.String("source", doc.Source),
		zap.String("specialty", doc.Specialty),
		zap.Int("chunks", len(chunks)),
		zap.Int64("replaced", removed))

	return len(chunks), nil
}

// splitDocument packs blank-line separated paragraphs into passages of at
// most maxRunes, hard-splitting paragraphs that alone exceed the limit on
// sentence boundaries.
func splitDocument(content string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = defaultChunkRunes
	}

	var passages []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			passages = append(passages, text)
		}
		current.Reset()
		currentLen = 0
	}

	for _, paragraph := range strings.Split(content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		for _, piece := range splitLongParagraph(paragraph, maxRunes) {
			pieceLen := len([]rune(piece))
			if currentLen > 0 && currentLen+pieceLen+2 > maxRunes {
				flush()
			}
			if currentLen > 0 {
				current.WriteString("\n\n")
				currentLen += 2
			}
			current.WriteString(piece)
			currentLen += pieceLen
		}
	}
	flush()

	return passages
}

// splitLongParagraph cuts an overlong paragraph on sentence ends, falling
// back to a hard rune cut for unbroken text
func splitLongParagraph(paragraph string, maxRunes int) []string {
	if len([]rune(paragraph)) <= maxRunes {
		return []string{paragraph}
	}

	var pieces []string
	var current strings.Builder
	currentLen := 0

	for _, sentence := range splitSentences(paragraph) {
		sentenceLen := len([]rune(sentence))
		if currentLen > 0 && currentLen+sentenceLen+1 > maxRunes {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
		if sentenceLen > maxRunes {
			pieces = append(pieces, hardCut(sentence, maxRunes)...)
			continue
		}
		if currentLen > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += sentenceLen
	}
	if current.Len() > 0 {
		pieces = append(pieces, strings.TrimSpace(current.String()))
	}
	return pieces
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if (r == '.' || r == '?' || r == '!') && (i+1 == len(runes) || runes[i+1] == ' ') {
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

func hardCut(text string, maxRunes int) []string {
	runes := []rune(text)
	var pieces []string
	for len(runes) > maxRunes {
		pieces = append(pieces, string(runes[:maxRunes]))
		runes = runes[maxRunes:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}
