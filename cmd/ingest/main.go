package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	knowledgeapp "github.com/genintake/backend/internal/application/knowledge"
	"github.com/genintake/backend/internal/infrastructure/config"
	"github.com/genintake/backend/internal/infrastructure/llm"
	"github.com/genintake/backend/internal/infrastructure/logger"
	"github.com/genintake/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

// corpusDocument is one line of the corpus file
type corpusDocument struct {
	Specialty string `json:"specialty"`
	Source    string `json:"source"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

func main() {
	// Parse flags
	var (
		filePath  string
		specialty string
		logLevel  string
	)

	flag.StringVar(&filePath, "file", "", "Path to corpus file (one JSON document per line)")
	flag.StringVar(&specialty, "specialty", "", "Specialty for documents that do not carry one")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	if filePath == "" {
		printUsage()
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Connect to the database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	// Model gateway for embeddings
	modelClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:        cfg.Model.BaseURL,
		APIKey:         cfg.Model.APIKey,
		ChatModel:      cfg.Model.ChatModel,
		EmbeddingModel: cfg.Model.EmbeddingModel,
		RequestTimeout: cfg.Model.RequestTimeout,
		Temperature:    cfg.Model.Temperature,
	})
	if err != nil {
		log.Fatal("Failed to create model client", zap.Error(err))
	}
	breaker := llm.NewConsecutiveBreaker(llm.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
	})
	gateway := llm.NewGateway(modelClient, breaker, cfg.Model.RequestTimeout, log)

	ingestor := knowledgeapp.NewIngestorService(
		persistence.NewGormChunkRepository(db.DB),
		gateway,
		log,
	)

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open corpus file", zap.String("file", filePath), zap.Error(err))
	}
	defer f.Close()

	log.Info("Ingestion started", zap.String("file", filePath))

	ctx := context.Background()
	scanner := bufio.NewScanner(f)
	// Guideline documents arrive as single JSON lines and can be long
	scanner.Buffer(make([]byte, 0, 1024*1024), 8*1024*1024)

	var lineNo, documents, chunks, failures int
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var doc corpusDocument
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			log.Error("Skipping malformed corpus line",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			failures++
			continue
		}
		if doc.Specialty == "" {
			doc.Specialty = specialty
		}
		if doc.Source == "" {
			doc.Source = fmt.Sprintf("%s#%d", filepath.Base(filePath), lineNo)
		}

		written, err := ingestor.IngestDocument(ctx, knowledgeapp.Document{
			Specialty: doc.Specialty,
			Source:    doc.Source,
			Title:     doc.Title,
			Content:   doc.Content,
		})
		if err != nil {
			log.Error("Failed to ingest document",
				zap.Int("line", lineNo),
				zap.String("source", doc.Source),
				zap.Error(err),
			)
			failures++
			continue
		}
		documents++
		chunks += written
	}
	if err := scanner.Err(); err != nil {
		log.Fatal("Failed to read corpus file", zap.Error(err))
	}

	log.Info("Ingestion finished",
		zap.Int("documents", documents),
		zap.Int("chunks", chunks),
		zap.Int("failures", failures),
	)
	if failures > 0 {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`GenIntake Knowledge Ingestion Tool

Reads guideline documents from a corpus file (one JSON object per line),
splits them into retrieval chunks, embeds each chunk through the configured
model endpoint and stores the result in the knowledge corpus. Re-ingesting
a source replaces its previous chunks.

Usage:
  ingest -file <path> [flags]

Record format:
  {"specialty": "hereditary_cancer", "source": "nccn-hboc-2026", "title": "...", "content": "..."}

Flags:
  -file string        Path to corpus file (required)
  -specialty string   Specialty for documents that do not carry one
  -log-level string   Log level: debug, info, warn, error (default: info)

Examples:
  # Ingest the hereditary cancer guideline corpus
  ingest -file corpus/hereditary_cancer.jsonl -specialty hereditary_cancer`)
}
