package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/genintake/backend/internal/domain/assessment"
)

// Extractor implementation modes selectable via configuration
const (
	ExtractorModePattern = "pattern"
	ExtractorModeModel   = "model"
)

// NewExtractor builds the configured fact extractor. The model mode wraps
// the model-assisted extractor with the deterministic pattern extractor so
// extraction keeps working while the gateway is degraded.
func NewExtractor(mode string, gateway *Gateway, logger *zap.Logger) (assessment.Extractor, error) {
	switch mode {
	case ExtractorModePattern:
		return assessment.NewPatternExtractor(), nil
	case ExtractorModeModel, "":
		return NewFallbackExtractor(NewModelExtractor(gateway), assessment.NewPatternExtractor(), logger), nil
	default:
		return nil, fmt.Errorf("unknown extractor mode %q", mode)
	}
}

const extractionSystemPrompt = `You extract clinical facts from one exchange of a genetic-testing intake interview.

Rules:
- Report ONLY facts the subject stated explicitly. Never infer or guess.
- Leave a field null when the exchange does not state it.
- Family counts are the cumulative number of distinct affected relatives known after this exchange, including relatives from the current state.
- An explicit denial is a fact: "never had cancer" is false, "no family history" is a count of 0.
- Set confidence between 0 and 1 for how clearly the facts were stated.
- Output only the JSON object.`

// extractionSchema is the strict output schema for model extraction. It
// mirrors the clinical fact record shape; unknown keys are rejected again
// on decode.
var extractionSchema = json.RawMessage(`{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"personal_breast_cancer": {"type": ["boolean", "null"]},
		"personal_ovarian_cancer": {"type": ["boolean", "null"]},
		"breast_cancer_age": {"type": ["integer", "null"], "minimum": 0, "maximum": 120},
		"subject_age": {"type": ["integer", "null"], "minimum": 0, "maximum": 120},
		"family_breast_cancer_count": {"type": ["integer", "null"], "minimum": 0, "maximum": 50},
		"family_ovarian_cancer_count": {"type": ["integer", "null"], "minimum": 0, "maximum": 50},
		"family_male_breast_cancer": {"type": ["boolean", "null"]},
		"ashkenazi_heritage": {"type": ["boolean", "null"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	},
	"required": [
		"personal_breast_cancer",
		"personal_ovarian_cancer",
		"breast_cancer_age",
		"subject_age",
		"family_breast_cancer_count",
		"family_ovarian_cancer_count",
		"family_male_breast_cancer",
		"ashkenazi_heritage",
		"confidence"
	]
}`)

// ModelExtractor derives clinical facts with a schema-constrained model
// completion. Output that fails the fact schema is discarded as an error,
// never merged.
type ModelExtractor struct {
	gateway *Gateway
}

// NewModelExtractor creates a model-assisted extractor
func NewModelExtractor(gateway *Gateway) *ModelExtractor {
	return &ModelExtractor{gateway: gateway}
}

// Name identifies the implementation in logs and configuration
func (e *ModelExtractor) Name() string {
	return "model"
}

// Extract proposes facts found in the exchange via a strict JSON
// completion
func (e *ModelExtractor) Extract(ctx context.Context, utterance, reply string, existing assessment.ClinicalFactRecord) (assessment.Extraction, error) {
	messages := []ChatMessage{
		{Role: ChatRoleSystem, Content: extractionSystemPrompt},
		{Role: ChatRoleUser, Content: buildExtractionInput(utterance, reply, existing)},
	}

	raw, err := e.gateway.CompleteJSON(ctx, messages, "clinical_fact_extraction", extractionSchema)
	if err != nil {
		return assessment.Extraction{}, err
	}

	ex, err := assessment.DecodeExtraction(raw)
	if err != nil {
		return assessment.Extraction{}, fmt.Errorf("model extraction rejected: %w", err)
	}
	return ex, nil
}

// buildExtractionInput renders the current fact state and the exchange
func buildExtractionInput(utterance, reply string, existing assessment.ClinicalFactRecord) string {
	var b strings.Builder

	b.WriteString("Current state:\n")
	for _, key := range assessment.SchemaKeys() {
		value, _ := existing.Get(key)
		b.WriteString("- ")
		b.WriteString(string(key))
		b.WriteString(": ")
		if value.State != assessment.FactDefinite {
			b.WriteString("unknown")
		} else if kind, _ := assessment.KindOf(key); kind == assessment.FactKindInt {
			b.WriteString(strconv.Itoa(value.IntValue))
		} else {
			b.WriteString(strconv.FormatBool(value.BoolValue))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nAssistant asked:\n")
	b.WriteString(reply)
	b.WriteString("\n\nSubject said:\n")
	b.WriteString(utterance)
	return b.String()
}

// FallbackExtractor runs a primary extractor and falls back to a
// deterministic secondary when the primary fails or the gateway is
// degraded. The interview never loses extraction entirely.
type FallbackExtractor struct {
	primary  assessment.Extractor
	fallback assessment.Extractor
	logger   *zap.Logger
}

// NewFallbackExtractor composes a primary extractor with a fallback
func NewFallbackExtractor(primary, fallback assessment.Extractor, logger *zap.Logger) *FallbackExtractor {
	return &FallbackExtractor{primary: primary, fallback: fallback, logger: logger}
}

// Name identifies the implementation in logs and configuration
func (e *FallbackExtractor) Name() string {
	return e.primary.Name() + "_with_" + e.fallback.Name() + "_fallback"
}

// Extract tries the primary extractor and degrades to the fallback
func (e *FallbackExtractor) Extract(ctx context.Context, utterance, reply string, existing assessment.ClinicalFactRecord) (assessment.Extraction, error) {
	ex, err := e.primary.Extract(ctx, utterance, reply, existing)
	if err == nil {
		return ex, nil
	}

	e.logger.Warn("fact extraction fell back",
		zap.String("primary", e.primary.Name()),
		zap.String("fallback", e.fallback.Name()),
		zap.Error(err))

	return e.fallback.Extract(ctx, utterance, reply, existing)
}

// Compile-time interface checks
var (
	_ assessment.Extractor = (*ModelExtractor)(nil)
	_ assessment.Extractor = (*FallbackExtractor)(nil)
)
