package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/genintake/backend/internal/domain/assessment"
)

func modelExtractorWith(client ModelClient) *ModelExtractor {
	breaker := NewConsecutiveBreaker(DefaultBreakerConfig())
	return NewModelExtractor(testGateway(client, breaker, time.Second))
}

// ============================================
// ModelExtractor Tests
// ============================================

func TestModelExtractor_Extract(t *testing.T) {
	client := &fakeModelClient{reply: `{
		"personal_breast_cancer": true,
		"personal_ovarian_cancer": null,
		"breast_cancer_age": 42,
		"subject_age": null,
		"family_breast_cancer_count": null,
		"family_ovarian_cancer_count": null,
		"family_male_breast_cancer": null,
		"ashkenazi_heritage": null,
		"confidence": 0.8
	}`}
	extractor := modelExtractorWith(client)

	ex, err := extractor.Extract(context.Background(), "I was diagnosed with breast cancer at age 42", "I see.", assessment.NewClinicalFactRecord())
	require.NoError(t, err)

	require.NotNil(t, ex.PersonalBreastCancer)
	assert.True(t, *ex.PersonalBreastCancer)
	require.NotNil(t, ex.BreastCancerAge)
	assert.Equal(t, 42, *ex.BreastCancerAge)
	assert.Nil(t, ex.SubjectAge)
	assert.InDelta(t, 0.8, ex.Confidence, 1e-9)

	require.NotNil(t, client.lastFormat)
	assert.Equal(t, "clinical_fact_extraction", client.lastFormat.JSONSchema.Name)
}

func TestModelExtractor_RejectsUnknownKeys(t *testing.T) {
	client := &fakeModelClient{reply: `{"tumor_grade": 3, "confidence": 0.8}`}
	extractor := modelExtractorWith(client)

	_, err := extractor.Extract(context.Background(), "utterance", "reply", assessment.NewClinicalFactRecord())
	assert.Error(t, err)
}

func TestModelExtractor_RejectsOutOfRangeValues(t *testing.T) {
	client := &fakeModelClient{reply: `{"subject_age": 400, "confidence": 0.8}`}
	extractor := modelExtractorWith(client)

	_, err := extractor.Extract(context.Background(), "utterance", "reply", assessment.NewClinicalFactRecord())
	assert.Error(t, err)
}

func TestModelExtractor_PropagatesGatewayErrors(t *testing.T) {
	client := &fakeModelClient{err: errors.New("upstream 500")}
	breaker := NewConsecutiveBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})
	extractor := NewModelExtractor(testGateway(client, breaker, time.Second))

	_, err := extractor.Extract(context.Background(), "utterance", "reply", assessment.NewClinicalFactRecord())
	require.Error(t, err)

	_, err = extractor.Extract(context.Background(), "utterance", "reply", assessment.NewClinicalFactRecord())
	assert.ErrorIs(t, err, ErrDegraded)
}

func TestBuildExtractionInput(t *testing.T) {
	record := assessment.NewClinicalFactRecord()
	record.Merge(assessment.Extraction{
		FamilyBreastCancerCount: intPtrLLM(1),
		Confidence:              0.9,
	}, uuid.New(), 1, time.Now())

	input := buildExtractionInput("My sister had ovarian cancer", "Anyone else affected?", record)

	assert.Contains(t, input, "family_breast_cancer_count: 1")
	assert.Contains(t, input, "personal_breast_cancer: unknown")
	assert.Contains(t, input, "My sister had ovarian cancer")
	assert.Contains(t, input, "Anyone else affected?")
}

func intPtrLLM(n int) *int { return &n }

// ============================================
// FallbackExtractor Tests
// ============================================

type scriptedExtractor struct {
	name string
	ex   assessment.Extraction
	err  error
}

func (s *scriptedExtractor) Name() string { return s.name }

func (s *scriptedExtractor) Extract(context.Context, string, string, assessment.ClinicalFactRecord) (assessment.Extraction, error) {
	return s.ex, s.err
}

func TestFallbackExtractor(t *testing.T) {
	truth := true

	t.Run("uses the primary when it succeeds", func(t *testing.T) {
		primary := &scriptedExtractor{name: "model", ex: assessment.Extraction{PersonalBreastCancer: &truth, Confidence: 0.7}}
		fallback := &scriptedExtractor{name: "pattern"}
		extractor := NewFallbackExtractor(primary, fallback, zap.NewNop())

		ex, err := extractor.Extract(context.Background(), "u", "r", assessment.NewClinicalFactRecord())
		require.NoError(t, err)
		assert.NotNil(t, ex.PersonalBreastCancer)
	})

	t.Run("falls back when the primary is degraded", func(t *testing.T) {
		primary := &scriptedExtractor{name: "model", err: ErrDegraded}
		fallback := &scriptedExtractor{name: "pattern", ex: assessment.Extraction{AshkenaziHeritage: &truth, Confidence: 0.9}}
		extractor := NewFallbackExtractor(primary, fallback, zap.NewNop())

		ex, err := extractor.Extract(context.Background(), "u", "r", assessment.NewClinicalFactRecord())
		require.NoError(t, err)
		assert.NotNil(t, ex.AshkenaziHeritage)
		assert.Nil(t, ex.PersonalBreastCancer)
	})

	t.Run("name reflects the composition", func(t *testing.T) {
		extractor := NewFallbackExtractor(&scriptedExtractor{name: "model"}, &scriptedExtractor{name: "pattern"}, zap.NewNop())
		assert.Equal(t, "model_with_pattern_fallback", extractor.Name())
	})
}

// ============================================
// NewExtractor Tests
// ============================================

func TestNewExtractor(t *testing.T) {
	gw := testGateway(&fakeModelClient{}, NewConsecutiveBreaker(DefaultBreakerConfig()), time.Second)

	t.Run("pattern mode", func(t *testing.T) {
		ex, err := NewExtractor(ExtractorModePattern, gw, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "pattern", ex.Name())
	})

	t.Run("model mode wraps with fallback", func(t *testing.T) {
		ex, err := NewExtractor(ExtractorModeModel, gw, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "model_with_pattern_fallback", ex.Name())
	})

	t.Run("default is model mode", func(t *testing.T) {
		ex, err := NewExtractor("", gw, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "model_with_pattern_fallback", ex.Name())
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := NewExtractor("telepathy", gw, zap.NewNop())
		assert.Error(t, err)
	})
}
