// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// InterviewMetrics provides business metrics for the assessment engine.
// It tracks session lifecycle, turn outcomes and verdict distribution.
type InterviewMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	sessionStartedTotal   *Counter
	sessionCompletedTotal *Counter
	sessionAbandonedTotal *Counter
	turnTotal             *Counter
	modelFallbackTotal    *Counter

	// Histogram metrics
	turnDuration *Histogram

	// Gauge metrics (point-in-time values)
	assessmentCount *Gauge
	corpusChunks    *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data providers for periodic collection
	assessmentProvider AssessmentMetricsProvider
	corpusProvider     CorpusMetricsProvider
}

// AssessmentMetricsProvider provides verdict counts for periodic metrics
// collection. This interface allows the telemetry layer to query the
// analytics store without depending on the assessment domain directly.
type AssessmentMetricsProvider interface {
	// GetAssessmentCountsByCategory returns the number of assessment records per risk category
	GetAssessmentCountsByCategory(ctx context.Context) (map[string]int64, error)
}

// CorpusMetricsProvider provides knowledge corpus sizes for periodic
// metrics collection.
type CorpusMetricsProvider interface {
	// GetChunkCountsBySpecialty returns the number of knowledge chunks per specialty
	GetChunkCountsBySpecialty(ctx context.Context) (map[string]int64, error)
}

// InterviewMetricsConfig holds configuration for interview metrics.
type InterviewMetricsConfig struct {
	Meter              metric.Meter
	Logger             *zap.Logger
	CollectInterval    time.Duration // Default: 5 minutes
	AssessmentProvider AssessmentMetricsProvider
	CorpusProvider     CorpusMetricsProvider
}

// NewInterviewMetrics creates a new InterviewMetrics instance.
func NewInterviewMetrics(cfg InterviewMetricsConfig) (*InterviewMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	im := &InterviewMetrics{
		meter:              cfg.Meter,
		logger:             logger,
		stopChan:           make(chan struct{}),
		assessmentProvider: cfg.AssessmentProvider,
		corpusProvider:     cfg.CorpusProvider,
	}

	// Initialize counter metrics
	var err error

	im.sessionStartedTotal, err = NewCounter(
		cfg.Meter,
		"genintake_session_started_total",
		"Total number of interview sessions started",
		"{sessions}",
	)
	if err != nil {
		return nil, err
	}

	im.sessionCompletedTotal, err = NewCounter(
		cfg.Meter,
		"genintake_session_completed_total",
		"Total number of interview sessions completed with a verdict",
		"{sessions}",
	)
	if err != nil {
		return nil, err
	}

	im.sessionAbandonedTotal, err = NewCounter(
		cfg.Meter,
		"genintake_session_abandoned_total",
		"Total number of interview sessions abandoned",
		"{sessions}",
	)
	if err != nil {
		return nil, err
	}

	im.turnTotal, err = NewCounter(
		cfg.Meter,
		"genintake_turn_total",
		"Total number of interview turns processed",
		"{turns}",
	)
	if err != nil {
		return nil, err
	}

	im.modelFallbackTotal, err = NewCounter(
		cfg.Meter,
		"genintake_model_fallback_total",
		"Total number of turns answered with scripted questions instead of the model",
		"{turns}",
	)
	if err != nil {
		return nil, err
	}

	im.turnDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "genintake_turn_duration_seconds",
		Description: "Interview turn processing duration",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Gauge metrics
	im.assessmentCount, err = NewGauge(
		cfg.Meter,
		"genintake_assessment_count",
		"Number of assessment records per risk category",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	im.corpusChunks, err = NewGauge(
		cfg.Meter,
		"genintake_knowledge_chunk_count",
		"Number of knowledge chunks per specialty corpus",
		"{chunks}",
	)
	if err != nil {
		return nil, err
	}

	return im, nil
}

// =============================================================================
// Session Metrics
// =============================================================================

// RecordSessionStarted records an interview session being opened.
func (im *InterviewMetrics) RecordSessionStarted(ctx context.Context, specialty string) {
	im.sessionStartedTotal.Inc(ctx,
		AttrSpecialty.String(specialty),
	)
}

// RecordSessionCompleted records a session reaching a conclusive verdict.
func (im *InterviewMetrics) RecordSessionCompleted(ctx context.Context, specialty, riskCategory string, meetsCriteria bool) {
	im.sessionCompletedTotal.Inc(ctx,
		AttrSpecialty.String(specialty),
		AttrRiskCategory.String(riskCategory),
		AttrMeetsCriteria.Bool(meetsCriteria),
	)
}

// RecordSessionAbandoned records a session terminated without a conclusive interview.
func (im *InterviewMetrics) RecordSessionAbandoned(ctx context.Context, specialty, reason string) {
	im.sessionAbandonedTotal.Inc(ctx,
		AttrSpecialty.String(specialty),
		AttrAbandonReason.String(reason),
	)
}

// =============================================================================
// Turn Metrics
// =============================================================================

// RecordTurn records one processed turn. Degraded turns are those answered
// with scripted questions because the model was unavailable.
func (im *InterviewMetrics) RecordTurn(ctx context.Context, specialty string, degraded bool, duration time.Duration) {
	im.turnTotal.Inc(ctx,
		AttrSpecialty.String(specialty),
		AttrDegraded.Bool(degraded),
	)
	im.turnDuration.RecordDuration(ctx, duration,
		AttrSpecialty.String(specialty),
		AttrDegraded.Bool(degraded),
	)
}

// RecordModelFallback records the model being bypassed for a turn.
func (im *InterviewMetrics) RecordModelFallback(ctx context.Context, specialty, reason string) {
	im.modelFallbackTotal.Inc(ctx,
		AttrSpecialty.String(specialty),
		AttrFallbackReason.String(reason),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects assessment and corpus gauges every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (im *InterviewMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	im.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go im.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (im *InterviewMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	im.collectGauges(ctx)

	for {
		select {
		case <-im.stopChan:
			im.logger.Info("Stopping periodic interview metrics collection")
			return
		case <-ctx.Done():
			im.logger.Info("Context cancelled, stopping periodic interview metrics collection")
			return
		case <-ticker.C:
			im.collectGauges(ctx)
		}
	}
}

// collectGauges collects the point-in-time gauges from the providers.
func (im *InterviewMetrics) collectGauges(ctx context.Context) {
	if im.assessmentProvider != nil {
		counts, err := im.assessmentProvider.GetAssessmentCountsByCategory(ctx)
		if err != nil {
			im.logger.Warn("Failed to collect assessment counts", zap.Error(err))
		} else {
			for category, count := range counts {
				im.assessmentCount.Record(ctx, count,
					AttrRiskCategory.String(category),
				)
			}
		}
	}

	if im.corpusProvider != nil {
		counts, err := im.corpusProvider.GetChunkCountsBySpecialty(ctx)
		if err != nil {
			im.logger.Warn("Failed to collect corpus sizes", zap.Error(err))
		} else {
			for specialty, count := range counts {
				im.corpusChunks.Record(ctx, count,
					AttrSpecialty.String(specialty),
				)
			}
		}
	}
}

// Stop stops the periodic collection.
func (im *InterviewMetrics) Stop() {
	im.stopOnce.Do(func() {
		close(im.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewInterviewMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
