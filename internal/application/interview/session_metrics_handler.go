package interview

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/genintake/backend/internal/domain/assessment"
	"github.com/genintake/backend/internal/domain/shared"
	"github.com/genintake/backend/internal/infrastructure/telemetry"
)

// SessionMetricsHandler handles session lifecycle events and records
// them as business metrics. It subscribes to started, completed and
// abandoned events so the metrics pipeline stays out of the turn path.
type SessionMetricsHandler struct {
	logger  *zap.Logger
	metrics *telemetry.InterviewMetrics
}

// NewSessionMetricsHandler creates a new handler for session lifecycle events
func NewSessionMetricsHandler(metrics *telemetry.InterviewMetrics, logger *zap.Logger) *SessionMetricsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionMetricsHandler{
		logger:  logger,
		metrics: metrics,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *SessionMetricsHandler) EventTypes() []string {
	return []string{
		assessment.EventTypeSessionStarted,
		assessment.EventTypeSessionCompleted,
		assessment.EventTypeSessionAbandoned,
	}
}

// Handle records the lifecycle event on the interview metrics
func (h *SessionMetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch evt := event.(type) {
	case *assessment.SessionStartedEvent:
		h.metrics.RecordSessionStarted(ctx, evt.Specialty)

	case *assessment.SessionCompletedEvent:
		h.metrics.RecordSessionCompleted(ctx, evt.Specialty, evt.RiskCategory, evt.MeetsCriteria)
		h.logger.Info("session completed",
			zap.String("session_id", evt.SessionID.String()),
			zap.String("specialty", evt.Specialty),
			zap.Bool("meets_criteria", evt.MeetsCriteria),
			zap.String("risk_category", evt.RiskCategory),
			zap.Int("turn_count", evt.TurnCount),
		)

	case *assessment.SessionAbandonedEvent:
		h.metrics.RecordSessionAbandoned(ctx, evt.Specialty, evt.Reason)
		h.logger.Info("session abandoned",
			zap.String("session_id", evt.SessionID.String()),
			zap.String("specialty", evt.Specialty),
			zap.String("reason", evt.Reason),
			zap.Int("turn_count", evt.TurnCount),
			zap.Bool("had_verdict", evt.HadVerdict),
		)

	default:
		h.logger.Error("unexpected event type",
			zap.String("event_type", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return nil
}

// Ensure SessionMetricsHandler implements shared.EventHandler
var _ shared.EventHandler = (*SessionMetricsHandler)(nil)
