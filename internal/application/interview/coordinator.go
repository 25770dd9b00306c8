package interview

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/genintake/backend/internal/domain/assessment"
	"github.com/genintake/backend/internal/domain/shared"
)

// VerdictCache is the quick-access store finalized verdicts are copied
// into for cheap assessment reads. Get returns nil without error on a
// miss; the session store stays authoritative.
type VerdictCache interface {
	Set(ctx context.Context, sessionID uuid.UUID, verdict *assessment.AssessmentVerdict) error
	Get(ctx context.Context, sessionID uuid.UUID) (*assessment.AssessmentVerdict, error)
}

// PersistResult reports what one verdict persistence accomplished. The
// session write is the authoritative one; the rest is partial success.
type PersistResult struct {
	SessionStored   bool `json:"session_stored"`
	AnalyticsStored bool `json:"analytics_stored"`
	CacheStored     bool `json:"cache_stored"`
}

// Coordinator owns the dual-store write path: the session aggregate write
// a turn depends on, and the analytics projection that must never fail a
// turn. The two writes are separate operations against separate stores,
// never one transaction.
type Coordinator struct {
	sessions  assessment.SessionRepository
	records   assessment.AssessmentRecordRepository
	cache     VerdictCache
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewCoordinator creates a persistence coordinator. Cache and publisher
// are optional; nil disables them.
func NewCoordinator(
	sessions assessment.SessionRepository,
	records assessment.AssessmentRecordRepository,
	cache VerdictCache,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		sessions:  sessions,
		records:   records,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateSession persists a newly started session
func (c *Coordinator) CreateSession(ctx context.Context, session *assessment.ChatSession) error {
	if err := c.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	c.publishEvents(ctx, session)
	return nil
}

// CommitTurn writes the session aggregate with everything the turn
// changed: transcript, facts, status and the embedded verdict. This write
// is mandatory; when it fails the whole turn fails and nothing from the
// turn may be treated as committed.
func (c *Coordinator) CommitTurn(ctx context.Context, session *assessment.ChatSession) error {
	if err := c.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("commit turn for session %s: %w", session.ID, err)
	}
	c.publishEvents(ctx, session)
	return nil
}

// ProjectVerdict copies a finalized verdict into the analytics store and
// the quick-access cache. Both writes are tolerated failures: the session
// copy already committed, so a miss here is logged partial success and
// heals on the next idempotent upsert for the same session.
func (c *Coordinator) ProjectVerdict(ctx context.Context, session *assessment.ChatSession, verdict *assessment.AssessmentVerdict) PersistResult {
	result := PersistResult{SessionStored: true}

	record, err := assessment.NewAssessmentRecord(session, verdict)
	if err != nil {
		c.logger.Error("assessment record projection failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(err))
		return result
	}
	if err := c.records.Upsert(ctx, record); err != nil {
		c.logger.Error("analytics record write failed, session copy remains authoritative",
			zap.String("session_id", session.ID.String()),
			zap.Error(err))
	} else {
		result.AnalyticsStored = true
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, session.ID, verdict); err != nil {
			c.logger.Warn("verdict cache write failed",
				zap.String("session_id", session.ID.String()),
				zap.Error(err))
		} else {
			result.CacheStored = true
		}
	}

	return result
}

// CachedVerdict reads the quick-access copy. A miss or a cache failure
// falls through to the session store.
func (c *Coordinator) CachedVerdict(ctx context.Context, sessionID uuid.UUID) (*assessment.AssessmentVerdict, bool) {
	if c.cache == nil {
		return nil, false
	}
	verdict, err := c.cache.Get(ctx, sessionID)
	if err != nil {
		c.logger.Warn("verdict cache read failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		return nil, false
	}
	return verdict, verdict != nil
}

// publishEvents drains the session's pending domain events. Publishing is
// observability, not state; failures are logged and never fail the write
// that produced the events.
func (c *Coordinator) publishEvents(ctx context.Context, session *assessment.ChatSession) {
	events := session.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	session.ClearDomainEvents()
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, events...); err != nil {
		c.logger.Warn("domain event publish failed",
			zap.String("session_id", session.ID.String()),
			zap.Error(err))
	}
}
