package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/genintake/backend/internal/application/interview"
	"github.com/genintake/backend/internal/domain/assessment"
)

// defaultVerdictTTL bounds how long a finalized verdict stays in the
// quick-access cache; the session store remains authoritative after
// that.
const defaultVerdictTTL = 24 * time.Hour

// RedisVerdictCache keeps finalized verdicts in Redis so assessment
// reads skip the session store on the hot path.
type RedisVerdictCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisVerdictCache builds a cache on a client owned by the caller.
// A non-positive ttl falls back to defaultVerdictTTL.
func NewRedisVerdictCache(client *redis.Client, ttl time.Duration) *RedisVerdictCache {
	if ttl <= 0 {
		ttl = defaultVerdictTTL
	}
	return &RedisVerdictCache{client: client, ttl: ttl}
}

// Set stores a verdict under its session ID with the configured TTL.
func (c *RedisVerdictCache) Set(ctx context.Context, sessionID uuid.UUID, verdict *assessment.AssessmentVerdict) error {
	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	if err := c.client.Set(ctx, verdictKeyPrefix+sessionID.String(), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache verdict: %w", err)
	}
	return nil
}

// Get reads the cached verdict for a session. A miss returns nil
// without error; callers fall through to the session store.
func (c *RedisVerdictCache) Get(ctx context.Context, sessionID uuid.UUID) (*assessment.AssessmentVerdict, error) {
	payload, err := c.client.Get(ctx, verdictKeyPrefix+sessionID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cached verdict: %w", err)
	}

	var verdict assessment.AssessmentVerdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		return nil, fmt.Errorf("unmarshal cached verdict: %w", err)
	}
	return &verdict, nil
}

var _ interview.VerdictCache = (*RedisVerdictCache)(nil)
