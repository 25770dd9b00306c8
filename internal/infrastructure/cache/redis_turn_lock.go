package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genintake/backend/internal/domain/shared"
)

// RedisTurnLock serializes turn processing across instances. All
// replicas see the same lock keys, so exactly one of them runs a given
// session's turn at a time.
type RedisTurnLock struct {
	client *redis.Client
}

// NewRedisTurnLock builds a lock on a client owned by the caller.
func NewRedisTurnLock(client *redis.Client) *RedisTurnLock {
	return &RedisTurnLock{client: client}
}

// Acquire takes the per-session lock via SET NX, so exactly one
// contender wins. The TTL frees locks left behind by crashed holders.
func (l *RedisTurnLock) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, turnLockKeyPrefix+sessionID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire turn lock: %w", err)
	}
	return ok, nil
}

// Release frees the lock for a session.
func (l *RedisTurnLock) Release(ctx context.Context, sessionID string) error {
	if err := l.client.Del(ctx, turnLockKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("release turn lock: %w", err)
	}
	return nil
}

// Close satisfies TurnLock. The shared client belongs to the store
// factory and outlives any single store.
func (l *RedisTurnLock) Close() error {
	return nil
}

var _ shared.TurnLock = (*RedisTurnLock)(nil)
