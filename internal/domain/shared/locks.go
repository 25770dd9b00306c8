package shared

import (
	"context"
	"time"
)

// TurnLock serializes turn processing per session. A session holds the lock
// for the duration of one turn; concurrent acquisition attempts fail fast.
type TurnLock interface {
	// Acquire obtains the lock for a session with a TTL guarding against
	// crashed holders. Returns true if the lock was obtained, false if
	// another turn already holds it.
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)

	// Release frees the lock for a session
	Release(ctx context.Context, sessionID string) error

	// Close closes the lock store and releases resources
	Close() error
}
