package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which event IDs have been handled so a
// redelivered event runs its side effects at most once per TTL window.
type IdempotencyStore interface {
	// MarkProcessed records an event ID if it is not already present.
	// The bool reports whether this call was the first sighting. The
	// check and the write are one atomic step; two concurrent calls
	// for the same ID cannot both see true.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether an event ID is currently marked.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	Close() error
}

// IdempotencyConfig controls duplicate suppression on event handlers.
type IdempotencyConfig struct {
	// TTL is how long a processed event ID stays marked. After it
	// expires the same ID would be handled again.
	TTL time.Duration

	// Enabled turns the duplicate check off entirely when false.
	Enabled bool
}

// DefaultIdempotencyConfig marks events for a day, which outlives any
// plausible redelivery of an in-process bus.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
