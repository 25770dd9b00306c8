package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryTurnLock_Acquire(t *testing.T) {
	lock := NewInMemoryTurnLock()
	defer lock.Close()

	ctx := context.Background()

	t.Run("acquires a free lock", func(t *testing.T) {
		acquired, err := lock.Acquire(ctx, "session-1", 1*time.Hour)
		require.NoError(t, err)
		assert.True(t, acquired, "free lock should be acquired")
	})

	t.Run("returns false while held", func(t *testing.T) {
		acquired, err := lock.Acquire(ctx, "session-2", 1*time.Hour)
		require.NoError(t, err)
		assert.True(t, acquired)

		// Second attempt while held
		acquired, err = lock.Acquire(ctx, "session-2", 1*time.Hour)
		require.NoError(t, err)
		assert.False(t, acquired, "held lock should not be reacquired")
	})

	t.Run("independent sessions do not contend", func(t *testing.T) {
		acquired, err := lock.Acquire(ctx, "session-3", 1*time.Hour)
		require.NoError(t, err)
		assert.True(t, acquired)

		acquired, err = lock.Acquire(ctx, "session-4", 1*time.Hour)
		require.NoError(t, err)
		assert.True(t, acquired, "distinct sessions hold distinct locks")
	})

	t.Run("allows acquisition after TTL expiry", func(t *testing.T) {
		acquired, err := lock.Acquire(ctx, "session-5", 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, acquired)

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		// A crashed holder's lock is reclaimable after the TTL
		acquired, err = lock.Acquire(ctx, "session-5", 1*time.Hour)
		require.NoError(t, err)
		assert.True(t, acquired, "expired lock should be reclaimable")
	})
}

func TestInMemoryTurnLock_Release(t *testing.T) {
	lock := NewInMemoryTurnLock()
	defer lock.Close()

	ctx := context.Background()

	t.Run("released lock can be reacquired", func(t *testing.T) {
		acquired, err := lock.Acquire(ctx, "session-1", 1*time.Hour)
		require.NoError(t, err)
		assert.True(t, acquired)

		err = lock.Release(ctx, "session-1")
		require.NoError(t, err)

		acquired, err = lock.Acquire(ctx, "session-1", 1*time.Hour)
		require.NoError(t, err)
		assert.True(t, acquired, "released lock should be acquirable")
	})

	t.Run("releasing an unheld lock is a no-op", func(t *testing.T) {
		err := lock.Release(ctx, "never-acquired")
		assert.NoError(t, err)
	})
}

func TestInMemoryTurnLock_DropsExpired(t *testing.T) {
	lock := NewInMemoryTurnLock()
	defer lock.Close()

	ctx := context.Background()

	// Hold locks with short TTL
	lock.Acquire(ctx, "short-lived-1", 10*time.Millisecond)
	lock.Acquire(ctx, "short-lived-2", 10*time.Millisecond)
	lock.Acquire(ctx, "long-lived", 1*time.Hour)

	assert.Equal(t, 3, lock.Size())

	// Wait for short-lived locks to expire
	time.Sleep(20 * time.Millisecond)

	lock.dropExpired()

	// Only the long-lived lock should remain
	assert.Equal(t, 1, lock.Size())

	acquired, err := lock.Acquire(ctx, "long-lived", 1*time.Hour)
	require.NoError(t, err)
	assert.False(t, acquired, "unexpired lock survives the janitor pass")
}

func TestInMemoryTurnLock_ConcurrentAccess(t *testing.T) {
	lock := NewInMemoryTurnLock()
	defer lock.Close()

	ctx := context.Background()
	const numGoroutines = 100
	const sessionID = "contended-session"

	// Channel to collect results
	results := make(chan bool, numGoroutines)

	// Launch concurrent goroutines racing for the same session's lock
	for i := 0; i < numGoroutines; i++ {
		go func() {
			acquired, err := lock.Acquire(ctx, sessionID, 1*time.Hour)
			if err != nil {
				results <- false
			} else {
				results <- acquired
			}
		}()
	}

	// Collect results
	winners := 0
	losers := 0
	for i := 0; i < numGoroutines; i++ {
		if <-results {
			winners++
		} else {
			losers++
		}
	}

	// Exactly one goroutine should have won the lock
	assert.Equal(t, 1, winners, "exactly one goroutine should acquire the lock")
	assert.Equal(t, numGoroutines-1, losers, "all others should be turned away")
}

func TestInMemoryTurnLock_Close(t *testing.T) {
	lock := NewInMemoryTurnLock()

	// Close should not panic and should return nil
	err := lock.Close()
	assert.NoError(t, err)

	// Multiple closes should be safe
	err = lock.Close()
	assert.NoError(t, err)
}
