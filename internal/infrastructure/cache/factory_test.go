package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/genintake/backend/internal/infrastructure/config"
)

// unreachableRedis points at a port nothing listens on, so the dial
// fails fast with a connection refusal instead of a timeout.
func unreachableRedis() config.RedisConfig {
	return config.RedisConfig{Host: "127.0.0.1", Port: 1}
}

func TestStoreFactory_FallsBackWhenRedisUnavailable(t *testing.T) {
	factory := NewStoreFactory(unreachableRedis(),
		WithLogger(zaptest.NewLogger(t)),
		WithInMemoryFallback(true),
	)
	defer factory.Close()

	lock, err := factory.CreateTurnLock()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryTurnLock{}, lock)

	verdicts, err := factory.CreateVerdictCache(time.Hour)
	require.NoError(t, err)
	assert.IsType(t, &InMemoryVerdictCache{}, verdicts)

	idempotency, err := factory.CreateIdempotencyStore()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryIdempotencyStore{}, idempotency)
}

func TestStoreFactory_FallbackDisabledReturnsError(t *testing.T) {
	factory := NewStoreFactory(unreachableRedis(),
		WithLogger(zaptest.NewLogger(t)),
		WithInMemoryFallback(false),
	)
	defer factory.Close()

	_, err := factory.CreateTurnLock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis required")

	_, err = factory.CreateVerdictCache(time.Hour)
	require.Error(t, err)

	_, err = factory.CreateIdempotencyStore()
	require.Error(t, err)
}

func TestStoreFactory_CloseReleasesFallbackStores(t *testing.T) {
	factory := NewStoreFactory(unreachableRedis(),
		WithLogger(zaptest.NewLogger(t)),
	)

	_, err := factory.CreateTurnLock()
	require.NoError(t, err)
	_, err = factory.CreateIdempotencyStore()
	require.NoError(t, err)

	require.NoError(t, factory.Close())
}

func TestStoreFactory_CloseBeforeAnyStore(t *testing.T) {
	factory := NewStoreFactory(unreachableRedis())

	require.NoError(t, factory.Close())
}
