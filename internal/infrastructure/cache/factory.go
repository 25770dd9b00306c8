package cache

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/genintake/backend/internal/application/interview"
	"github.com/genintake/backend/internal/domain/shared"
	"github.com/genintake/backend/internal/infrastructure/config"
)

// StoreFactory creates the interview runtime stores. Redis is dialed
// once and the connection is shared by every Redis-backed store; when
// the dial fails, single-instance deployments may fall back to the
// in-memory variants.
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	dialOnce sync.Once
	client   *redis.Client
	dialErr  error

	closers []io.Closer
}

// StoreFactoryOption configures the factory.
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory.
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether the factory falls back to
// in-memory stores when Redis is unavailable. The fallback is on by
// default; multi-instance deployments should turn it off because the
// in-memory stores cannot coordinate across instances.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a factory. Nothing is dialed until the first
// store is requested.
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// redisClient dials Redis on first use and reuses the outcome, so one
// unreachable Redis produces one consistent set of fallback stores
// instead of a per-store coin flip.
func (f *StoreFactory) redisClient() (*redis.Client, error) {
	f.dialOnce.Do(func() {
		f.client, f.dialErr = dialRedis(f.redisConfig)
	})
	return f.client, f.dialErr
}

// CreateTurnLock creates the per-session turn lock.
func (f *StoreFactory) CreateTurnLock() (shared.TurnLock, error) {
	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis turn lock")
		return NewRedisTurnLock(client), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for turn locks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory turn lock. "+
		"Concurrent turns on the same session are only rejected within this instance.",
		zap.Error(err),
	)
	lock := NewInMemoryTurnLock()
	f.closers = append(f.closers, lock)
	return lock, nil
}

// CreateVerdictCache creates the completed-verdict read cache.
func (f *StoreFactory) CreateVerdictCache(ttl time.Duration) (interview.VerdictCache, error) {
	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis verdict cache")
		return NewRedisVerdictCache(client, ttl), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for verdict cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory verdict cache",
		zap.Error(err),
	)
	cache := NewInMemoryVerdictCache(ttl)
	f.closers = append(f.closers, cache)
	return cache, nil
}

// CreateIdempotencyStore creates the event deduplication store.
func (f *StoreFactory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Events redelivered to another instance would be processed again.",
		zap.Error(err),
	)
	store := NewInMemoryIdempotencyStore()
	f.closers = append(f.closers, store)
	return store, nil
}

// Close releases everything the factory handed out: janitor goroutines
// on in-memory stores and the shared Redis client. Stores must not be
// used afterwards.
func (f *StoreFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil

	if f.client != nil {
		if err := f.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		f.client = nil
	}
	return firstErr
}
