package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genintake/backend/internal/infrastructure/config"
)

// Key prefixes keep the three coordination stores apart in a shared
// Redis database.
const (
	turnLockKeyPrefix    = "interview:turnlock:"
	verdictKeyPrefix     = "interview:verdict:"
	idempotencyKeyPrefix = "event:idempotency:"
)

const redisDialTimeout = 5 * time.Second

// dialRedis connects and verifies the connection before any store
// depends on it. The caller owns the returned client; the stores built
// on top of it never close it.
func dialRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
