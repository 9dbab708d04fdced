package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "leadflow:idempotency:"

// Redis is a shared Store backed by a Redis instance. It fails open:
// when Redis is unreachable a key is reported as unseen, so an outage
// degrades to duplicate processing rather than dropped webhooks.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = (*Redis)(nil)

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		zap.L().Warn("dedup: redis check failed, allowing processing",
			zap.String("key", key),
			zap.Error(err))
		return false, nil
	}
	return n > 0, nil
}

func (r *Redis) Mark(ctx context.Context, key string) error {
	if err := r.rdb.Set(ctx, redisKeyPrefix+key, 1, r.ttl).Err(); err != nil {
		zap.L().Warn("dedup: redis mark failed",
			zap.String("key", key),
			zap.Error(err))
	}
	return nil
}
