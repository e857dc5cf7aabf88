package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDeduper marks event IDs in Redis with SETNX so that an event
// redelivered by the broker is dispatched once.
type RedisDeduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, ttl: ttl, prefix: "keepstreak:dedup:", logger: logger}
}

func (d *RedisDeduper) key(eventID string) string { return d.prefix + eventID }

// AcquireOnce returns true the first time eventID is seen. When Redis is
// unreachable it allows processing.
func (d *RedisDeduper) AcquireOnce(ctx context.Context, eventID string) bool {
	ok, err := d.rdb.SetNX(ctx, d.key(eventID), 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("redis dedup check failed, allowing processing",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return true
	}
	return ok
}

// Release deletes the mark for eventID.
func (d *RedisDeduper) Release(ctx context.Context, eventID string) {
	if err := d.rdb.Del(ctx, d.key(eventID)).Err(); err != nil {
		d.logger.Warn("redis dedup release failed",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}
