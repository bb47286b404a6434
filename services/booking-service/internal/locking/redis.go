package locking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client the locker needs.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Deletes the key only while it still carries our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker serializes bookings across every instance sharing the Redis.
type RedisLocker struct {
	rdb    RedisClient
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(rdb RedisClient, ttl time.Duration, prefix string) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "slotlock"
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	k := l.prefix + ":" + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return nil, ErrSlotLocked
	}

	return func(ctx context.Context) error {
		if err := l.rdb.Eval(ctx, releaseScript, []string{k}, token).Err(); err != nil {
			return fmt.Errorf("release slot lock: %w", err)
		}
		return nil
	}, nil
}
