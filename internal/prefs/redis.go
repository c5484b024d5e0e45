package prefs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "vocalvent:prefs"

// RedisBackend stores preferences in Redis. A zero TTL keeps keys forever,
// matching the never-deleted lifecycle of settings.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend creates a Redis-backed preference backend.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	if client == nil {
		panic("prefs: redis client cannot be nil")
	}
	return &RedisBackend{client: client, ttl: ttl}
}

// Load implements Backend.
func (b *RedisBackend) Load(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, redisKey(namespace, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, true, nil
}

// Save implements Backend.
func (b *RedisBackend) Save(ctx context.Context, namespace, key string, value []byte) error {
	if err := b.client.Set(ctx, redisKey(namespace, key), value, b.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func redisKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, namespace, key)
}

var _ Backend = (*RedisBackend)(nil)
