package reengage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "concierge:visitor:"
	defaultTTL = 90 * 24 * time.Hour
)

// RedisBackend keeps each visitor profile as a Redis hash. The TTL is
// refreshed on every write.
type RedisBackend struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisBackend creates a Redis-backed profile store.
func NewRedisBackend(client redis.UniversalClient, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisBackend{client: client, ttl: ttl}
}

// Load implements Backend.
func (b *RedisBackend) Load(ctx context.Context, visitorID string) (map[string]string, error) {
	values, err := b.client.HGetAll(ctx, keyPrefix+visitorID).Result()
	if err != nil {
		return nil, fmt.Errorf("load visitor %s: %w", visitorID, err)
	}
	return values, nil
}

// Save implements Backend.
func (b *RedisBackend) Save(ctx context.Context, visitorID, key, value string) error {
	k := keyPrefix + visitorID
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, key, value)
		pipe.Expire(ctx, k, b.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save visitor %s: %w", visitorID, err)
	}
	return nil
}
