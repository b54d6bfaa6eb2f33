package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

const (
	keyPrefix  = "concierge:conversation:"
	defaultTTL = 24 * time.Hour
	maxRetries = 5
)

// RedisStore keeps each conversation as one JSON value with a sliding TTL.
// Appends use WATCH/MULTI/EXEC so concurrent writers never lose messages.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return keyPrefix + id
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, conv models.Conversation) error {
	val, err := json.Marshal(&Record{Conversation: conv, Messages: []models.Message{}, Version: 1})
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.key(conv.ID), val, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, conv.ID)
	}
	return nil
}

// Get implements Store. Reads refresh the TTL.
func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	val, err := s.client.GetEx(ctx, s.key(id), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	var r Record
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return &r, nil
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, id string, msgs ...models.Message) (*Record, error) {
	key := s.key(id)
	var out *Record
	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var r Record
		if err := json.Unmarshal(val, &r); err != nil {
			return fmt.Errorf("decode conversation %s: %w", id, err)
		}
		touch(&r, msgs)
		newVal, err := json.Marshal(&r)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		if err == nil {
			out = &r
		}
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("append to conversation: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("append to conversation %s: too much contention", id)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// ListIdle implements Store. Redis expires idle conversations itself.
func (s *RedisStore) ListIdle(context.Context, time.Time) ([]string, error) {
	return nil, nil
}
