package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/systmms/keyshift/pkg/migrate"
)

const redisKeyPrefix = "keyshift:sess:"

// RedisStore persists sessions in Redis as JSON-encoded records with the
// TTL carried by the key itself.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a store over an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Get returns the session record for id, or migrate.ErrSessionNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (migrate.Record, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, migrate.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var rec migrate.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt session record for %s: %w", id, err)
	}
	return rec, nil
}

// Set stores the record under id with the given TTL. A zero ttl persists
// the key without expiry.
func (s *RedisStore) Set(ctx context.Context, id string, rec migrate.Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Destroy removes the session. Destroying an absent session is not an error.
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Touch extends the session's TTL.
func (s *RedisStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, redisKey(id), ttl).Result()
	if err != nil {
		return fmt.Errorf("redis expire failed: %w", err)
	}
	if !ok {
		return migrate.ErrSessionNotFound
	}
	return nil
}

// Regenerate re-issues the session under a fresh identifier, preserving the
// record and remaining TTL.
func (s *RedisStore) Regenerate(ctx context.Context, oldID string) (string, error) {
	oldKey := redisKey(oldID)

	data, err := s.client.Get(ctx, oldKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", migrate.ErrSessionNotFound
		}
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	ttl, err := s.client.TTL(ctx, oldKey).Result()
	if err != nil {
		return "", fmt.Errorf("redis ttl failed: %w", err)
	}
	if ttl < 0 {
		// -1 means no expiry; Set treats zero the same way.
		ttl = 0
	}

	newID := uuid.NewString()
	if err := s.client.Set(ctx, redisKey(newID), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set failed: %w", err)
	}
	if err := s.client.Del(ctx, oldKey).Err(); err != nil {
		return "", fmt.Errorf("redis del failed: %w", err)
	}
	return newID, nil
}
