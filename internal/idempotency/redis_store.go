package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the per-key processing markers.
type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	IsCompleted(ctx context.Context, key string) (bool, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string) error
}

// RedisStore keeps markers in Redis with TTLs, so old update keys expire on
// their own.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStore builds a Redis-backed Store.
func NewRedisStore(client *redis.Client, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

// Lock claims the processing slot for the key.
func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, lockKey(key), 1, lockTTL).Result()
	if err != nil {
		s.log.Error("failed to acquire idempotency lock", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

// IsCompleted reports whether the key already finished processing.
func (s *RedisStore) IsCompleted(ctx context.Context, key string) (bool, error) {
	err := s.client.Get(ctx, doneKey(key)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}

		s.log.Error("failed to fetch idempotency marker", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return true, nil
}

// MarkCompleted records the key as done for the given TTL.
func (s *RedisStore) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, doneKey(key), 1, ttl).Err(); err != nil {
		s.log.Error("failed to store idempotency marker", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

// ReleaseLock frees the processing slot.
func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockKey(key)).Err(); err != nil {
		s.log.Error("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func doneKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

func lockKey(key string) string {
	return fmt.Sprintf("idempotency:%s:lock", key)
}
