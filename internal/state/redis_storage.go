package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	conversationKeyPattern  = "conversation:state:%d"
	conversationScanPattern = "conversation:state:*"
)

// RedisStorage persists conversation records in Redis. Keys carry no TTL:
// a conversation keeps its state until a later transition overwrites it.
type RedisStorage struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedisStorage initializes a Redis-backed Storage implementation.
func NewRedisStorage(client *redis.Client, log *slog.Logger) Storage {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStorage{
		client: client,
		log:    log,
	}
}

// GetState returns the stored record or ErrStateNotFound when absent.
func (s *RedisStorage) GetState(ctx context.Context, userID int64) (*Record, error) {
	key := conversationKey(userID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}

		s.log.Error("failed to get conversation state from redis", "user_id", userID, "error", err)
		return nil, err
	}

	var record Record
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		s.log.Error("failed to decode conversation state", "user_id", userID, "error", err)
		return nil, err
	}

	return &record, nil
}

// SetState saves the provided record without expiration.
func (s *RedisStorage) SetState(ctx context.Context, userID int64, record *Record) error {
	record.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(record)
	if err != nil {
		s.log.Error("failed to encode conversation state", "user_id", userID, "error", err)
		return err
	}

	key := conversationKey(userID)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		s.log.Error("failed to save conversation state in redis", "user_id", userID, "error", err)
		return err
	}

	return nil
}

// ClearState removes the stored record for the given conversation.
func (s *RedisStorage) ClearState(ctx context.Context, userID int64) error {
	key := conversationKey(userID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Error("failed to clear conversation state", "user_id", userID, "error", err)
		return err
	}

	return nil
}

// GetAllStates retrieves every stored conversation record by scanning Redis keys.
func (s *RedisStorage) GetAllStates(ctx context.Context) ([]*Record, error) {
	var (
		cursor uint64
		result []*Record
	)

	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, conversationScanPattern, 100).Result()
		if err != nil {
			s.log.Error("failed to scan conversation states", "error", err)
			return nil, err
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}

				s.log.Error("failed to fetch conversation state", "key", key, "error", err)
				return nil, err
			}

			var record Record
			if err := json.Unmarshal([]byte(data), &record); err != nil {
				s.log.Error("failed to decode conversation state", "key", key, "error", err)
				continue
			}

			copied := record
			result = append(result, &copied)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return result, nil
}

func conversationKey(userID int64) string {
	return fmt.Sprintf(conversationKeyPattern, userID)
}
