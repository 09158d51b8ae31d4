// Package idempotency deduplicates Telegram updates. The Bot API redelivers
// updates after timeouts, so every routed update is executed at most once per
// update key.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrRequestInProgress signals that another worker is handling the same key.
var ErrRequestInProgress = errors.New("update with this key is already in progress")

// Result reports whether the operation ran or was skipped as a duplicate.
type Result struct {
	Executed  bool
	Duplicate bool
}

// Manager executes an operation at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (*Result, error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

// NewManager builds a Manager on top of the given Store.
func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

// Execute runs fn exactly once for the key. A key that already completed is
// reported as a duplicate without running fn; a key currently being processed
// yields ErrRequestInProgress. When fn fails, the key is released so a retry
// of the same update can run again.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	locked, err := m.store.Lock(ctx, key, 5*time.Minute)
	if err != nil {
		return nil, err
	}

	if !locked {
		done, err := m.store.IsCompleted(ctx, key)
		if err != nil {
			return nil, err
		}

		if done {
			m.log.Debug("duplicate update skipped", slog.String("key", key))
			return &Result{Duplicate: true}, nil
		}

		return nil, ErrRequestInProgress
	}

	if err := fn(ctx); err != nil {
		if releaseErr := m.store.ReleaseLock(ctx, key); releaseErr != nil {
			m.log.Error("failed to release idempotency lock", slog.String("key", key), slog.Any("error", releaseErr))
		}
		return nil, err
	}

	if err := m.store.MarkCompleted(ctx, key, ttl); err != nil {
		return nil, err
	}

	if err := m.store.ReleaseLock(ctx, key); err != nil {
		m.log.Error("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{Executed: true}, nil
}
