package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) Manager {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewManager(NewRedisStore(client, log), log)
}

func TestManagerExecutesOnce(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	calls := 0
	fn := func(ctx context.Context) error {
		calls++
		return nil
	}

	result, err := m.Execute(ctx, "update:1", time.Hour, fn)
	require.NoError(t, err)
	assert.True(t, result.Executed)
	assert.Equal(t, 1, calls)

	result, err = m.Execute(ctx, "update:1", time.Hour, fn)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, 1, calls)
}

func TestManagerReleasesKeyAfterFailure(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := m.Execute(ctx, "update:2", time.Hour, func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	result, err := m.Execute(ctx, "update:2", time.Hour, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.True(t, result.Executed)
}

func TestManagerDistinctKeysRunIndependently(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	calls := 0
	fn := func(ctx context.Context) error {
		calls++
		return nil
	}

	for _, key := range []string{"update:3", "update:4", "update:5"} {
		result, err := m.Execute(ctx, key, time.Hour, fn)
		require.NoError(t, err)
		assert.True(t, result.Executed)
	}

	assert.Equal(t, 3, calls)
}
