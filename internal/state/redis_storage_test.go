package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisStorage_SetAndGet(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())

	ctx := context.Background()
	record := &Record{
		UserID:       123,
		CurrentState: StateMenu,
	}

	err := storage.SetState(ctx, record.UserID, record)
	assert.NoError(t, err)

	result, err := storage.GetState(ctx, record.UserID)
	assert.NoError(t, err)
	if assert.NotNil(t, result) {
		assert.Equal(t, record.UserID, result.UserID)
		assert.Equal(t, record.CurrentState, result.CurrentState)
		assert.False(t, result.UpdatedAt.IsZero())
	}
}

func TestRedisStorage_NoExpiration(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())

	ctx := context.Background()
	err := storage.SetState(ctx, 321, &Record{UserID: 321, CurrentState: StateAwaitingEmail})
	assert.NoError(t, err)

	// Conversation state must survive until overwritten, never expire.
	ttl, err := client.TTL(ctx, conversationKey(321)).Result()
	assert.NoError(t, err)
	assert.Negative(t, ttl)
}

func TestRedisStorage_GetNotFound(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())

	record, err := storage.GetState(context.Background(), 999)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_ClearState(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())

	ctx := context.Background()
	record := &Record{
		UserID:       456,
		CurrentState: StateCart,
	}

	err := storage.SetState(ctx, record.UserID, record)
	assert.NoError(t, err)

	err = storage.ClearState(ctx, record.UserID)
	assert.NoError(t, err)

	result, err := storage.GetState(ctx, record.UserID)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_GetAllStates(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger())

	ctx := context.Background()
	assert.NoError(t, storage.SetState(ctx, 1, &Record{UserID: 1, CurrentState: StateMenu}))
	assert.NoError(t, storage.SetState(ctx, 2, &Record{UserID: 2, CurrentState: StateCart}))

	records, err := storage.GetAllStates(ctx)
	assert.NoError(t, err)
	assert.Len(t, records, 2)

	byUser := make(map[int64]State, len(records))
	for _, record := range records {
		byUser[record.UserID] = record.CurrentState
	}
	assert.Equal(t, StateMenu, byUser[1])
	assert.Equal(t, StateCart, byUser[2])
}
