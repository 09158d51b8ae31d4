package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	conversationLockKeyPattern = "conversation:lock:%d"
	lockTTL                    = 10 * time.Second
)

var (
	// ErrInvalidTransition indicates that a requested transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that a conversation record does not exist.
	ErrStateNotFound = errors.New("conversation state not found")
	// ErrConversationBusy indicates that another transition for the same
	// conversation is still in flight.
	ErrConversationBusy = errors.New("conversation transition already in progress")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Machine describes the operations supported by the conversation FSM.
//
// Acquire serializes transitions: the dispatcher holds the conversation lock
// for the whole load / side effect / save sequence, so Current and
// TransitionTo do not lock on their own.
type Machine interface {
	Acquire(ctx context.Context, userID int64) (release func(), err error)
	Current(ctx context.Context, userID int64) (State, error)
	TransitionTo(ctx context.Context, userID int64, newState State) error
	Reset(ctx context.Context, userID int64) error
	GetAllStates(ctx context.Context) ([]*Record, error)
}

// machine is a concrete implementation of Machine backed by Storage and Redis locking.
type machine struct {
	storage     Storage
	log         *slog.Logger
	redisClient *redis.Client
}

// NewMachine creates an FSM controller using the provided storage backend and
// redis client for per-conversation locks.
func NewMachine(storage Storage, log *slog.Logger, redisClient *redis.Client) Machine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
	}
}

// Acquire takes the per-conversation transition lock. The returned release
// function must be called once the transition has been persisted (or aborted).
func (m *machine) Acquire(ctx context.Context, userID int64) (func(), error) {
	if m.redisClient == nil {
		m.log.Warn("redis client not configured for conversation locks; skipping", "user_id", userID)
		return func() {}, nil
	}

	key := fmt.Sprintf(conversationLockKeyPattern, userID)
	acquired, err := m.redisClient.SetNX(ctx, key, 1, lockTTL).Result()
	if err != nil {
		m.log.Error("failed to acquire conversation lock", "user_id", userID, "error", err)
		return nil, err
	}

	if !acquired {
		m.log.Warn("conversation lock already held", "user_id", userID)
		return nil, ErrConversationBusy
	}

	release := func() {
		if err := m.redisClient.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			m.log.Error("failed to release conversation lock", "user_id", userID, "error", err)
		}
	}

	return release, nil
}

// Current returns the conversation's state, StateStart when no record exists.
func (m *machine) Current(ctx context.Context, userID int64) (State, error) {
	record, err := m.storage.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return StateStart, nil
		}
		return StateStart, err
	}

	if record == nil {
		return StateStart, nil
	}

	return record.CurrentState, nil
}

// TransitionTo changes the state if the transition is allowed and persists the
// result. A transition is complete only once the save succeeds.
func (m *machine) TransitionTo(ctx context.Context, userID int64, newState State) error {
	current, err := m.Current(ctx, userID)
	if err != nil {
		return err
	}

	if !IsTransitionAllowed(current, newState) {
		m.log.Warn("invalid state transition", "user_id", userID, "from", current, "to", newState)
		return ErrInvalidTransition
	}

	if err := m.storage.SetState(ctx, userID, &Record{
		UserID:       userID,
		CurrentState: newState,
	}); err != nil {
		return err
	}

	transitionRecorder(string(current), string(newState))

	return nil
}

// Reset removes the stored record, returning the conversation to StateStart.
func (m *machine) Reset(ctx context.Context, userID int64) error {
	return m.storage.ClearState(ctx, userID)
}

// GetAllStates returns every persisted conversation record.
func (m *machine) GetAllStates(ctx context.Context) ([]*Record, error) {
	return m.storage.GetAllStates(ctx)
}
