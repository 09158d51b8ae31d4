package state

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

var errStorageFailure = errors.New("storage error")

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetState(ctx context.Context, userID int64) (*Record, error) {
	args := m.Called(ctx, userID)
	record, _ := args.Get(0).(*Record)
	return record, args.Error(1)
}

func (m *mockStorage) SetState(ctx context.Context, userID int64, record *Record) error {
	args := m.Called(ctx, userID, record)
	return args.Error(0)
}

func (m *mockStorage) ClearState(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockStorage) GetAllStates(ctx context.Context) ([]*Record, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]*Record)
	return records, args.Error(1)
}

func TestMachine_TransitionTo(t *testing.T) {
	ctx := context.Background()
	userID := int64(42)
	log := testLogger()

	testCases := []struct {
		name        string
		setupMocks  func(ms *mockStorage)
		newState    State
		expectedErr error
	}{
		{
			name: "menu to product",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&Record{CurrentState: StateMenu}, nil).Once()
				ms.On("SetState", mock.Anything, userID, mock.MatchedBy(func(record *Record) bool {
					return record.CurrentState == StateProduct
				})).Return(nil).Once()
			},
			newState:    StateProduct,
			expectedErr: nil,
		},
		{
			name: "new conversation starts at menu",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return((*Record)(nil), ErrStateNotFound).Once()
				ms.On("SetState", mock.Anything, userID, mock.MatchedBy(func(record *Record) bool {
					return record.CurrentState == StateMenu
				})).Return(nil).Once()
			},
			newState:    StateMenu,
			expectedErr: nil,
		},
		{
			name: "new conversation cannot jump to cart",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return((*Record)(nil), ErrStateNotFound).Once()
			},
			newState:    StateCart,
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "menu cannot await email directly",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&Record{CurrentState: StateMenu}, nil).Once()
			},
			newState:    StateAwaitingEmail,
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "failed save aborts the transition",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&Record{CurrentState: StateCart}, nil).Once()
				ms.On("SetState", mock.Anything, userID, mock.Anything).
					Return(errStorageFailure).Once()
			},
			newState:    StateAwaitingEmail,
			expectedErr: errStorageFailure,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			tc.setupMocks(ms)

			fsm := NewMachine(ms, log, nil)
			err := fsm.TransitionTo(ctx, userID, tc.newState)

			if tc.expectedErr != nil {
				if !errors.Is(err, tc.expectedErr) {
					t.Fatalf("expected error %v, got %v", tc.expectedErr, err)
				}
			} else if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			ms.AssertExpectations(t)
		})
	}
}

func TestMachine_Current(t *testing.T) {
	ctx := context.Background()
	userID := int64(7)
	log := testLogger()

	testCases := []struct {
		name        string
		setupMocks  func(ms *mockStorage)
		expectState State
		expectErr   bool
	}{
		{
			name: "record found",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return(&Record{UserID: userID, CurrentState: StateCart}, nil).Once()
			},
			expectState: StateCart,
		},
		{
			name: "absent record means start",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return((*Record)(nil), ErrStateNotFound).Once()
			},
			expectState: StateStart,
		},
		{
			name: "storage failure propagates",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetState", mock.Anything, userID).
					Return((*Record)(nil), errStorageFailure).Once()
			},
			expectState: StateStart,
			expectErr:   true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			tc.setupMocks(ms)
			fsm := NewMachine(ms, log, nil)

			current, err := fsm.Current(ctx, userID)

			if tc.expectErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
			} else if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}

			if current != tc.expectState {
				t.Fatalf("expected state %s, got %s", tc.expectState, current)
			}

			ms.AssertExpectations(t)
		})
	}
}

func TestMachine_Reset(t *testing.T) {
	ctx := context.Background()
	userID := int64(13)

	ms := &mockStorage{}
	ms.On("ClearState", mock.Anything, userID).Return(nil).Once()

	fsm := NewMachine(ms, testLogger(), nil)
	if err := fsm.Reset(ctx, userID); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	ms.AssertExpectations(t)
}

func TestMachine_AcquireSerializesConversation(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	fsm := NewMachine(NewRedisStorage(client, testLogger()), testLogger(), client)

	ctx := context.Background()
	userID := int64(77)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := fsm.Acquire(ctx, userID)
			if err != nil {
				errCh <- err
				return
			}
			defer release()

			errCh <- fsm.TransitionTo(ctx, userID, StateMenu)
		}()
	}

	wg.Wait()
	close(errCh)

	var success, busy int
	for err := range errCh {
		if err == nil {
			success++
			continue
		}

		if errors.Is(err, ErrConversationBusy) {
			busy++
			continue
		}

		t.Fatalf("unexpected error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected 1 successful transition, got %d", success)
	}
	if busy != 1 {
		t.Fatalf("expected 1 busy transition, got %d", busy)
	}
}

func TestMachine_AcquireReleaseAllowsNextTransition(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	fsm := NewMachine(NewRedisStorage(client, testLogger()), testLogger(), client)

	ctx := context.Background()
	userID := int64(78)

	release, err := fsm.Acquire(ctx, userID)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	release()

	release, err = fsm.Acquire(ctx, userID)
	if err != nil {
		t.Fatalf("second acquire failed after release: %v", err)
	}
	release()
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}

	return client, cleanup
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
