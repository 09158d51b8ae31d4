// Package state manages conversation state and transitions for the bot.
package state

import "context"

// Storage defines the persistence contract for conversation state.
type Storage interface {
	// GetState returns the current record for the specified conversation.
	GetState(ctx context.Context, userID int64) (*Record, error)
	// SetState saves the provided record for the specified conversation.
	SetState(ctx context.Context, userID int64, record *Record) error
	// ClearState removes the record for the specified conversation.
	ClearState(ctx context.Context, userID int64) error
	// GetAllStates returns every persisted conversation record.
	GetAllStates(ctx context.Context) ([]*Record, error)
}
