package state

import "time"

// State represents a conversation state machine position.
type State string

const (
	// StateStart is the implicit state of a conversation with no stored
	// record. It is never persisted.
	StateStart State = "start"
	// StateMenu indicates that the user is looking at the product list.
	StateMenu State = "menu"
	// StateProduct indicates that the user is looking at a product page.
	StateProduct State = "product"
	// StateCart indicates that the user is looking at the cart contents.
	StateCart State = "cart"
	// StateAwaitingEmail indicates that the bot is waiting for the user to
	// send an email address as a free-text message.
	StateAwaitingEmail State = "awaiting_email"
)

// Record captures the persisted position of one conversation. The last viewed
// product is deliberately not stored here: quantity buttons carry it inside
// the callback payload.
type Record struct {
	UserID       int64     `json:"user_id"`
	CurrentState State     `json:"current_state"`
	UpdatedAt    time.Time `json:"updated_at"`
}
