package domain

import "time"

// User is a shopper profile stored in the database. The Telegram identifier
// doubles as the cart key in the commerce backend.
type User struct {
	ID           int64
	TelegramID   int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	CreatedAt    time.Time
	LastActiveAt time.Time
}
