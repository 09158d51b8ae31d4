// Package repository implements SQL-backed persistence for shopper profiles.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fish-shop/seafood-bot/internal/domain"
)

// UserRepository defines persistence operations for shopper profiles.
type UserRepository interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
	UpdateLastActiveAt(ctx context.Context, telegramID int64) error
}

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

// FindByTelegramID retrieves a profile by its Telegram identifier.
func (r *userRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	const query = `
		SELECT id, telegram_id, first_name, last_name, username, language_code, created_at, last_active_at
		FROM users
		WHERE telegram_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, telegramID)

	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.LanguageCode,
		&user.CreatedAt,
		&user.LastActiveAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		if r.log != nil {
			r.log.Error("failed to fetch user by telegram id", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user by telegram id: %w", err)
	}

	return &user, nil
}

// Upsert inserts the profile or refreshes its Telegram-sourced fields when
// the telegram id is already known.
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (telegram_id, first_name, last_name, username, language_code, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (telegram_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username,
			language_code = EXCLUDED.language_code
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.TelegramID,
		user.FirstName,
		user.LastName,
		user.Username,
		user.LanguageCode,
		user.CreatedAt,
		user.LastActiveAt,
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to upsert user", slog.Int64("telegram_id", user.TelegramID), slog.Any("error", err))
		}
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

// UpdateLastActiveAt refreshes the activity timestamp for the profile.
func (r *userRepository) UpdateLastActiveAt(ctx context.Context, telegramID int64) error {
	const query = `
		UPDATE users SET last_active_at = now()
		WHERE telegram_id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, telegramID); err != nil {
		if r.log != nil {
			r.log.Error("failed to update last_active_at", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
		return fmt.Errorf("update last_active_at: %w", err)
	}

	return nil
}
