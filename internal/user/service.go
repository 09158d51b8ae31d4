// Package user implements profile registration and activity tracking.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/domain"
	"github.com/fish-shop/seafood-bot/internal/repository"
	"github.com/fish-shop/seafood-bot/internal/usercache"
)

// Service provides business operations over shopper profiles. Reads go
// through the Redis cache first; the database stays the source of truth.
type Service struct {
	repo  repository.UserRepository
	cache *usercache.Cache
	log   *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(repo repository.UserRepository, cache *usercache.Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{repo: repo, cache: cache, log: log}
}

// GetOrCreate fetches a profile by Telegram sender or registers a new one on
// first contact.
func (s *Service) GetOrCreate(ctx context.Context, sender *telebot.User) (*domain.User, error) {
	if sender == nil {
		return nil, errors.New("telegram sender is nil")
	}

	if cached, err := s.cache.Get(ctx, sender.ID); err != nil {
		s.log.Warn("user cache read failed", slog.Int64("telegram_id", sender.ID), slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	user, err := s.repo.FindByTelegramID(ctx, sender.ID)
	if err == nil {
		s.cacheProfile(ctx, user)
		return user, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	now := time.Now().UTC()
	user = &domain.User{
		TelegramID:   sender.ID,
		FirstName:    sender.FirstName,
		LastName:     sender.LastName,
		Username:     sender.Username,
		LanguageCode: sender.LanguageCode,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("registered new user", slog.Int64("telegram_id", sender.ID))
	s.cacheProfile(ctx, user)

	return user, nil
}

// TouchAsync refreshes the activity timestamp without blocking update flow.
func (s *Service) TouchAsync(telegramID int64) {
	if s == nil || s.repo == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.repo.UpdateLastActiveAt(ctx, telegramID); err != nil {
			s.log.Warn("failed to record user activity", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		}
	}()
}

func (s *Service) cacheProfile(ctx context.Context, user *domain.User) {
	if err := s.cache.Set(ctx, user); err != nil {
		s.log.Warn("user cache write failed", slog.Int64("telegram_id", user.TelegramID), slog.Any("error", err))
	}
}
