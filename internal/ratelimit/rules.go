package ratelimit

import (
	"errors"
	"time"

	"github.com/fish-shop/seafood-bot/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether rate limiting is switched on at all.
func (r *Rules) Enabled() bool {
	return r.config.Enabled
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// PerUserLimit returns the per-user budget and window.
func (r *Rules) PerUserLimit() (int, time.Duration, error) {
	if r.config.Window <= 0 {
		return 0, 0, errors.New("rate limit window is not set")
	}

	return r.config.PerUser, r.config.Window, nil
}
