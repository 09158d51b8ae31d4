package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/bot/handlers"
	"github.com/fish-shop/seafood-bot/pkg/metrics"
)

// Metrics measures execution time and status for routed updates. Updates are
// classified by kind rather than payload to keep label cardinality bounded.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordUpdate(updateKind(c), status, time.Since(start))

		return err
	}
}

func updateKind(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if c.Callback() != nil {
		return "callback"
	}

	if strings.HasPrefix(c.Text(), "/") {
		return "command"
	}

	if c.Text() != "" {
		return "text"
	}

	return "unknown"
}
