package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/bot/keyboard"
	"github.com/fish-shop/seafood-bot/internal/i18n"
	"github.com/fish-shop/seafood-bot/internal/moltin"
	"github.com/fish-shop/seafood-bot/internal/state"
)

// NewStartHandler greets the user with the product list and opens the menu.
// It also serves as the reset path: /start works from any conversation state.
func NewStartHandler(fsm state.Machine, shop moltin.Shop, kb *keyboard.Builder, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("start handler invoked without sender")
			return nil
		}

		ctx := context.Background()

		if err := sendMenu(ctx, c, shop, kb, tr, "menu.welcome"); err != nil {
			return err
		}

		return saveState(ctx, fsm, sender.ID, state.StateMenu)
	}
}
