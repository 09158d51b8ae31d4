package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/bot/keyboard"
	apperrors "github.com/fish-shop/seafood-bot/internal/errors"
	"github.com/fish-shop/seafood-bot/internal/i18n"
	"github.com/fish-shop/seafood-bot/internal/moltin"
	"github.com/fish-shop/seafood-bot/internal/state"
)

// NewEmailHandler finishes checkout: the free-text message is treated as the
// customer's email, a customer record is created in the commerce backend, and
// the conversation loops back to the menu.
func NewEmailHandler(fsm state.Machine, shop moltin.Shop, kb *keyboard.Builder, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("email handler invoked without sender")
			return nil
		}

		email := strings.TrimSpace(c.Text())
		if email == "" {
			return nil
		}

		ctx := context.Background()

		if err := shop.CreateCustomer(ctx, email, customerName(sender)); err != nil {
			return apperrors.NewBackendError("create_customer", err)
		}

		if err := c.Send(fmt.Sprintf(tr.T("email.done"), email)); err != nil {
			return err
		}

		if err := sendMenu(ctx, c, shop, kb, tr, "menu.choose"); err != nil {
			return err
		}

		return saveState(ctx, fsm, sender.ID, state.StateMenu)
	}
}

// customerName builds the display name stored with the customer record.
func customerName(sender *telebot.User) string {
	name := sender.Username
	if name == "" {
		name = strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	}

	return fmt.Sprintf("Telegram user %s (id %d)", name, sender.ID)
}
