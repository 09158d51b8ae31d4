package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/bot/keyboard"
	apperrors "github.com/fish-shop/seafood-bot/internal/errors"
	"github.com/fish-shop/seafood-bot/internal/i18n"
	"github.com/fish-shop/seafood-bot/internal/moltin"
	"github.com/fish-shop/seafood-bot/internal/state"
)

// NewPayHandler starts checkout: it asks for an email address and parks the
// conversation until a free-text reply arrives. No backend call is made here.
func NewPayHandler(fsm state.Machine, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("pay handler invoked without sender")
			return nil
		}

		if err := c.Send(tr.T("email.ask")); err != nil {
			return err
		}

		deleteInlineMessage(c)

		return saveState(context.Background(), fsm, sender.ID, state.StateAwaitingEmail)
	}
}

// NewRemoveFromCartHandler deletes one cart line and re-renders the cart. The
// callback payload carries the product id of the line to remove.
func NewRemoveFromCartHandler(fsm state.Machine, shop moltin.Shop, kb *keyboard.Builder, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb := c.Callback()
		if cb == nil || c.Sender() == nil {
			log.Warn("remove handler invoked without callback data")
			return nil
		}

		ctx := context.Background()
		userID := c.Sender().ID

		if err := shop.RemoveFromCart(ctx, userID, cb.Data); err != nil {
			return apperrors.NewBackendError("remove_from_cart", err)
		}

		if err := sendCart(ctx, c, shop, kb, tr, userID); err != nil {
			return err
		}

		return saveState(ctx, fsm, userID, state.StateCart)
	}
}
