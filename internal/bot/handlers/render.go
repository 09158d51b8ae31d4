package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/bot/keyboard"
	apperrors "github.com/fish-shop/seafood-bot/internal/errors"
	"github.com/fish-shop/seafood-bot/internal/i18n"
	"github.com/fish-shop/seafood-bot/internal/moltin"
	"github.com/fish-shop/seafood-bot/internal/state"
)

// sendMenu fetches the catalog, renders the product list with textKey as the
// heading, and removes the message the user interacted with so the menu
// becomes the newest message in the chat.
func sendMenu(ctx context.Context, c telebot.Context, shop moltin.Shop, kb *keyboard.Builder, tr i18n.Translator, textKey string) error {
	products, err := shop.ListProducts(ctx)
	if err != nil {
		return apperrors.NewBackendError("list_products", err)
	}

	if err := c.Send(tr.T(textKey), kb.ProductList(products)); err != nil {
		return err
	}

	deleteInlineMessage(c)

	return nil
}

// sendCart reads the cart from the commerce backend and renders its summary
// with removal buttons.
func sendCart(ctx context.Context, c telebot.Context, shop moltin.Shop, kb *keyboard.Builder, tr i18n.Translator, userID int64) error {
	cart, err := shop.GetCart(ctx, userID)
	if err != nil {
		return apperrors.NewBackendError("get_cart", err)
	}

	text := tr.T("cart.empty")
	if len(cart.Lines) > 0 {
		text = cart.Summary + fmt.Sprintf(tr.T("cart.total"), cart.TotalCost)
	}

	if err := c.Send(text, kb.CartView(cart)); err != nil {
		return err
	}

	deleteInlineMessage(c)

	return nil
}

// saveState persists the transition result. A failed save aborts the
// transition so the conversation keeps whatever state was stored before.
func saveState(ctx context.Context, fsm state.Machine, userID int64, next state.State) error {
	if err := fsm.TransitionTo(ctx, userID, next); err != nil {
		if errors.Is(err, state.ErrInvalidTransition) {
			return apperrors.NewStateError(fmt.Sprintf("transition to %s rejected for user %d", next, userID))
		}
		return apperrors.NewPersistenceError(err)
	}

	return nil
}

// deleteInlineMessage removes the message whose button triggered the update.
// Plain text updates (commands, the email message) are left in place.
func deleteInlineMessage(c telebot.Context) {
	cb := c.Callback()
	if cb == nil || cb.Message == nil {
		return
	}

	if err := c.Delete(); err != nil {
		slog.Debug("failed to delete previous screen", "error", err)
	}
}
