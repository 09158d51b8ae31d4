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

// NewBackToMenuHandler returns the user from the product page or the cart to
// a freshly fetched product list.
func NewBackToMenuHandler(fsm state.Machine, shop moltin.Shop, kb *keyboard.Builder, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("back handler invoked without sender")
			return nil
		}

		ctx := context.Background()

		if err := sendMenu(ctx, c, shop, kb, tr, "menu.choose"); err != nil {
			return err
		}

		return saveState(ctx, fsm, sender.ID, state.StateMenu)
	}
}

// NewAddToCartHandler parses the composite quantity callback and adds the
// product to the user's cart. A stock conflict from the backend does not stop
// the flow: the user still lands on the menu with a re-fetched list, so the
// displayed stock reflects what the backend just enforced.
func NewAddToCartHandler(fsm state.Machine, shop moltin.Shop, kb *keyboard.Builder, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb := c.Callback()
		if cb == nil || c.Sender() == nil {
			log.Warn("add-to-cart handler invoked without callback data")
			return nil
		}

		productID, quantity, err := keyboard.DecodeQuantity(cb.Data)
		if err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("malformed quantity payload %q", cb.Data))
		}

		ctx := context.Background()
		userID := c.Sender().ID

		if err := shop.AddToCart(ctx, userID, productID, quantity); err != nil {
			if !errors.Is(err, moltin.ErrInsufficientStock) {
				return apperrors.NewBackendError("add_to_cart", err)
			}

			log.Info("stock conflict on add to cart",
				slog.Int64("user_id", userID),
				slog.String("product_id", productID),
				slog.Int("quantity", quantity),
			)
		}

		if err := sendMenu(ctx, c, shop, kb, tr, "menu.choose"); err != nil {
			return err
		}

		return saveState(ctx, fsm, userID, state.StateMenu)
	}
}
