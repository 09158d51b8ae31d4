package handlers

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/bot/keyboard"
	apperrors "github.com/fish-shop/seafood-bot/internal/errors"
	"github.com/fish-shop/seafood-bot/internal/i18n"
	"github.com/fish-shop/seafood-bot/internal/moltin"
	"github.com/fish-shop/seafood-bot/internal/state"
)

// NewShowProductHandler opens a product page from the menu. The callback
// payload carries the product id.
func NewShowProductHandler(fsm state.Machine, shop moltin.Shop, kb *keyboard.Builder, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		cb := c.Callback()
		if cb == nil || c.Sender() == nil {
			log.Warn("product handler invoked without callback data")
			return nil
		}

		ctx := context.Background()
		productID := cb.Data

		product, err := shop.GetProduct(ctx, productID)
		if err != nil {
			return apperrors.NewBackendError("get_product", err)
		}

		caption := fmt.Sprintf(tr.T("product.caption"),
			product.Name, product.Price, product.Stock, product.Description)

		photo := &telebot.Photo{
			File:    telebot.FromURL(product.ImageURL),
			Caption: caption,
		}

		if err := c.Send(photo, kb.ProductPage(product)); err != nil {
			return err
		}

		deleteInlineMessage(c)

		return saveState(ctx, fsm, c.Sender().ID, state.StateProduct)
	}
}

// NewShowCartHandler renders the cart screen. Registered for the cart button
// in both the menu and the product page.
func NewShowCartHandler(fsm state.Machine, shop moltin.Shop, kb *keyboard.Builder, tr i18n.Translator, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("cart handler invoked without sender")
			return nil
		}

		ctx := context.Background()

		if err := sendCart(ctx, c, shop, kb, tr, sender.ID); err != nil {
			return err
		}

		return saveState(ctx, fsm, sender.ID, state.StateCart)
	}
}
