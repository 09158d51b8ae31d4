// Package bot wires the Telegram transport to the conversation engine.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/bot/handlers"
	"github.com/fish-shop/seafood-bot/internal/bot/keyboard"
	apperrors "github.com/fish-shop/seafood-bot/internal/errors"
	"github.com/fish-shop/seafood-bot/internal/i18n"
	"github.com/fish-shop/seafood-bot/internal/idempotency"
	"github.com/fish-shop/seafood-bot/internal/middleware"
	"github.com/fish-shop/seafood-bot/internal/moltin"
	"github.com/fish-shop/seafood-bot/internal/state"
	"github.com/fish-shop/seafood-bot/internal/user"
	"github.com/fish-shop/seafood-bot/pkg/config"
)

// CommandStart opens (or reopens) the shop menu from any conversation state.
const CommandStart = "/start"

// Bot wraps telebot.Bot with the dependencies needed to run the shop.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	dispatcher *Dispatcher
	errHandler *apperrors.Handler
}

// New builds the Telegram bot and registers all conversation routes.
func New(
	cfg config.Config,
	log *slog.Logger,
	fsm state.Machine,
	shop moltin.Shop,
	tr i18n.Translator,
	idempotencyManager idempotency.Manager,
	rateLimitMw *middleware.RateLimitMiddleware,
	users *user.Service,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		Poller: &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		},
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	kb := keyboard.NewBuilder(tr, log)
	dispatcher := NewDispatcher(fsm, tr, log)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		dispatcher: dispatcher,
		errHandler: errHandler,
	}

	b.setupDispatcher(fsm, shop, kb, tr, idempotencyManager, users)

	if rateLimitMw != nil {
		b.telebot.Use(rateLimitMw.Handle)
	}

	b.telebot.Handle(telebot.OnText, b.dispatcher.Dispatch)
	b.telebot.Handle(telebot.OnCallback, b.dispatcher.Dispatch)

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	b.log.Info("stopping telegram bot")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot for integrations such as health
// checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupDispatcher(
	fsm state.Machine,
	shop moltin.Shop,
	kb *keyboard.Builder,
	tr i18n.Translator,
	idempotencyManager idempotency.Manager,
	users *user.Service,
) {
	d := b.dispatcher

	d.Use(RecoveryMiddleware(b.log, b.errHandler))
	d.Use(middleware.Idempotency(idempotencyManager, b.log))
	d.Use(ErrorHandlingMiddleware(b.errHandler))
	d.Use(LoggingMiddleware(b.log))
	d.Use(AuthMiddleware(users, b.log))
	d.Use(middleware.Metrics)

	showCart := handlers.NewShowCartHandler(fsm, shop, kb, tr, b.log)
	backToMenu := handlers.NewBackToMenuHandler(fsm, shop, kb, tr, b.log)

	d.HandleCommand(CommandStart, handlers.NewStartHandler(fsm, shop, kb, tr, b.log))

	d.Handle(state.StateMenu, "open_cart", MatchToken(keyboard.TokenCart), showCart)
	d.Handle(state.StateMenu, "show_product", MatchProductID(), handlers.NewShowProductHandler(fsm, shop, kb, tr, b.log))

	d.Handle(state.StateProduct, "open_cart", MatchToken(keyboard.TokenCart), showCart)
	d.Handle(state.StateProduct, "back_to_menu", MatchToken(keyboard.TokenBack), backToMenu)
	d.Handle(state.StateProduct, "add_to_cart", MatchQuantity(), handlers.NewAddToCartHandler(fsm, shop, kb, tr, b.log))

	d.Handle(state.StateCart, "pay", MatchToken(keyboard.TokenPay), handlers.NewPayHandler(fsm, tr, b.log))
	d.Handle(state.StateCart, "back_to_menu", MatchToken(keyboard.TokenBack), backToMenu)
	d.Handle(state.StateCart, "remove_item", MatchProductID(), handlers.NewRemoveFromCartHandler(fsm, shop, kb, tr, b.log))

	d.Handle(state.StateAwaitingEmail, "submit_email", MatchFreeText(), handlers.NewEmailHandler(fsm, shop, kb, tr, b.log))
}
