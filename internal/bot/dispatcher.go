package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/bot/handlers"
	"github.com/fish-shop/seafood-bot/internal/bot/keyboard"
	apperrors "github.com/fish-shop/seafood-bot/internal/errors"
	"github.com/fish-shop/seafood-bot/internal/i18n"
	"github.com/fish-shop/seafood-bot/internal/state"
)

// Input is the normalized view of an incoming update the routing layer works
// with: who sent it, whether it is a button press, and its payload.
type Input struct {
	UserID     int64
	IsCallback bool
	Data       string
	Text       string
}

// Matcher decides whether a route accepts the input.
type Matcher func(in Input) bool

type route struct {
	name    string
	match   Matcher
	handler handlers.Handler
}

// Dispatcher routes updates to the handler registered for the conversation's
// current state. The same payload resolves to different handlers depending on
// state, and inputs outside the current state's grammar are dropped before
// any handler or side effect runs.
type Dispatcher struct {
	mu          sync.RWMutex
	fsm         state.Machine
	commands    map[string]handlers.Handler
	routes      map[state.State][]route
	middlewares []handlers.Middleware
	tr          i18n.Translator
	log         *slog.Logger
}

// NewDispatcher creates a Dispatcher with empty route tables.
func NewDispatcher(fsm state.Machine, tr i18n.Translator, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		fsm:      fsm,
		commands: make(map[string]handlers.Handler),
		routes:   make(map[state.State][]route),
		tr:       tr,
		log:      log,
	}
}

// HandleCommand registers a slash command accepted in every state.
func (d *Dispatcher) HandleCommand(cmd string, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[cmd] = h
}

// Handle registers a state-scoped route. Routes are tried in registration
// order and the first match wins.
func (d *Dispatcher) Handle(s state.State, name string, m Matcher, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[s] = append(d.routes[s], route{name: name, match: m, handler: h})
}

// Use appends a middleware to the chain applied around every routed handler.
func (d *Dispatcher) Use(mw handlers.Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, mw)
}

// Dispatch serializes the update against other in-flight updates for the same
// conversation, resolves the current state, and runs the matching route.
func (d *Dispatcher) Dispatch(c telebot.Context) error {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch update without sender")
		return nil
	}

	in := normalize(c)
	ctx := context.Background()

	release, err := d.fsm.Acquire(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, state.ErrConversationBusy) {
			return d.replyBusy(c)
		}
		return apperrors.NewPersistenceError(err)
	}
	defer release()

	// Acknowledge the button press before any side effect so the client
	// stops its spinner regardless of what the transition does next.
	if in.IsCallback {
		_ = c.Respond()
	}

	if cmd, ok := commandToken(in.Text); ok {
		if h := d.commandHandler(cmd); h != nil {
			return d.exec(h, c)
		}

		d.log.Debug("unknown command ignored", slog.String("command", cmd), slog.Int64("user_id", in.UserID))
		return nil
	}

	current, err := d.fsm.Current(ctx, in.UserID)
	if err != nil {
		return apperrors.NewPersistenceError(err)
	}

	if r, ok := d.findRoute(current, in); ok {
		d.log.Debug("routing update",
			slog.Int64("user_id", in.UserID),
			slog.String("state", string(current)),
			slog.String("route", r.name),
		)
		return d.exec(r.handler, c)
	}

	d.log.Debug("input outside current state grammar, ignored",
		slog.Int64("user_id", in.UserID),
		slog.String("state", string(current)),
		slog.Bool("callback", in.IsCallback),
	)

	return nil
}

func (d *Dispatcher) findRoute(s state.State, in Input) (route, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, r := range d.routes[s] {
		if r.match(in) {
			return r, true
		}
	}

	return route{}, false
}

func (d *Dispatcher) commandHandler(cmd string) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.commands[cmd]
}

func (d *Dispatcher) exec(h handlers.Handler, c telebot.Context) error {
	d.mu.RLock()
	middlewares := make([]handlers.Middleware, len(d.middlewares))
	copy(middlewares, d.middlewares)
	d.mu.RUnlock()

	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	if wrapped == nil {
		return nil
	}

	return wrapped(c)
}

func (d *Dispatcher) replyBusy(c telebot.Context) error {
	text := d.tr.T("error.busy")

	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text})
	}

	return c.Send(text)
}

func normalize(c telebot.Context) Input {
	in := Input{UserID: c.Sender().ID}

	if cb := c.Callback(); cb != nil {
		in.IsCallback = true
		in.Data = strings.TrimSpace(cb.Data)
		return in
	}

	in.Text = strings.TrimSpace(c.Text())

	return in
}

// commandToken extracts the leading slash command from a text update,
// stripping the bot mention suffix.
func commandToken(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}

	cmd := strings.Fields(text)[0]
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}

	return cmd, true
}

// MatchToken accepts a callback whose payload equals the fixed token.
func MatchToken(token string) Matcher {
	return func(in Input) bool {
		return in.IsCallback && in.Data == token
	}
}

// MatchQuantity accepts composite product-quantity callbacks.
func MatchQuantity() Matcher {
	return func(in Input) bool {
		return in.IsCallback && keyboard.IsQuantityToken(in.Data)
	}
}

// MatchProductID accepts callbacks carrying a bare product id, i.e. anything
// that is neither a fixed token nor a quantity payload.
func MatchProductID() Matcher {
	return func(in Input) bool {
		if !in.IsCallback || in.Data == "" {
			return false
		}

		switch in.Data {
		case keyboard.TokenCart, keyboard.TokenBack, keyboard.TokenPay:
			return false
		}

		return !keyboard.IsQuantityToken(in.Data)
	}
}

// MatchFreeText accepts plain text messages that are not commands.
func MatchFreeText() Matcher {
	return func(in Input) bool {
		return !in.IsCallback && in.Text != "" && !strings.HasPrefix(in.Text, "/")
	}
}
