package bot

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/bot/handlers"
	"github.com/fish-shop/seafood-bot/internal/bot/keyboard"
	"github.com/fish-shop/seafood-bot/internal/state"
)

type stubContext struct {
	telebot.Context

	sender   *telebot.User
	callback *telebot.Callback
	text     string

	sent      []interface{}
	responses []*telebot.CallbackResponse
}

func (c *stubContext) Sender() *telebot.User       { return c.sender }
func (c *stubContext) Callback() *telebot.Callback { return c.callback }
func (c *stubContext) Text() string                { return c.text }

func (c *stubContext) Send(what interface{}, _ ...interface{}) error {
	c.sent = append(c.sent, what)
	return nil
}

func (c *stubContext) Respond(resp ...*telebot.CallbackResponse) error {
	if len(resp) == 0 {
		resp = []*telebot.CallbackResponse{{}}
	}
	c.responses = append(c.responses, resp...)
	return nil
}

type stubMachine struct {
	current    state.State
	acquireErr error
	acquired   int
	released   int
}

func (m *stubMachine) Acquire(ctx context.Context, userID int64) (func(), error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}

	m.acquired++
	return func() { m.released++ }, nil
}

func (m *stubMachine) Current(ctx context.Context, userID int64) (state.State, error) {
	return m.current, nil
}

func (m *stubMachine) TransitionTo(ctx context.Context, userID int64, newState state.State) error {
	m.current = newState
	return nil
}

func (m *stubMachine) Reset(ctx context.Context, userID int64) error { return nil }

func (m *stubMachine) GetAllStates(ctx context.Context) ([]*state.Record, error) {
	return nil, nil
}

type echoTranslator struct{}

func (echoTranslator) T(key string) string { return key }

func newTestDispatcher(fsm state.Machine) *Dispatcher {
	return NewDispatcher(fsm, echoTranslator{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func callbackUpdate(data string) *stubContext {
	return &stubContext{
		sender:   &telebot.User{ID: 100},
		callback: &telebot.Callback{ID: "cb-1", Data: data},
	}
}

func textUpdate(text string) *stubContext {
	return &stubContext{
		sender: &telebot.User{ID: 100},
		text:   text,
	}
}

func countingHandler(calls *int) handlers.Handler {
	return func(c telebot.Context) error {
		*calls++
		return nil
	}
}

func TestDispatchRoutesByState(t *testing.T) {
	fsm := &stubMachine{current: state.StateMenu}
	d := newTestDispatcher(fsm)

	menuCalls, cartCalls := 0, 0
	d.Handle(state.StateMenu, "open_cart", MatchToken(keyboard.TokenCart), countingHandler(&menuCalls))
	d.Handle(state.StateCart, "pay", MatchToken(keyboard.TokenPay), countingHandler(&cartCalls))

	require.NoError(t, d.Dispatch(callbackUpdate("cart")))

	assert.Equal(t, 1, menuCalls)
	assert.Equal(t, 0, cartCalls)
	assert.Equal(t, 1, fsm.acquired)
	assert.Equal(t, 1, fsm.released)
}

func TestDispatchIgnoresInputOutsideStateGrammar(t *testing.T) {
	fsm := &stubMachine{current: state.StateMenu}
	d := newTestDispatcher(fsm)

	payCalls := 0
	d.Handle(state.StateCart, "pay", MatchToken(keyboard.TokenPay), countingHandler(&payCalls))

	// "pay" is only valid in the cart state, so from the menu it must not
	// reach any handler.
	require.NoError(t, d.Dispatch(callbackUpdate("pay")))
	assert.Equal(t, 0, payCalls)
}

func TestDispatchFreeTextOnlyInAwaitingEmail(t *testing.T) {
	fsm := &stubMachine{current: state.StateMenu}
	d := newTestDispatcher(fsm)

	emailCalls := 0
	d.Handle(state.StateAwaitingEmail, "submit_email", MatchFreeText(), countingHandler(&emailCalls))

	require.NoError(t, d.Dispatch(textUpdate("a@b.com")))
	assert.Equal(t, 0, emailCalls)

	fsm.current = state.StateAwaitingEmail
	require.NoError(t, d.Dispatch(textUpdate("a@b.com")))
	assert.Equal(t, 1, emailCalls)
}

func TestDispatchCommandWorksInAnyState(t *testing.T) {
	fsm := &stubMachine{current: state.StateCart}
	d := newTestDispatcher(fsm)

	startCalls := 0
	d.HandleCommand(CommandStart, countingHandler(&startCalls))

	require.NoError(t, d.Dispatch(textUpdate("/start")))
	require.NoError(t, d.Dispatch(textUpdate("/start@seafood_bot")))

	assert.Equal(t, 2, startCalls)
}

func TestDispatchBusyConversation(t *testing.T) {
	fsm := &stubMachine{current: state.StateMenu, acquireErr: state.ErrConversationBusy}
	d := newTestDispatcher(fsm)

	calls := 0
	d.Handle(state.StateMenu, "open_cart", MatchToken(keyboard.TokenCart), countingHandler(&calls))

	c := callbackUpdate("cart")
	require.NoError(t, d.Dispatch(c))

	assert.Equal(t, 0, calls)
	require.Len(t, c.responses, 1)
	assert.Equal(t, "error.busy", c.responses[0].Text)
}

func TestDispatchAcknowledgesCallbackBeforeHandler(t *testing.T) {
	fsm := &stubMachine{current: state.StateMenu}
	d := newTestDispatcher(fsm)

	c := callbackUpdate("cart")
	acked := false
	d.Handle(state.StateMenu, "open_cart", MatchToken(keyboard.TokenCart), func(telebot.Context) error {
		acked = len(c.responses) > 0
		return nil
	})

	require.NoError(t, d.Dispatch(c))
	assert.True(t, acked)
}

func TestDispatchAppliesMiddlewareChain(t *testing.T) {
	fsm := &stubMachine{current: state.StateMenu}
	d := newTestDispatcher(fsm)

	var order []string
	d.Use(func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			order = append(order, "outer")
			return next(c)
		}
	})
	d.Use(func(next handlers.Handler) handlers.Handler {
		return func(c telebot.Context) error {
			order = append(order, "inner")
			return next(c)
		}
	})
	d.Handle(state.StateMenu, "open_cart", MatchToken(keyboard.TokenCart), func(telebot.Context) error {
		order = append(order, "handler")
		return nil
	})

	require.NoError(t, d.Dispatch(callbackUpdate("cart")))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestMatchers(t *testing.T) {
	tests := []struct {
		name    string
		matcher Matcher
		in      Input
		want    bool
	}{
		{"token matches", MatchToken("cart"), Input{IsCallback: true, Data: "cart"}, true},
		{"token rejects other data", MatchToken("cart"), Input{IsCallback: true, Data: "back"}, false},
		{"token rejects text", MatchToken("cart"), Input{Text: "cart"}, false},
		{"quantity matches composite", MatchQuantity(), Input{IsCallback: true, Data: "42=5"}, true},
		{"quantity rejects bare id", MatchQuantity(), Input{IsCallback: true, Data: "42"}, false},
		{"product id matches bare id", MatchProductID(), Input{IsCallback: true, Data: "42"}, true},
		{"product id rejects fixed tokens", MatchProductID(), Input{IsCallback: true, Data: "pay"}, false},
		{"product id rejects quantity", MatchProductID(), Input{IsCallback: true, Data: "42=5"}, false},
		{"free text matches", MatchFreeText(), Input{Text: "a@b.com"}, true},
		{"free text rejects commands", MatchFreeText(), Input{Text: "/start"}, false},
		{"free text rejects callbacks", MatchFreeText(), Input{IsCallback: true, Data: "x"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.matcher(tc.in))
		})
	}
}
