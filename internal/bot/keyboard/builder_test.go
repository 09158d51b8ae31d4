package keyboard

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fish-shop/seafood-bot/internal/moltin"
)

type stubTranslator struct{}

func (stubTranslator) T(key string) string {
	switch key {
	case "button.qty":
		return "%d кг"
	case "button.remove":
		return "Убрать из корзины %s"
	default:
		return key
	}
}

func newTestBuilder() *Builder {
	return NewBuilder(stubTranslator{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestQuantityChoices(t *testing.T) {
	tests := []struct {
		name  string
		stock int
		want  []int
	}{
		{name: "out of stock", stock: 0, want: nil},
		{name: "low stock", stock: 3, want: []int{1}},
		{name: "medium stock", stock: 7, want: []int{1, 5}},
		{name: "high stock", stock: 12, want: []int{1, 5, 10}},
		{name: "boundary five", stock: 5, want: []int{1, 5}},
		{name: "boundary ten", stock: 10, want: []int{1, 5, 10}},
		{name: "below boundary five", stock: 4, want: []int{1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, QuantityChoices(tc.stock))
		})
	}
}

func TestProductListKeyboard(t *testing.T) {
	b := newTestBuilder()

	markup := b.ProductList([]moltin.Product{
		{ID: "p1", Name: "Сельдь"},
		{ID: "p2", Name: "Лосось"},
	})

	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, "Сельдь", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "p1", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "Лосось", markup.InlineKeyboard[1][0].Text)
	assert.Equal(t, "p2", markup.InlineKeyboard[1][0].Data)
	assert.Equal(t, TokenCart, markup.InlineKeyboard[2][0].Data)
}

func TestProductPageKeyboardQuantityRow(t *testing.T) {
	b := newTestBuilder()

	markup := b.ProductPage(&moltin.Product{ID: "p1", Name: "Сельдь", Stock: 12})

	require.Len(t, markup.InlineKeyboard, 2)
	quantityRow := markup.InlineKeyboard[0]
	require.Len(t, quantityRow, 3)
	assert.Equal(t, "1 кг", quantityRow[0].Text)
	assert.Equal(t, "p1=1", quantityRow[0].Data)
	assert.Equal(t, "5 кг", quantityRow[1].Text)
	assert.Equal(t, "p1=5", quantityRow[1].Data)
	assert.Equal(t, "10 кг", quantityRow[2].Text)
	assert.Equal(t, "p1=10", quantityRow[2].Data)

	navRow := markup.InlineKeyboard[1]
	require.Len(t, navRow, 2)
	assert.Equal(t, TokenCart, navRow[0].Data)
	assert.Equal(t, TokenBack, navRow[1].Data)
}

func TestProductPageKeyboardOutOfStock(t *testing.T) {
	b := newTestBuilder()

	markup := b.ProductPage(&moltin.Product{ID: "p1", Name: "Сельдь", Stock: 0})

	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, TokenCart, markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, TokenBack, markup.InlineKeyboard[0][1].Data)
}

func TestCartViewKeyboard(t *testing.T) {
	b := newTestBuilder()

	markup := b.CartView(&moltin.Cart{
		Lines: []moltin.CartLine{
			{ProductID: "p1", Name: "Сельдь"},
			{ProductID: "p2", Name: "Лосось"},
		},
	})

	require.Len(t, markup.InlineKeyboard, 4)
	assert.Equal(t, TokenPay, markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "Убрать из корзины Сельдь", markup.InlineKeyboard[1][0].Text)
	assert.Equal(t, "p1", markup.InlineKeyboard[1][0].Data)
	assert.Equal(t, "Убрать из корзины Лосось", markup.InlineKeyboard[2][0].Text)
	assert.Equal(t, "p2", markup.InlineKeyboard[2][0].Data)
	assert.Equal(t, TokenBack, markup.InlineKeyboard[3][0].Data)
}

func TestCartViewKeyboardEmptyCart(t *testing.T) {
	b := newTestBuilder()

	markup := b.CartView(&moltin.Cart{})

	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, TokenPay, markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, TokenBack, markup.InlineKeyboard[1][0].Data)
}
