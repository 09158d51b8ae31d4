package keyboard

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/fish-shop/seafood-bot/internal/i18n"
	"github.com/fish-shop/seafood-bot/internal/moltin"
)

// quantityOptions are the offerable amounts in kilograms. An option is shown
// only when stock covers it: stock > option-1.
var quantityOptions = []int{1, 5, 10}

// Builder creates inline keyboards for each conversation screen.
type Builder struct {
	tr  i18n.Translator
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(tr i18n.Translator, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}

	return &Builder{tr: tr, log: log}
}

// ProductList builds the menu keyboard: one row per product in catalog order,
// then the cart button.
func (b *Builder) ProductList(products []moltin.Product) *telebot.ReplyMarkup {
	rows := make([][]telebot.InlineButton, 0, len(products)+1)
	for _, product := range products {
		rows = append(rows, []telebot.InlineButton{{
			Text: product.Name,
			Data: product.ID,
		}})
	}

	rows = append(rows, []telebot.InlineButton{{
		Text: b.tr.T("button.cart"),
		Data: TokenCart,
	}})

	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}

// QuantityChoices returns the amounts offerable for the given stock level.
func QuantityChoices(stock int) []int {
	var choices []int
	for _, option := range quantityOptions {
		if stock > option-1 {
			choices = append(choices, option)
		}
	}
	return choices
}

// ProductPage builds the product screen keyboard: a single row of quantity
// buttons gated by stock, then the cart/back row. At zero stock the quantity
// row is omitted entirely.
func (b *Builder) ProductPage(product *moltin.Product) *telebot.ReplyMarkup {
	var rows [][]telebot.InlineButton

	var quantityRow []telebot.InlineButton
	for _, quantity := range QuantityChoices(product.Stock) {
		token, err := EncodeQuantity(product.ID, quantity)
		if err != nil {
			b.log.Warn("skipping quantity button", "product_id", product.ID, "quantity", quantity, "error", err)
			continue
		}

		quantityRow = append(quantityRow, telebot.InlineButton{
			Text: fmt.Sprintf(b.tr.T("button.qty"), quantity),
			Data: token,
		})
	}
	if len(quantityRow) > 0 {
		rows = append(rows, quantityRow)
	}

	rows = append(rows, []telebot.InlineButton{
		{Text: b.tr.T("button.cart"), Data: TokenCart},
		{Text: b.tr.T("button.back"), Data: TokenBack},
	})

	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}

// CartView builds the cart keyboard: pay button, one removal button per cart
// line, then the back-to-menu button.
func (b *Builder) CartView(cart *moltin.Cart) *telebot.ReplyMarkup {
	rows := make([][]telebot.InlineButton, 0, len(cart.Lines)+2)

	rows = append(rows, []telebot.InlineButton{{
		Text: b.tr.T("button.pay"),
		Data: TokenPay,
	}})

	for _, line := range cart.Lines {
		rows = append(rows, []telebot.InlineButton{{
			Text: fmt.Sprintf(b.tr.T("button.remove"), line.Name),
			Data: line.ProductID,
		}})
	}

	rows = append(rows, []telebot.InlineButton{{
		Text: b.tr.T("button.to_menu"),
		Data: TokenBack,
	}})

	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}
