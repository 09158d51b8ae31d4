// Package keyboard builds inline keyboards and encodes callback payloads.
package keyboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Fixed callback tokens. Everything else is a bare product id or a composite
// quantity token.
const (
	TokenCart = "cart"
	TokenBack = "back"
	TokenPay  = "pay"
)

const (
	// QuantitySeparator joins product id and quantity into one callback
	// payload, so the add-to-cart transition needs no stored "last viewed
	// product" field. This encoding is part of the button wire contract.
	QuantitySeparator = "="

	// CallbackDataLimitBytes is the Telegram limit for callback payload size.
	CallbackDataLimitBytes = 64
)

// EncodeQuantity produces the composite add-to-cart token for a product.
func EncodeQuantity(productID string, quantity int) (string, error) {
	if productID == "" {
		return "", errors.New("product id is empty")
	}
	if quantity <= 0 {
		return "", fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	token := productID + QuantitySeparator + strconv.Itoa(quantity)
	if len(token) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(token))
	}

	return token, nil
}

// DecodeQuantity splits a composite token back into product id and quantity.
func DecodeQuantity(token string) (productID string, quantity int, err error) {
	idx := strings.Index(token, QuantitySeparator)
	if idx <= 0 {
		return "", 0, fmt.Errorf("not a quantity token: %q", token)
	}

	quantity, err = strconv.Atoi(token[idx+len(QuantitySeparator):])
	if err != nil || quantity <= 0 {
		return "", 0, fmt.Errorf("invalid quantity in token %q", token)
	}

	return token[:idx], quantity, nil
}

// IsQuantityToken reports whether the callback payload carries a composite
// product id + quantity value.
func IsQuantityToken(token string) bool {
	_, _, err := DecodeQuantity(token)
	return err == nil
}
