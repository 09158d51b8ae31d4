package keyboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeQuantity(t *testing.T) {
	token, err := EncodeQuantity("6f3a9c", 5)
	require.NoError(t, err)
	assert.Equal(t, "6f3a9c=5", token)

	productID, quantity, err := DecodeQuantity(token)
	require.NoError(t, err)
	assert.Equal(t, "6f3a9c", productID)
	assert.Equal(t, 5, quantity)
}

func TestEncodeQuantityRejectsInvalidInput(t *testing.T) {
	_, err := EncodeQuantity("", 1)
	assert.Error(t, err)

	_, err = EncodeQuantity("abc", 0)
	assert.Error(t, err)

	_, err = EncodeQuantity("abc", -3)
	assert.Error(t, err)
}

func TestEncodeQuantityEnforcesPayloadLimit(t *testing.T) {
	longID := strings.Repeat("a", CallbackDataLimitBytes)

	_, err := EncodeQuantity(longID, 1)
	assert.Error(t, err)

	okID := strings.Repeat("a", CallbackDataLimitBytes-2)
	token, err := EncodeQuantity(okID, 1)
	require.NoError(t, err)
	assert.Len(t, token, CallbackDataLimitBytes)
}

func TestDecodeQuantityRejectsMalformedTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "no separator", token: "cart"},
		{name: "empty product id", token: "=5"},
		{name: "non numeric quantity", token: "abc=x"},
		{name: "zero quantity", token: "abc=0"},
		{name: "negative quantity", token: "abc=-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeQuantity(tc.token)
			assert.Error(t, err)
		})
	}
}

func TestIsQuantityToken(t *testing.T) {
	assert.True(t, IsQuantityToken("abc=10"))
	assert.False(t, IsQuantityToken("abc"))
	assert.False(t, IsQuantityToken(TokenCart))
	assert.False(t, IsQuantityToken(TokenBack))
	assert.False(t, IsQuantityToken(TokenPay))
}
