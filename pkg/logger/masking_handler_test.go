package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newCapturedLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := NewMaskingHandler(slog.NewTextHandler(&buf, nil))
	return slog.New(handler), &buf
}

func TestMaskingHandlerMasksSensitiveAttrs(t *testing.T) {
	log, buf := newCapturedLogger()

	log.Info("customer created",
		slog.String("email", "a@b.com"),
		slog.String("access_token", "secret-token"),
		slog.String("product_id", "42"),
	)

	out := buf.String()
	assert.NotContains(t, out, "a@b.com")
	assert.NotContains(t, out, "secret-token")
	assert.Contains(t, out, "email=***")
	assert.Contains(t, out, "access_token=***")
	assert.Contains(t, out, "product_id=42")
}

func TestMaskingHandlerMasksWithAttrs(t *testing.T) {
	log, buf := newCapturedLogger()

	log.With(slog.String("client_id", "moltin-client")).Info("token refreshed")

	out := buf.String()
	assert.NotContains(t, out, "moltin-client")
	assert.Contains(t, out, "client_id=***")
}

func TestMaskingHandlerIsCaseInsensitive(t *testing.T) {
	log, buf := newCapturedLogger()

	log.Info("update", slog.String("Password", "hunter2"))

	assert.NotContains(t, buf.String(), "hunter2")
}
