// Package handlers implements the per-state conversation handlers.
package handlers

import (
	telebot "gopkg.in/telebot.v3"
)

// Handler processes a single routed update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler
