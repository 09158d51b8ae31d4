// Package lifecycle coordinates ordered startup side effects and graceful
// shutdown of the bot's components.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Hook is a named teardown function executed during shutdown.
type Hook struct {
	Name string
	Fn   func(context.Context) error
}

// Shutdown runs registered hooks in parallel when the process stops.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
}

// NewShutdown constructs a new Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
}

// Execute runs all registered hooks concurrently and waits for completion.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var failures []string

	for _, hook := range hooks {
		h := hook
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := h.Fn(ctx); err != nil {
				s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))

				errMu.Lock()
				failures = append(failures, h.Name+": "+err.Error())
				errMu.Unlock()
				return
			}

			s.log.Info("shutdown hook finished", slog.String("hook", h.Name))
		}()
	}

	wg.Wait()
	s.log.Info("shutdown sequence finished", slog.Duration("took", time.Since(start)))

	if len(failures) > 0 {
		return errors.New("shutdown hooks failed: " + strings.Join(failures, "; "))
	}

	return nil
}
