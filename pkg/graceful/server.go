package graceful

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server runs the operational HTTP endpoint (metrics, health) and drains it
// when the context is canceled.
type Server struct {
	srv             *http.Server
	log             *slog.Logger
	shutdownTimeout time.Duration
}

func NewServer(log *slog.Logger, addr string, handler http.Handler, shutdownTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log:             log,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run serves until ctx is canceled or the listener fails, then shuts down
// within the configured timeout. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	listenErr := make(chan error, 1)

	go func() {
		s.log.Info("ops server listening", slog.String("addr", s.srv.Addr))
		listenErr <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.log.Info("draining ops server", slog.Duration("timeout", s.shutdownTimeout))

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-listenErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
