package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/pkg/lifecycle"
)

type httpServer struct {
	srv   *http.Server
	drain time.Duration
	log   *slog.Logger
}

func newHTTPServer(cfg *config.ServerConfig, drain time.Duration, handler http.Handler, logger *slog.Logger) *httpServer {
	t := cfg.Timeouts()
	return &httpServer{
		srv: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  t.Read,
			WriteTimeout: t.Write,
			IdleTimeout:  t.Idle,
			ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		drain: drain,
		log:   logger.With("system", "http"),
	}
}

// Start binds the listener before returning so address conflicts fail
// startup instead of surfacing later in the serve goroutine.
func (s *httpServer) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}

	go func() {
		s.log.Info("server listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", "error", err)
		}
	}()

	lc.OnShutdown("http", func() {
		<-lc.Context().Done()
		s.log.Info("draining connections", "timeout", s.drain)

		ctx, cancel := context.WithTimeout(context.Background(), s.drain)
		defer cancel()

		if err := s.srv.Shutdown(ctx); err != nil {
			s.log.Error("server shutdown error", "error", err)
			return
		}
		s.log.Info("server shutdown complete")
	})

	return nil
}
