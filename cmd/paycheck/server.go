package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"scrimhub/internal/checkout"
	"scrimhub/internal/common/api"
	"scrimhub/internal/common/middleware"
)

type callbackServer struct {
	server *http.Server
	logger *slog.Logger
}

// newCallbackRouter mounts the checkout callback with the service middleware
// stack. health may be nil.
func newCallbackRouter(handler *checkout.CallbackHandler, health func(context.Context) error, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Logger(logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.NotFound(w, "no route for "+r.URL.Path)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				logger.Warn("health check failed", "error", err)
				api.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Mount(checkout.CallbackPath, handler.Routes())
	return r
}

// startCallbackServer binds addr before returning so a port conflict is
// reported before any payment is created.
func startCallbackServer(ctx context.Context, addr string, handler *checkout.CallbackHandler, health func(context.Context) error, logger *slog.Logger) (*callbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	s := &callbackServer{
		server: &http.Server{
			Handler:      newCallbackRouter(handler, health, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		},
		logger: logger,
	}

	go func() {
		logger.Info("callback server listening", "addr", ln.Addr().String(), "path", checkout.CallbackPath)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()
	return s, nil
}

func (s *callbackServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown error", "error", err)
	}
	s.logger.Info("callback server stopped")
}
