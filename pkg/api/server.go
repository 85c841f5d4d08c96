package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumen-arcade/saveguard/pkg/audit"
	"github.com/lumen-arcade/saveguard/pkg/docstore"
	"github.com/lumen-arcade/saveguard/pkg/limiter"
	"github.com/lumen-arcade/saveguard/pkg/observability"
	"github.com/lumen-arcade/saveguard/pkg/verify"
)

// ServerConfig wires the HTTP surface. Limits, Trail and Obs are optional.
type ServerConfig struct {
	Service     *verify.Service
	Documents   docstore.Store
	Auth        *TokenValidator
	Limits      limiter.Store
	LimitPolicy limiter.Policy
	Trail       *audit.Logger
	Obs         *observability.Provider
}

// Server is the submission and review HTTP API.
type Server struct {
	svc         *verify.Service
	docs        docstore.Store
	auth        *TokenValidator
	limits      limiter.Store
	limitPolicy limiter.Policy
	trail       *audit.Logger
	obs         *observability.Provider
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		svc:         cfg.Service,
		docs:        cfg.Documents,
		auth:        cfg.Auth,
		limits:      cfg.Limits,
		limitPolicy: cfg.LimitPolicy,
		trail:       cfg.Trail,
		obs:         cfg.Obs,
	}
}

// Routes builds the handler tree with the middleware chain applied:
// request ID → access log → rate limit → (per-route) auth.
func (s *Server) Routes() http.Handler {
	authed := AuthMiddleware(s.auth)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"status": "ok"})
	})
	mux.Handle("POST /api/v1/saves/{ownerId}", authed(http.HandlerFunc(s.handleSubmit)))
	mux.Handle("GET /api/v1/saves/{ownerId}", authed(http.HandlerFunc(s.handleGet)))
	mux.Handle("GET /api/v1/admin/flagged", authed(http.HandlerFunc(s.handleFlagged)))
	mux.Handle("POST /api/v1/admin/saves/{ownerId}/unflag", authed(http.HandlerFunc(s.handleUnflag)))
	mux.Handle("DELETE /api/v1/admin/saves/{ownerId}", authed(http.HandlerFunc(s.handleDelete)))

	var handler http.Handler = mux
	if s.limits != nil {
		handler = RateLimitMiddleware(s.limits, s.limitPolicy)(handler)
	}
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}

// ListenAndServe runs the server until ctx is canceled, then drains with a
// 10-second grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
