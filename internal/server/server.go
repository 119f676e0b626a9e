// Package server is the HTTP and WebSocket API for the prediction market
// client.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/server/handler"
	"github.com/alanyoungcy/ppmclient/internal/server/middleware"
	"github.com/alanyoungcy/ppmclient/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr        string
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// RateLimit bounds write requests per client IP per RateWindow. Zero
	// or a nil Limiter disables it.
	RateLimit  int
	RateWindow time.Duration
	Limiter    domain.RateLimiter
}

// Handlers aggregates the HTTP handlers registered by the server.
type Handlers struct {
	Health   *handler.HealthHandler
	Markets  *handler.MarketHandler
	Actions  *handler.ActionHandler
	UI       *handler.UIHandler
	Activity *handler.ActivityHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in rate limiting,
// auth, logging and CORS, innermost first.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      Handler(cfg, handlers, wsHub, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute, // receipts can take a while
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler builds the routed, middleware-wrapped http.Handler.
func Handler(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/status", handlers.Markets.UserStatus)
	mux.HandleFunc("GET /api/markets/{id}/panel", handlers.Markets.CreatorPanel)

	mux.HandleFunc("POST /api/markets", handlers.Actions.CreateMarket)
	mux.HandleFunc("POST /api/markets/{id}/commit", handlers.Actions.Commit)
	mux.HandleFunc("POST /api/markets/{id}/reveal", handlers.Actions.Reveal)
	mux.HandleFunc("POST /api/markets/{id}/transition", handlers.Actions.Transition)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Actions.Resolve)

	mux.HandleFunc("GET /api/markets/{id}/commitment", handlers.Actions.GetCommitment)
	mux.HandleFunc("DELETE /api/markets/{id}/commitment", handlers.Actions.ClearCommitment)
	mux.HandleFunc("GET /api/commitments", handlers.Actions.ListCommitments)
	mux.HandleFunc("POST /api/commitments/prune", handlers.Actions.PruneCommitments)

	mux.HandleFunc("GET /api/ui", handlers.UI.GetState)
	mux.HandleFunc("POST /api/ui/{action}", handlers.UI.Apply)
	mux.HandleFunc("DELETE /api/ui/toasts/{id}", handlers.UI.RemoveToast)

	if handlers.Activity != nil {
		mux.HandleFunc("GET /api/activity", handlers.Activity.ListActivity)
		mux.HandleFunc("GET /api/activity/feed", handlers.Activity.Feed)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
