// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	handlerapi "github.com/newthinker/stockdash/internal/api/handler/api"
	"github.com/newthinker/stockdash/internal/api/middleware"
	"github.com/newthinker/stockdash/internal/identity"
	"github.com/newthinker/stockdash/internal/logger"
	"github.com/newthinker/stockdash/internal/metrics"
	"github.com/newthinker/stockdash/internal/watchlist"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the dashboard's HTTP server
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
}

// Dependencies are the components the routes are served from. Metrics and
// Exporter are optional.
type Dependencies struct {
	Watchlists *watchlist.Manager
	Session    *identity.Session
	Market     handlerapi.MarketData
	Exporter   handlerapi.Exporter
	Metrics    *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, log *zap.Logger) (*Server, error) {
	if deps.Watchlists == nil || deps.Session == nil || deps.Market == nil {
		return nil, fmt.Errorf("watchlists, session and market are required")
	}
	log = logger.OrNop(log)

	mux := http.NewServeMux()

	s := &Server{
		logger: log,
		mux:    mux,
	}
	s.setupRoutes(cfg, deps)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(log)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	auth := middleware.APIKeyAuth(cfg.APIKey)
	handle := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, auth(h))
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	wl := handlerapi.NewWatchlistHandler(deps.Watchlists)
	handle("GET /api/v1/watchlists", wl.List)
	handle("POST /api/v1/watchlists", wl.Create)
	handle("POST /api/v1/watchlists/active/entries", wl.AddEntry)
	handle("POST /api/v1/watchlists/{name}/activate", wl.Activate)
	handle("DELETE /api/v1/watchlists/{name}", wl.Remove)
	handle("DELETE /api/v1/watchlists/{name}/entries/{symbol}", wl.RemoveEntry)
	handle("GET /api/v1/suggestions", wl.Suggestions)

	session := handlerapi.NewSessionHandler(deps.Session, deps.Watchlists, s.logger)
	handle("POST /api/v1/session/login", session.Login)
	handle("POST /api/v1/session/logout", session.Logout)

	if deps.Exporter != nil {
		exports := handlerapi.NewExportHandler(deps.Exporter, deps.Watchlists, deps.Session)
		handle("POST /api/v1/exports", exports.Create)
		handle("GET /api/v1/exports", exports.List)
		handle("GET /api/v1/exports/{id}", exports.Get)
		handle("DELETE /api/v1/exports/{id}", exports.Delete)
	}

	market := handlerapi.NewMarketHandler(deps.Market)
	handle("GET /api/v1/market/indices", market.Indices)
	handle("GET /api/v1/market/history", market.History)
	handle("GET /api/v1/market/news", market.News)
	handle("GET /api/v1/market/holidays", market.Holidays)
	handle("GET /api/v1/market/fundamentals", market.Fundamentals)
	handle("GET /api/v1/market/info", market.Info)
	handle("GET /api/v1/market/predict", market.Predict)
	handle("POST /api/v1/market/tax", market.Tax)
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
