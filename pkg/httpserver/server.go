package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/polyquant/polyscalp/internal/markets"
	"github.com/polyquant/polyscalp/internal/orderbook"
	"github.com/polyquant/polyscalp/internal/risk"
	"github.com/polyquant/polyscalp/pkg/healthprobe"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides HTTP endpoints for metrics, health checks, and the
// trading control API.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker

	// Control API wiring; the API is mounted only when Engine is set.
	Engine     EngineControl
	KillSwitch *risk.KillSwitch
	Breaker    *risk.BalanceBreaker
	Registry   *markets.Registry
	Books      *orderbook.Manager
	AddMarket  AddMarketFunc // optional; mounts POST /api/markets
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	if cfg.Engine != nil {
		ctrl := NewControlHandler(cfg.Engine, cfg.KillSwitch, cfg.Breaker,
			cfg.Registry, cfg.AddMarket, cfg.Logger)
		r.Get("/api/status", ctrl.HandleStatus)
		r.Get("/api/markets", ctrl.HandleMarkets)
		r.Post("/api/pause", ctrl.HandlePause)
		r.Post("/api/resume", ctrl.HandleResume)
		r.Post("/api/markets/{marketID}/unwind", ctrl.HandleUnwind)
		r.Delete("/api/markets/{marketID}", ctrl.HandleRemove)
		if cfg.AddMarket != nil {
			r.Post("/api/markets", ctrl.HandleAddMarket)
		}
	}

	if cfg.Books != nil && cfg.Registry != nil {
		obHandler := NewOrderbookHandler(cfg.Books, cfg.Registry, cfg.Logger)
		r.Get("/api/orderbook", obHandler.HandleOrderbook)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
