// Package api serves the tabtime REST interface under /api.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/tabtime/internal/analytics"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/policy"
	"github.com/goodtune/tabtime/internal/storage"
	chicors "github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Server represents the API HTTP server.
type Server struct {
	config     Config
	store      storage.Store
	evaluator  *policy.Engine
	aggregator *analytics.Aggregator
	clock      period.Clock
	server     *http.Server
	router     *mux.Router
	listener   net.Listener // Optional pre-created listener (for systemd socket activation)
	logger     zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, store storage.Store, evaluator *policy.Engine, aggregator *analytics.Aggregator, clock period.Clock, logger zerolog.Logger) *Server {
	if clock == nil {
		clock = period.RealClock{}
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}

	s := &Server{
		config:     cfg,
		store:      store,
		evaluator:  evaluator,
		aggregator: aggregator,
		clock:      clock,
		router:     mux.NewRouter(),
		logger:     logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Tracking and analytics
	api.HandleFunc("/track", s.handleTrack).Methods("POST")
	api.HandleFunc("/analytics", s.handleAnalytics).Methods("GET")

	// Limits
	limits := NewLimitsHandler(s.store.Limits(), s.store.Usage(), s.evaluator, s.clock, s.logger)
	api.HandleFunc("/limits", limits.List).Methods("GET")
	api.HandleFunc("/limits", limits.Upsert).Methods("POST")
	api.HandleFunc("/limits", limits.Delete).Methods("DELETE")
	api.HandleFunc("/limits/usage", limits.IncrementUsage).Methods("POST")
	api.HandleFunc("/limits/usage/{website}", limits.Usage).Methods("GET")
	api.HandleFunc("/limits/counter/{website}", limits.Counter).Methods("GET")
	api.HandleFunc("/limits/status/{domain}", limits.Status).Methods("GET")
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	if len(s.config.AllowedOrigins) == 0 {
		return s.router
	}
	return chicors.Handler(chicors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(s.router)
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}
