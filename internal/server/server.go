// Package server provides the HTTP server and routing for Ballast.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/ballast/internal/config"
	"github.com/aristath/ballast/internal/database"
	"github.com/aristath/ballast/internal/events"
	"github.com/aristath/ballast/internal/modules/history"
	"github.com/aristath/ballast/internal/modules/rebalancing"
	rebalancinghandlers "github.com/aristath/ballast/internal/modules/rebalancing/handlers"
	"github.com/aristath/ballast/internal/modules/registry"
	registryhandlers "github.com/aristath/ballast/internal/modules/registry/handlers"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Cfg         *config.Config
	ConfigDB    *database.DB
	PortfolioDB *database.DB

	Registry    *registry.Service
	Rebalancing *rebalancing.Service
	Runs        *history.Repository
	Factory     registry.StrategyFactory
	EventBus    *events.Bus
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	cfg         *config.Config
	configDB    *database.DB
	portfolioDB *database.DB

	registry    *registry.Service
	rebalancing *rebalancing.Service
	runs        *history.Repository
	factory     registry.StrategyFactory
	eventBus    *events.Bus

	startedAt time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		cfg:         cfg.Cfg,
		configDB:    cfg.ConfigDB,
		portfolioDB: cfg.PortfolioDB,
		registry:    cfg.Registry,
		rebalancing: cfg.Rebalancing,
		runs:        cfg.Runs,
		factory:     cfg.Factory,
		eventBus:    cfg.EventBus,
		startedAt:   time.Now(),
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	systemHandlers := NewSystemHandlers(s.log, s.cfg.DataDir, s.startedAt, s.configDB, s.portfolioDB)
	registryHandler := registryhandlers.NewHandler(s.registry, s.rebalancing, s.factory, s.log)
	rebalancingHandler := rebalancinghandlers.NewHandler(s.rebalancing, s.runs, s.log)
	eventsStreamHandler := NewEventsStreamHandler(s.eventBus, s.log)
	eventsSocketHandler := NewEventsSocketHandler(s.eventBus, s.log)

	// Health check
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Event streaming
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)
		r.Get("/events/ws", eventsSocketHandler.ServeHTTP)

		// System monitoring
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", systemHandlers.HandleDatabaseStats)
			r.Get("/disk", systemHandlers.HandleDiskUsage)
		})

		// Read-only query surface
		registryHandler.RegisterRoutes(r)
		rebalancingHandler.RegisterRoutes(r)

		// Mutating surface, admin token required
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			registryHandler.RegisterAdminRoutes(r)
			rebalancingHandler.RegisterAdminRoutes(r)
		})
	})
}

// adminOnly rejects requests without a valid X-Admin-Token header. In dev
// mode with no token configured, everything is admin.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" && s.cfg.DevMode {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Admin-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			s.log.Warn().
				Str("path", r.URL.Path).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("Rejected unauthorized admin request")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealth reports process liveness and database reachability
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, db := range []*database.DB{s.configDB, s.portfolioDB} {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("Health check failed")
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.log.Error().Err(err).Msg("Failed to write health response")
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
