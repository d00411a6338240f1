// Package server provides the HTTP server and routing for FinTracker.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/fintracker/internal/config"
	"github.com/aristath/fintracker/internal/database"
	markethandlers "github.com/aristath/fintracker/internal/modules/market_hours/handlers"
	noteshandlers "github.com/aristath/fintracker/internal/modules/notes/handlers"
	stockshandlers "github.com/aristath/fintracker/internal/modules/stocks/handlers"
	watchlisthandlers "github.com/aristath/fintracker/internal/modules/watchlist/handlers"
)

// Config holds server configuration
type Config struct {
	Log               zerolog.Logger
	MarketDB          *database.DB
	Config            *config.Config
	Port              int
	DevMode           bool
	StocksHandlers    *stockshandlers.Handler
	WatchlistHandlers *watchlisthandlers.Handler
	NotesHandlers     *noteshandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router            *chi.Mux
	server            *http.Server
	log               zerolog.Logger
	marketDB          *database.DB
	cfg               *config.Config
	stocksHandlers    *stockshandlers.Handler
	watchlistHandlers *watchlisthandlers.Handler
	notesHandlers     *noteshandlers.Handler
	marketHandlers    *markethandlers.Handler
	systemHandlers    *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:            chi.NewRouter(),
		log:               cfg.Log.With().Str("component", "server").Logger(),
		marketDB:          cfg.MarketDB,
		cfg:               cfg.Config,
		stocksHandlers:    cfg.StocksHandlers,
		watchlistHandlers: cfg.WatchlistHandlers,
		notesHandlers:     cfg.NotesHandlers,
		marketHandlers:    markethandlers.NewHandler(cfg.Log),
		systemHandlers:    NewSystemHandlers(cfg.Log, cfg.MarketDB),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
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
	// Health check outside the /api prefix for load balancers
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		s.stocksHandlers.RegisterRoutes(r)
		s.watchlistHandlers.RegisterRoutes(r)
		s.notesHandlers.RegisterRoutes(r)
		s.marketHandlers.RegisterRoutes(r)

		r.Get("/health", s.systemHandlers.HandleHealth)
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
		})
	})
}

// loggingMiddleware logs each request with method, path, status and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() *chi.Mux {
	return s.router
}
