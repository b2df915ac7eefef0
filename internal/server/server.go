// Package server provides the HTTP server and routing for Sentinel.
//
// Deliberately small: spec.md §6 scopes the HTTP surface to health,
// version, cache stats/clear, market status, category lists, and an SSE
// stream for backtest progress/result/error plus the general domain-event
// feed. It is informational, not a core module — every real decision is
// made by the packages this layer calls into.
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

	"github.com/aristath/sentinel/internal/backtest"
	"github.com/aristath/sentinel/internal/broker"
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/events"
	"github.com/aristath/sentinel/internal/settings"
	"github.com/aristath/sentinel/internal/store"
	"github.com/aristath/sentinel/internal/version"
)

// Version is the build identifier reported by GET /api/version, overridden
// at link time via internal/version.
var Version = version.Version

// CategoryRepository is the subset of store.AllocationTargetRepository the
// category-lists endpoint needs.
type CategoryRepository interface {
	ListByKind(kind domain.AllocationTargetKind) ([]domain.AllocationTarget, error)
}

// CacheRepository is the subset of store.RecommendationCacheRepository the
// cache stats/clear endpoints need.
type CacheRepository interface {
	Stats(now time.Time) (store.CacheStats, error)
	Clear() (int64, error)
}

// Config holds everything New needs to wire a Server.
type Config struct {
	Log             zerolog.Logger
	Cfg             *config.Config
	Broker          broker.Broker
	Categories      CategoryRepository
	Cache           CacheRepository
	Settings        *settings.Repository
	EventBus        *events.Bus
	EventManager    *events.Manager
	BacktestFactory BacktestFactory
	DataDir         string
	Port            int
	DevMode         bool
}

// BacktestFactory builds a Backtester for one request's parameters. Kept as
// a function type instead of a concrete constructor call so the server
// package never imports the store-backed adapters directly (internal/server
// depends only on internal/backtest's interfaces and internal/broker).
type BacktestFactory func(ctx context.Context, req BacktestRequest) (*backtest.Backtester, error)

// Server is Sentinel's HTTP entry point.
type Server struct {
	router *chi.Mux
	http   *http.Server
	log    zerolog.Logger
	cfg    *config.Config

	brokerAPI       broker.Broker
	categories      CategoryRepository
	cache           CacheRepository
	settingsRepo    *settings.Repository
	eventBus        *events.Bus
	eventManager    *events.Manager
	backtestFactory BacktestFactory
	statusMonitor   *StatusMonitor
	dataDir         string
	devMode         bool
}

// New builds a Server and wires its routes. It does not start listening;
// call Start for that.
func New(cfg Config) *Server {
	s := &Server{
		router:          chi.NewRouter(),
		log:             cfg.Log.With().Str("component", "server").Logger(),
		cfg:             cfg.Cfg,
		brokerAPI:       cfg.Broker,
		categories:      cfg.Categories,
		cache:           cfg.Cache,
		settingsRepo:    cfg.Settings,
		eventBus:        cfg.EventBus,
		eventManager:    cfg.EventManager,
		backtestFactory: cfg.BacktestFactory,
		dataDir:         cfg.DataDir,
		devMode:         cfg.DevMode,
	}

	s.statusMonitor = NewStatusMonitor(cfg.EventManager, cfg.Broker, cfg.Log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the backtest SSE stream can run far longer than a fixed write timeout
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures the chi middleware chain.
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures the full spec.md §6 HTTP surface.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)

		eventsStream := NewEventsStreamHandler(s.eventBus, s.dataDir, s.log)
		r.Get("/events/stream", eventsStream.ServeHTTP)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/clear", s.handleCacheClear)

		r.Get("/market/status", s.handleMarketStatus)

		r.Get("/categories", s.handleCategories)

		r.Get("/system/status", s.handleSystemStatus)

		r.Post("/backtest/run", s.handleBacktestRun)

		logHandlers := NewLogHandlers(s.log, s.dataDir)
		r.Get("/logs/list", logHandlers.HandleListLogs)
		r.Get("/logs", logHandlers.HandleGetLogs)
		r.Get("/logs/errors", logHandlers.HandleGetErrors)
	})
}

// Start starts the status monitor and blocks serving HTTP.
func (s *Server) Start() error {
	if s.statusMonitor != nil {
		s.statusMonitor.Start(60 * time.Second)
		s.log.Info().Msg("status monitor started")
	}
	s.log.Info().Str("addr", s.http.Addr).Msg("starting HTTP server")
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.http.Shutdown(ctx)
}

// loggingMiddleware logs one line per request.
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
			Msg("http request")
	})
}
