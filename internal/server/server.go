// Package server provides the HTTP server and routing for the dashboard.
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

	"github.com/triagewatch/triagewatch/internal/clients/triage"
	"github.com/triagewatch/triagewatch/internal/events"
	"github.com/triagewatch/triagewatch/internal/export"
	"github.com/triagewatch/triagewatch/internal/history"
	"github.com/triagewatch/triagewatch/internal/notify"
	"github.com/triagewatch/triagewatch/internal/render"
	"github.com/triagewatch/triagewatch/internal/store"
)

// Refresher triggers an out-of-band snapshot refresh.
type Refresher interface {
	Refresh(ctx context.Context, reason string)
}

// Config holds server configuration.
type Config struct {
	Log           zerolog.Logger
	Port          int
	DevMode       bool
	Store         *store.Store
	Renderer      *render.Renderer
	Notifications *notify.Manager
	Exporter      *export.Service
	History       *history.Repository
	Push          *triage.PushChannel
	Refresher     Refresher
	EventBus      *events.Bus
}

// Server is the dashboard HTTP server.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	store          *store.Store
	renderer       *render.Renderer
	notifications  *notify.Manager
	exporter       *export.Service
	history        *history.Repository
	push           *triage.PushChannel
	refresher      Refresher
	systemHandlers *SystemHandlers
	streamHandler  *EventsStreamHandler
}

// New creates the HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		store:          cfg.Store,
		renderer:       cfg.Renderer,
		notifications:  cfg.Notifications,
		exporter:       cfg.Exporter,
		history:        cfg.History,
		push:           cfg.Push,
		refresher:      cfg.Refresher,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Push, cfg.History),
		streamHandler:  NewEventsStreamHandler(cfg.EventBus, cfg.Log),
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
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes. The SSE stream is registered outside
// the timeout-wrapped API tree so long-lived connections are not cut off.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/state", s.handleDashboardState)
				r.Get("/render", s.handleDashboardRender)
				r.Post("/tick", s.handleDashboardTick)
				r.Delete("/alerts/{index}", s.handleDismissAlert)
				r.Delete("/banner", s.handleDismissBanner)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", s.handleGetNotifications)
				r.Delete("/{id}", s.handleDismissNotification)
			})

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/refreshes", s.systemHandlers.HandleRecentRefreshes)
			})

			r.Post("/refresh", s.handleRefresh)
			r.Post("/export", s.handleExport)
		})

		// Long-lived SSE connections stay outside the request timeout
		r.Get("/events/stream", s.streamHandler.ServeHTTP)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
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
