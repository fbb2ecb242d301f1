// Package server assembles the HTTP surface: routes, middleware chain, and
// the shared session infrastructure behind the websocket endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/config"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/handlers"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/lifecycle"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/live/session"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/live/sessions"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/mw"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/planner"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/tools"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/summary"
)

type Dependencies struct {
	Store      store.Store
	Backend    backend.Backend
	Summarizer *summary.Summarizer
	Persisted  bool
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	deps      Dependencies
	lifecycle *lifecycle.Lifecycle
	tracker   *sessions.Tracker
	registry  *tools.Registry
	planner   *planner.Planner
}

func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	registry := tools.NewRegistry(tools.Builtins()...)

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		deps:      deps,
		lifecycle: &lifecycle.Lifecycle{},
		tracker:   sessions.NewTracker(),
		registry:  registry,
		planner:   planner.New(deps.Backend, registry),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{
		Lifecycle: s.lifecycle,
		MockMode:  s.cfg.MockMode(),
		Persisted: s.deps.Persisted,
	})
	s.mux.Handle("/", handlers.IndexHandler{MockMode: s.cfg.MockMode()})
	s.mux.Handle("/demo", handlers.DemoHandler{})

	s.mux.Handle("GET /ws/session/{session_id}", handlers.SessionHandler{
		Logger:     s.logger,
		Store:      s.deps.Store,
		Backend:    s.deps.Backend,
		Planner:    s.planner,
		Tools:      s.registry,
		Tracker:    s.tracker,
		Summarizer: s.deps.Summarizer,
		Lifecycle:  s.lifecycle,
		Session: session.Config{
			ReadTimeout:       s.cfg.WSReadTimeout,
			WriteTimeout:      s.cfg.WSWriteTimeout,
			PingInterval:      s.cfg.WSPingInterval,
			TurnTimeout:       s.cfg.TurnTimeout,
			ToolTimeout:       s.cfg.ToolTimeout,
			OutboundQueueSize: s.cfg.WSOutboundQueue,
		},
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg.CORSAllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips readiness and makes the websocket endpoint refuse new
// sessions.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// NotifyLiveSessionsDraining tells connected clients the server is going away.
func (s *Server) NotifyLiveSessionsDraining() {
	n := s.tracker.NotifyAll("server is shutting down")
	if n > 0 {
		s.logger.Info("notified live sessions of shutdown", "count", n)
	}
}

// WaitLiveSessions blocks until live sessions drain or ctx expires.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.tracker.Wait(ctx)
}

// CancelLiveSessions force-closes any sessions that outlived the grace period.
func (s *Server) CancelLiveSessions() {
	n := s.tracker.CancelAll()
	if n > 0 {
		s.logger.Warn("canceled live sessions", "count", n)
	}
}
