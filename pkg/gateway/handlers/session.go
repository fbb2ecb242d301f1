package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/lifecycle"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/live/session"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/live/sessions"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/mw"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/planner"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/tools"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/summary"
)

// SessionHandler accepts one websocket connection per conversation session at
// /ws/session/{session_id}. It owns the session's storage bootstrap and hands
// the connection to a LiveSession; on disconnect it schedules post-session
// summarization.
type SessionHandler struct {
	Logger         *slog.Logger
	Store          store.Store
	Backend        backend.Backend
	Planner        *planner.Planner
	Tools          *tools.Registry
	Tracker        *sessions.Tracker
	Summarizer     *summary.Summarizer
	Lifecycle      *lifecycle.Lifecycle
	Session        session.Config
	AllowedOrigins map[string]struct{}
}

func (h SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessionID := strings.TrimSpace(r.PathValue("session_id"))
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	// An absent user_id stays empty on the way to the store so a reconnect
	// without one never overwrites a known user. "anonymous" is a display
	// label only.
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	userLabel := userID
	if userLabel == "" {
		userLabel = "anonymous"
	}

	if h.Lifecycle.IsDraining() {
		writeJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	if err := h.Store.UpsertSession(r.Context(), sessionID, userID); err != nil {
		logger.Error("session upsert failed", "session_id", sessionID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "could not open session")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	connID := uuid.NewString()
	logger = logger.With("session_id", sessionID, "conn_id", connID, "request_id", reqID)

	if err := h.Store.LogEvent(r.Context(), sessionID, store.EventSystem, store.RoleSystem,
		"client connected", map[string]any{"user_id": userLabel, "conn_id": connID}); err != nil {
		logger.Error("connected event failed", "error", err)
	}

	ls, err := session.New(session.Dependencies{
		Conn:      conn,
		Logger:    logger,
		Store:     h.Store,
		Backend:   h.Backend,
		Planner:   h.Planner,
		Tools:     h.Tools,
		SessionID: sessionID,
		UserID:    userID,
		RequestID: reqID,
		Config:    h.Session,
	})
	if err != nil {
		logger.Error("session init failed", "error", err)
		_ = conn.Close()
		return
	}

	unregister := h.Tracker.Register(sessionID, sessions.Handle{
		Cancel: ls.Cancel,
		Notify: ls.NotifyShutdown,
	})
	defer unregister()

	logger.Info("session started", "user_id", userLabel)
	if err := ls.Run(); err != nil {
		logger.Warn("session ended with error", "error", err)
	} else {
		logger.Info("session ended")
	}

	if h.Summarizer != nil {
		h.Summarizer.Enqueue(sessionID)
	}
}

func (h SessionHandler) checkOrigin(r *http.Request) bool {
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	_, ok := h.AllowedOrigins[origin]
	return ok
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": message}})
}
