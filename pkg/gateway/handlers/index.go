package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/frontend"
)

type IndexHandler struct {
	MockMode bool
}

func (h IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":      "realtime-gateway",
		"websocket": "/ws/session/{session_id}?user_id=...",
		"demo":      "/demo",
		"mock_mode": h.MockMode,
	})
}

type DemoHandler struct{}

func (h DemoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(frontend.IndexHTML)
}
