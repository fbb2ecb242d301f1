package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Lifecycle *lifecycle.Lifecycle
	MockMode  bool
	Persisted bool
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK        bool   `json:"ok"`
		Draining  bool   `json:"draining"`
		MockMode  bool   `json:"mock_mode"`
		Persisted bool   `json:"persisted"`
		Reason    string `json:"reason,omitempty"`
	}

	resp := readyResp{
		OK:        true,
		MockMode:  h.MockMode,
		Persisted: h.Persisted,
	}
	status := http.StatusOK
	if h.Lifecycle.IsDraining() {
		resp.OK = false
		resp.Draining = true
		resp.Reason = "shutting down"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
