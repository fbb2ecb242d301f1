package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Postgres connection string. Empty selects the in-memory store.
	DatabaseURL   string
	RunMigrations bool

	// Gemini credentials. An empty key selects the deterministic mock
	// backend.
	GeminiAPIKey string
	GeminiModel  string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// WebSocket session limits.
	WSPingInterval  time.Duration
	WSWriteTimeout  time.Duration
	WSReadTimeout   time.Duration
	WSOutboundQueue int
	TurnTimeout     time.Duration
	ToolTimeout     time.Duration

	// Event log write retry.
	EventLogMaxRetries   int
	EventLogRetryBackoff time.Duration

	// Post-session summarization pool.
	SummaryWorkers    int
	SummaryQueueSize  int
	SummaryJobTimeout time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("RTAI_ADDR", ":8080"),
		DatabaseURL:          envOr("RTAI_DATABASE_URL", ""),
		RunMigrations:        envBoolOr("RTAI_RUN_MIGRATIONS", true),
		GeminiAPIKey:         envOr("RTAI_GEMINI_API_KEY", envOr("GEMINI_API_KEY", "")),
		GeminiModel:          envOr("RTAI_GEMINI_MODEL", ""),
		CORSAllowedOrigins:   make(map[string]struct{}),
		WSPingInterval:       envDurationOr("RTAI_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:       envDurationOr("RTAI_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:        envDurationOr("RTAI_WS_READ_TIMEOUT", 0),
		WSOutboundQueue:      envIntOr("RTAI_WS_OUTBOUND_QUEUE", 128),
		TurnTimeout:          envDurationOr("RTAI_TURN_TIMEOUT", 60*time.Second),
		ToolTimeout:          envDurationOr("RTAI_TOOL_TIMEOUT", 10*time.Second),
		EventLogMaxRetries:   envIntOr("RTAI_EVENT_LOG_MAX_RETRIES", 3),
		EventLogRetryBackoff: envDurationOr("RTAI_EVENT_LOG_RETRY_BACKOFF", 50*time.Millisecond),
		SummaryWorkers:       envIntOr("RTAI_SUMMARY_WORKERS", 2),
		SummaryQueueSize:     envIntOr("RTAI_SUMMARY_QUEUE_SIZE", 64),
		SummaryJobTimeout:    envDurationOr("RTAI_SUMMARY_JOB_TIMEOUT", 60*time.Second),
		ReadHeaderTimeout:    envDurationOr("RTAI_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:  envDurationOr("RTAI_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("RTAI_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("RTAI_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("RTAI_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("RTAI_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.WSOutboundQueue <= 0 {
		return Config{}, fmt.Errorf("RTAI_WS_OUTBOUND_QUEUE must be > 0")
	}
	if cfg.TurnTimeout <= 0 {
		return Config{}, fmt.Errorf("RTAI_TURN_TIMEOUT must be > 0")
	}
	if cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("RTAI_TOOL_TIMEOUT must be > 0")
	}
	if cfg.EventLogMaxRetries < 0 {
		return Config{}, fmt.Errorf("RTAI_EVENT_LOG_MAX_RETRIES must be >= 0")
	}
	if cfg.EventLogRetryBackoff < 0 {
		return Config{}, fmt.Errorf("RTAI_EVENT_LOG_RETRY_BACKOFF must be >= 0")
	}
	if cfg.SummaryWorkers <= 0 {
		return Config{}, fmt.Errorf("RTAI_SUMMARY_WORKERS must be > 0")
	}
	if cfg.SummaryQueueSize <= 0 {
		return Config{}, fmt.Errorf("RTAI_SUMMARY_QUEUE_SIZE must be > 0")
	}
	if cfg.SummaryJobTimeout <= 0 {
		return Config{}, fmt.Errorf("RTAI_SUMMARY_JOB_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RTAI_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("RTAI_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

// MockMode reports whether the deterministic mock backend is in effect.
func (c Config) MockMode() bool {
	return strings.TrimSpace(c.GeminiAPIKey) == ""
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
