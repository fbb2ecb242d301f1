package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if !cfg.RunMigrations {
		t.Fatal("RunMigrations should default to true")
	}
	if cfg.TurnTimeout != 60*time.Second {
		t.Fatalf("TurnTimeout = %v", cfg.TurnTimeout)
	}
	if cfg.EventLogMaxRetries != 3 {
		t.Fatalf("EventLogMaxRetries = %d", cfg.EventLogMaxRetries)
	}
	if cfg.SummaryWorkers != 2 {
		t.Fatalf("SummaryWorkers = %d", cfg.SummaryWorkers)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("RTAI_ADDR", ":9999")
	t.Setenv("RTAI_TURN_TIMEOUT", "5s")
	t.Setenv("RTAI_RUN_MIGRATIONS", "false")
	t.Setenv("RTAI_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.TurnTimeout != 5*time.Second {
		t.Fatalf("TurnTimeout = %v", cfg.TurnTimeout)
	}
	if cfg.RunMigrations {
		t.Fatal("RunMigrations override ignored")
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if _, ok := cfg.CORSAllowedOrigins["https://b.example"]; !ok {
		t.Fatal("origin list not trimmed")
	}
}

func TestLoadFromEnv_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("RTAI_TURN_TIMEOUT", "not-a-duration")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TurnTimeout != 60*time.Second {
		t.Fatalf("TurnTimeout = %v, want default", cfg.TurnTimeout)
	}
}

func TestLoadFromEnv_RejectsNonPositiveLimits(t *testing.T) {
	t.Setenv("RTAI_SUMMARY_WORKERS", "0")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected validation error for zero workers")
	}
}

func TestMockMode(t *testing.T) {
	cfg := Config{}
	if !cfg.MockMode() {
		t.Fatal("empty key must select mock mode")
	}
	cfg.GeminiAPIKey = "key"
	if cfg.MockMode() {
		t.Fatal("configured key must select the real backend")
	}
}

func TestLoadFromEnv_GeminiKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-ambient")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GeminiAPIKey != "from-ambient" {
		t.Fatalf("GeminiAPIKey = %q", cfg.GeminiAPIKey)
	}

	t.Setenv("RTAI_GEMINI_API_KEY", "explicit")
	cfg, err = LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GeminiAPIKey != "explicit" {
		t.Fatalf("GeminiAPIKey = %q, prefixed variable must win", cfg.GeminiAPIKey)
	}
}
