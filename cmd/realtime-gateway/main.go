package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/internal/dotenv"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend/gemini"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend/mock"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/config"
	gatewayserver "github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/server"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store/memstore"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store/postgres"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/summary"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), bool, error)
	newBackend   func(ctx context.Context, cfg config.Config) (backend.Backend, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig:   config.LoadFromEnv,
		openStore:    openStore,
		newBackend:   newBackend,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) },
		signalStop:   signal.Stop,
	}
}

// openStore selects Postgres when a database URL is configured and falls back
// to the in-memory store otherwise. The returned bool reports persistence.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), bool, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, sessions will not survive restarts")
		return memstore.New(), func() {}, false, nil
	}

	if cfg.RunMigrations {
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, false, fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, false, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, false, fmt.Errorf("ping postgres: %w", err)
	}

	st := postgres.New(pool, logger, postgres.Options{
		MaxRetries:   uint64(cfg.EventLogMaxRetries),
		RetryBackoff: cfg.EventLogRetryBackoff,
	})
	return st, pool.Close, true, nil
}

func newBackend(ctx context.Context, cfg config.Config) (backend.Backend, error) {
	if cfg.MockMode() {
		return mock.New(), nil
	}
	return gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil || deps.newBackend == nil {
		return errors.New("missing dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, closeStore, persisted, err := deps.openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	be, err := deps.newBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init backend: %w", err)
	}

	summarizer := summary.New(st, be, logger, summary.Options{
		Workers:    cfg.SummaryWorkers,
		QueueSize:  cfg.SummaryQueueSize,
		JobTimeout: cfg.SummaryJobTimeout,
	})

	gw := gatewayserver.New(cfg, logger, gatewayserver.Dependencies{
		Store:      st,
		Backend:    be,
		Summarizer: summarizer,
		Persisted:  persisted,
	})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"mock_mode", cfg.MockMode(),
		"persisted", persisted,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining()
	gw.NotifyLiveSessionsDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.WaitLiveSessions(waitCtx) {
		gw.CancelLiveSessions()
	}

	// Disconnect-triggered summaries are still in flight; give them the same
	// grace before exiting.
	summaryCtx, summaryCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer summaryCancel()
	if !summarizer.Shutdown(summaryCtx) {
		logger.Warn("summary jobs abandoned at shutdown")
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "realtime-gateway: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "realtime-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
