// Package summary finalizes sessions after disconnect: it renders the
// persisted transcript, asks the model for a summary, and stamps the session
// row with end time, duration, and summary text. Work runs on a small
// background pool so disconnect handling never blocks on the model.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store"
)

const (
	defaultWorkers    = 2
	defaultQueueSize  = 64
	defaultJobTimeout = 60 * time.Second

	// A transcript needs at least this many non-system events to be worth a
	// model call.
	minSummarizableEvents = 2

	placeholderSummary = "Session too short to summarize."
	fallbackSummary    = "Summary unavailable: summarization failed."
)

type Options struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	Now        func() time.Time
}

type Summarizer struct {
	store      store.Store
	backend    backend.Backend
	logger     *slog.Logger
	jobs       chan string
	wg         sync.WaitGroup
	closed     atomic.Bool
	jobTimeout time.Duration
	now        func() time.Time
}

// New builds the summarizer and starts its workers.
func New(st store.Store, b backend.Backend, logger *slog.Logger, opts Options) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Summarizer{
		store:      st,
		backend:    b,
		logger:     logger,
		jobs:       make(chan string, opts.QueueSize),
		jobTimeout: opts.JobTimeout,
		now:        opts.Now,
	}
	for i := 0; i < opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Enqueue schedules post-session processing for a disconnected session.
// Non-blocking: when the queue is full or the summarizer is shut down the job
// is dropped and logged, never the caller stalled.
func (s *Summarizer) Enqueue(sessionID string) bool {
	if s.closed.Load() {
		s.logger.Warn("summary job dropped, summarizer closed", "session_id", sessionID)
		return false
	}
	select {
	case s.jobs <- sessionID:
		return true
	default:
		s.logger.Warn("summary job dropped, queue full", "session_id", sessionID)
		return false
	}
}

// Shutdown stops intake and waits for in-flight jobs until ctx ends.
func (s *Summarizer) Shutdown(ctx context.Context) bool {
	if !s.closed.CompareAndSwap(false, true) {
		return true
	}
	close(s.jobs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Summarizer) worker() {
	defer s.wg.Done()
	for sessionID := range s.jobs {
		s.process(sessionID)
	}
}

func (s *Summarizer) process(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	logger := s.logger.With("session_id", sessionID)

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		logger.Error("summary: load session failed", "error", err)
		return
	}
	if session.Finalized() {
		logger.Debug("summary: session already finalized, skipping")
		return
	}

	text := s.summaryFor(ctx, logger, sessionID)

	endTime := s.now().UTC()
	duration := int64(endTime.Sub(session.StartTime).Seconds())
	if duration < 0 {
		duration = 0
	}

	err = s.store.FinalizeSession(ctx, sessionID, endTime, duration, text)
	switch {
	case errors.Is(err, store.ErrAlreadyFinalized):
		logger.Debug("summary: finalize raced, keeping existing result")
		return
	case err != nil:
		logger.Error("summary: finalize failed", "error", err)
		return
	}

	if err := s.store.LogEvent(ctx, sessionID, store.EventSystem, store.RoleSystem,
		"session finalized", map[string]any{
			"duration_seconds": duration,
			"summary_chars":    len(text),
		}); err != nil {
		logger.Error("summary: finalize event failed", "error", err)
	}
	logger.Info("session finalized", "duration_seconds", duration)
}

// summaryFor always returns usable summary text: a model summary when the
// transcript warrants one, otherwise a placeholder or fallback. Finalization
// must not be blocked by a summarization failure.
func (s *Summarizer) summaryFor(ctx context.Context, logger *slog.Logger, sessionID string) string {
	events, err := s.store.FetchTranscript(ctx, sessionID)
	if err != nil {
		logger.Error("summary: fetch transcript failed", "error", err)
		return fallbackSummary
	}

	transcript, substantive := renderTranscript(events)
	if substantive < minSummarizableEvents {
		return placeholderSummary
	}

	text, err := s.backend.Summarize(ctx, transcript)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Error("summary: summarization failed", "error", err)
		return fallbackSummary
	}
	return strings.TrimSpace(text)
}

// renderTranscript flattens events to "role: content" lines, oldest first,
// skipping system bookkeeping. It also reports the number of substantive
// (non-system) events.
func renderTranscript(events []store.Event) (string, int) {
	var b strings.Builder
	substantive := 0
	for _, ev := range events {
		if ev.EventType == store.EventSystem {
			continue
		}
		substantive++
		fmt.Fprintf(&b, "%s: %s\n", ev.Role, ev.Content)
	}
	return b.String(), substantive
}
