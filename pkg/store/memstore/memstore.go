// Package memstore is an in-memory store.Store used by tests. It mirrors the
// Postgres implementation's contract, including the finalize-once guard and
// per-session insertion order.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store"
)

type Store struct {
	mu       sync.Mutex
	sessions map[string]store.Session
	events   map[string][]store.Event
	nextID   int64
	now      func() time.Time

	// dropLog counts upcoming LogEvent calls that silently drop their event,
	// set by DropNextLogEvents to simulate writes degraded to a local log.
	dropLog int
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		sessions: make(map[string]store.Session),
		events:   make(map[string][]store.Event),
		now:      time.Now,
	}
}

// SetNow overrides the clock, for tests that assert timestamps.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) UpsertSession(_ context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		if userID != "" {
			sess.UserID = userID
			s.sessions[sessionID] = sess
		}
		return nil
	}
	s.sessions[sessionID] = store.Session{
		SessionID: sessionID,
		UserID:    userID,
		StartTime: s.now(),
	}
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.Session{}, store.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) LogEvent(_ context.Context, sessionID, eventType, role, content string, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropLog > 0 {
		s.dropLog--
		return nil // degraded: dropped, never surfaced to the caller
	}
	if meta == nil {
		meta = map[string]any{}
	}
	s.nextID++
	s.events[sessionID] = append(s.events[sessionID], store.Event{
		ID:        s.nextID,
		SessionID: sessionID,
		Timestamp: s.now(),
		EventType: eventType,
		Role:      role,
		Content:   content,
		Meta:      meta,
	})
	return nil
}

func (s *Store) FetchTranscript(_ context.Context, sessionID string) ([]store.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[sessionID]
	out := make([]store.Event, len(events))
	copy(out, events)
	return out, nil
}

func (s *Store) FinalizeSession(_ context.Context, sessionID string, endTime time.Time, durationSeconds int64, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrSessionNotFound
	}
	if sess.EndTime != nil {
		return store.ErrAlreadyFinalized
	}
	sess.EndTime = &endTime
	sess.DurationSeconds = &durationSeconds
	sess.Summary = &summary
	s.sessions[sessionID] = sess
	return nil
}

// DropNextLogEvents makes the next n LogEvent calls silently drop their
// event, simulating a store that degraded the write to its local log.
func (s *Store) DropNextLogEvents(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLog = n
}

// EventCount returns the number of persisted events for a session.
func (s *Store) EventCount(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[sessionID])
}
