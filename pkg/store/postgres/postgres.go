// Package postgres implements the session store on PostgreSQL via pgx.
//
// Event writes never fail the caller's turn: transient errors are retried
// with bounded backoff, and when retries are exhausted the event is degraded
// to the process log. The degradation itself is recorded as a system event on
// the next successful write so the gap is visible in the transcript.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store"
)

type dbconn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Options tune the bounded retry applied to event inserts.
type Options struct {
	MaxRetries   uint64
	RetryBackoff time.Duration
}

// Store is a pgx-backed store.Store.
type Store struct {
	db     dbconn
	logger *slog.Logger
	opts   Options

	mu       sync.Mutex
	degraded map[string][]string // pending degraded-write notes per session, flushed on that session's next successful insert
}

var _ store.Store = (*Store)(nil)

// New builds a Store on an existing connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger, opts Options) *Store {
	return newWithDB(pool, logger, opts)
}

func newWithDB(db dbconn, logger *slog.Logger, opts Options) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	return &Store{db: db, logger: logger, opts: opts, degraded: make(map[string][]string)}
}

func (s *Store) UpsertSession(ctx context.Context, sessionID, userID string) error {
	_, err := s.db.Exec(ctx, `
		insert into sessions(session_id, user_id, start_time)
		values($1, nullif($2, ''), now())
		on conflict (session_id) do update
		set user_id = coalesce(nullif(excluded.user_id, ''), sessions.user_id)
	`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var (
		sess   store.Session
		userID *string
	)
	err := s.db.QueryRow(ctx, `
		select session_id, user_id, start_time, end_time, duration_seconds, summary
		from sessions
		where session_id = $1
	`, sessionID).Scan(&sess.SessionID, &userID, &sess.StartTime, &sess.EndTime, &sess.DurationSeconds, &sess.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Session{}, store.ErrSessionNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if userID != nil {
		sess.UserID = *userID
	}
	return sess, nil
}

func (s *Store) LogEvent(ctx context.Context, sessionID, eventType, role, content string, meta map[string]any) error {
	if err := s.insertWithRetry(ctx, sessionID, eventType, role, content, meta); err != nil {
		note := fmt.Sprintf("event degraded to local log: type=%s role=%s", eventType, role)
		s.mu.Lock()
		s.degraded[sessionID] = append(s.degraded[sessionID], note)
		s.mu.Unlock()
		s.logger.Error("event write degraded",
			"session_id", sessionID,
			"event_type", eventType,
			"role", role,
			"content", content,
			"error", err,
		)
		return nil
	}
	s.flushDegradedNotes(ctx, sessionID)
	return nil
}

func (s *Store) insertWithRetry(ctx context.Context, sessionID, eventType, role, content string, meta map[string]any) error {
	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	backoff := retry.WithMaxRetries(s.opts.MaxRetries, retry.NewFibonacci(s.opts.RetryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			insert into session_events(session_id, event_type, role, content, meta)
			values($1, $2, $3, $4, $5::jsonb)
		`, sessionID, eventType, role, content, metaJSON)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// flushDegradedNotes records the session's earlier degraded writes as one
// system event in that session's own log. Best effort: a failure here just
// keeps the notes queued.
func (s *Store) flushDegradedNotes(ctx context.Context, sessionID string) {
	s.mu.Lock()
	notes := s.degraded[sessionID]
	delete(s.degraded, sessionID)
	s.mu.Unlock()
	if len(notes) == 0 {
		return
	}

	content := fmt.Sprintf("persistence degraded: %d event(s) were written to the local log only", len(notes))
	meta := map[string]any{"degraded_events": notes}
	if err := s.insertWithRetry(ctx, sessionID, store.EventSystem, store.RoleSystem, content, meta); err != nil {
		s.mu.Lock()
		s.degraded[sessionID] = append(notes, s.degraded[sessionID]...)
		s.mu.Unlock()
	}
}

func (s *Store) FetchTranscript(ctx context.Context, sessionID string) ([]store.Event, error) {
	rows, err := s.db.Query(ctx, `
		select id, session_id, ts, event_type, role, content, meta
		from session_events
		where session_id = $1
		order by ts asc, id asc
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []store.Event
	for rows.Next() {
		var (
			ev       store.Event
			metaJSON []byte
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Timestamp, &ev.EventType, &ev.Role, &ev.Content, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &ev.Meta); err != nil {
				return nil, fmt.Errorf("decode event meta: %w", err)
			}
		}
		if ev.Meta == nil {
			ev.Meta = map[string]any{}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch transcript %s: %w", sessionID, err)
	}
	return out, nil
}

func (s *Store) FinalizeSession(ctx context.Context, sessionID string, endTime time.Time, durationSeconds int64, summary string) error {
	tag, err := s.db.Exec(ctx, `
		update sessions
		set end_time = $2,
		    duration_seconds = $3,
		    summary = $4
		where session_id = $1 and end_time is null
	`, sessionID, endTime, durationSeconds, summary)
	if err != nil {
		return fmt.Errorf("finalize session %s: %w", sessionID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := s.GetSession(ctx, sessionID); errors.Is(err, store.ErrSessionNotFound) {
		return store.ErrSessionNotFound
	}
	return store.ErrAlreadyFinalized
}

func encodeMeta(meta map[string]any) ([]byte, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode event meta: %w", err)
	}
	return b, nil
}
