package store

import (
	"context"
	"errors"
	"time"
)

// Event types recorded in the session log.
const (
	EventUserMessage      = "user_message"
	EventAssistantMessage = "assistant_message"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventSystem           = "system"
)

// Roles attached to events. Redundant with the event type on purpose so the
// transcript stays usable if new event types are added.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// ErrAlreadyFinalized is returned by FinalizeSession when the session has
// already been closed. Callers treat it as a no-op: disconnect handling can
// race with a forced shutdown and both paths try to finalize.
var ErrAlreadyFinalized = errors.New("session already finalized")

// ErrSessionNotFound is returned when a session row does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Session is one conversational run.
type Session struct {
	SessionID       string
	UserID          string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds *int64
	Summary         *string
}

// Finalized reports whether the session has been closed.
func (s Session) Finalized() bool {
	return s.EndTime != nil
}

// Event is one immutable record in a session's chronological log.
type Event struct {
	ID        int64
	SessionID string
	Timestamp time.Time
	EventType string
	Role      string
	Content   string
	Meta      map[string]any
}

// Store is the persistence contract the gateway depends on: an append-only
// event sink plus the two session lifecycle mutations. Implementations must
// preserve per-session insertion order; cross-session ordering is undefined.
type Store interface {
	// UpsertSession ensures a session row exists. The first call for a
	// session_id sets start_time; later calls only refresh user_id when one
	// is supplied.
	UpsertSession(ctx context.Context, sessionID, userID string) error

	// GetSession returns the session row or ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (Session, error)

	// LogEvent appends one event with a server-assigned timestamp. It must
	// not fail the caller on a transient persistence error: implementations
	// retry a bounded number of times and then degrade to a local error log.
	LogEvent(ctx context.Context, sessionID, eventType, role, content string, meta map[string]any) error

	// FetchTranscript returns the full ordered event log for a session.
	FetchTranscript(ctx context.Context, sessionID string) ([]Event, error)

	// FinalizeSession records end_time, duration_seconds, and summary exactly
	// once. A second call returns ErrAlreadyFinalized.
	FinalizeSession(ctx context.Context, sessionID string, endTime time.Time, durationSeconds int64, summary string) error
}
