package core

import (
	"fmt"
)

// Error is the canonical error shape shared across the gateway. Turn-scoped
// and job-scoped failures are converted into one of these before they reach a
// client frame or a log line.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrMalformedInput marks a bad client payload. The turn is rejected,
	// the connection stays up.
	ErrMalformedInput ErrorType = "malformed_input"

	// ErrBackendUnavailable marks a failed or timed-out model call. The turn
	// is aborted with an error frame, the connection stays up.
	ErrBackendUnavailable ErrorType = "backend_unavailable"

	// ErrTool marks a tool invocation failure. Code carries the variant:
	// unknown_tool, invalid_arguments, or execution_failed.
	ErrTool ErrorType = "tool_error"

	// ErrPersistenceTransient marks a retryable store failure. It never
	// surfaces to the user-facing turn.
	ErrPersistenceTransient ErrorType = "persistence_transient"

	// ErrSummarization marks a failed summary generation; finalization still
	// proceeds with fallback text.
	ErrSummarization ErrorType = "summarization_failure"
)

// NewMalformedInputError creates a malformed input error.
func NewMalformedInputError(message string) *Error {
	return &Error{
		Type:    ErrMalformedInput,
		Message: message,
	}
}

// NewBackendUnavailableError creates a backend unavailable error.
func NewBackendUnavailableError(message string) *Error {
	return &Error{
		Type:    ErrBackendUnavailable,
		Message: message,
	}
}
