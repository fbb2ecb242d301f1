// Package backend defines the language-model capability the gateway depends
// on: tool-choice decisions, streamed text generation, and transcript
// summarization. Which implementation is active (mock or Gemini) is decided
// once at startup and is invisible to every other component.
package backend

import "context"

// Message is one entry of the conversational history handed to the model.
type Message struct {
	Role    string // user, assistant, or tool
	Content string
}

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Type        string
	Description string
}

// ToolSpec describes a callable tool for the model's tool-selection step.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]ParamSpec
	Required    []string
}

// Decision is the model's tool choice for a turn. A zero Tool means the model
// chose to answer directly. Args may be incomplete; missing required
// parameters are the planner's problem, not the backend's.
type Decision struct {
	Tool string
	Args map[string]any
}

// TokenStream yields text increments in order. Next returns io.EOF after the
// final increment. Close releases the underlying stream and is safe to call
// more than once.
type TokenStream interface {
	Next() (string, error)
	Close() error
}

// Backend is the streaming/tool-calling capability contract.
type Backend interface {
	// Decide asks the model whether the latest turn warrants a tool call.
	Decide(ctx context.Context, history []Message, tools []ToolSpec) (Decision, error)

	// Stream generates the assistant reply for the history as an ordered
	// token stream.
	Stream(ctx context.Context, history []Message) (TokenStream, error)

	// Summarize produces a concise natural-language summary of a transcript.
	Summarize(ctx context.Context, transcript string) (string, error)
}
