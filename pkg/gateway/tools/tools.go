// Package tools is the side-effect layer invoked mid-turn. Executors are
// looked up by name in a Registry; the built-in executors are deterministic
// simulations, but the interface allows a real implementation to be swapped
// in without touching any caller.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
)

// ErrorCode classifies tool failures.
type ErrorCode string

const (
	CodeUnknownTool      ErrorCode = "unknown_tool"
	CodeInvalidArguments ErrorCode = "invalid_arguments"
	CodeExecutionFailed  ErrorCode = "execution_failed"
)

// ToolError is a tool invocation failure. Missing required arguments are a
// planner concern and should be resolved with a clarifying question before
// invocation; reaching the executor with bad arguments is a hard error.
type ToolError struct {
	Code    ErrorCode
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Executor is one named side-effect operation.
type Executor interface {
	Name() string
	Spec() backend.ToolSpec
	Execute(ctx context.Context, args map[string]any) (string, *ToolError)
}

// Registry holds the executors available to a session.
type Registry struct {
	byName map[string]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	registry := &Registry{byName: make(map[string]Executor, len(executors))}
	for _, ex := range executors {
		if ex == nil {
			continue
		}
		registry.byName[ex.Name()] = ex
	}
	return registry
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the tool specs in name order, for the backend's
// tool-selection call.
func (r *Registry) Specs() []backend.ToolSpec {
	if r == nil {
		return nil
	}
	specs := make([]backend.ToolSpec, 0, len(r.byName))
	for _, name := range r.Names() {
		specs = append(specs, r.byName[name].Spec())
	}
	return specs
}

// Spec returns the spec for one tool.
func (r *Registry) Spec(name string) (backend.ToolSpec, bool) {
	if r == nil {
		return backend.ToolSpec{}, false
	}
	ex, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return backend.ToolSpec{}, false
	}
	return ex.Spec(), true
}

func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, *ToolError) {
	if r == nil {
		return "", &ToolError{Code: CodeUnknownTool, Message: "tool registry is not configured"}
	}
	ex, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return "", &ToolError{Code: CodeUnknownTool, Message: fmt.Sprintf("unknown tool %q", name)}
	}
	return ex.Execute(ctx, args)
}

// stringArg extracts a required non-empty string argument.
func stringArg(args map[string]any, key string) (string, *ToolError) {
	raw, ok := args[key]
	if !ok {
		return "", &ToolError{Code: CodeInvalidArguments, Message: fmt.Sprintf("missing argument %q", key)}
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", &ToolError{Code: CodeInvalidArguments, Message: fmt.Sprintf("argument %q must be a non-empty string", key)}
	}
	return strings.TrimSpace(s), nil
}
