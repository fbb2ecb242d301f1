// Package planner decides, for one turn, whether to answer directly, invoke
// a tool, or ask a clarifying follow-up question. The backend's tool choice
// is authoritative; the planner only fills in conversation state the backend
// cannot see: partially-collected parameters from earlier turns.
package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/tools"
)

// Kind is the outcome of planning one turn.
type Kind string

const (
	DirectAnswer Kind = "direct_answer"
	ToolCall     Kind = "tool_call"
	Clarify      Kind = "clarify"
)

// Plan is the decision for one turn.
type Plan struct {
	Kind     Kind
	Tool     string
	Args     map[string]any
	Question string // set when Kind == Clarify
}

// PendingIntent is a tool intent recorded across turns while required
// parameters are still being collected. It is part of the in-memory session
// context and is never persisted.
type PendingIntent struct {
	Tool string
	Args map[string]any
}

type Planner struct {
	backend  backend.Backend
	registry *tools.Registry
}

func New(b backend.Backend, registry *tools.Registry) *Planner {
	return &Planner{backend: b, registry: registry}
}

var argPattern = regexp.MustCompile(`(?i)([a-z_]+)\s*[=:]\s*([A-Za-z0-9_-]+)`)

// Plan inspects the latest turn. It returns the plan and the pending intent
// to carry into the next turn (nil unless the plan is a clarification).
// A backend failure is returned as-is for the caller to convert into an
// error frame.
func (p *Planner) Plan(ctx context.Context, history []backend.Message, pending *PendingIntent) (Plan, *PendingIntent, error) {
	decision, err := p.backend.Decide(ctx, history, p.registry.Specs())
	if err != nil {
		return Plan{}, pending, err
	}

	tool := decision.Tool
	args := cloneArgs(decision.Args)

	// No fresh tool choice: the turn may be answering an earlier follow-up.
	if tool == "" && pending != nil {
		tool = pending.Tool
		args = mergeArgs(cloneArgs(pending.Args), args)
	}
	if tool == "" {
		return Plan{Kind: DirectAnswer}, nil, nil
	}

	spec, known := p.registry.Spec(tool)
	if !known {
		// Let the invocation layer report UnknownTool; the planner does not
		// second-guess the model's choice.
		return Plan{Kind: ToolCall, Tool: tool, Args: args}, nil, nil
	}

	args = fillFromTurn(args, spec, lastUserMessage(history))
	missing := missingParams(spec, args)
	if len(missing) > 0 {
		return Plan{
			Kind:     Clarify,
			Tool:     tool,
			Question: clarifyQuestion(spec, missing),
		}, &PendingIntent{Tool: tool, Args: args}, nil
	}

	return Plan{Kind: ToolCall, Tool: tool, Args: keepKnownParams(spec, args)}, nil, nil
}

// fillFromTurn completes args from the latest user message: explicit
// key=value pairs first, then, when exactly one required parameter is still
// missing and the message is a single bare token, that token is taken as the
// answer to the follow-up question.
func fillFromTurn(args map[string]any, spec backend.ToolSpec, turn string) map[string]any {
	if args == nil {
		args = make(map[string]any)
	}
	for _, m := range argPattern.FindAllStringSubmatch(turn, -1) {
		key := strings.ToLower(m[1])
		if _, isParam := spec.Parameters[key]; !isParam {
			continue
		}
		if _, have := args[key]; !have {
			args[key] = m[2]
		}
	}

	missing := missingParams(spec, args)
	if len(missing) == 1 {
		token := strings.TrimSpace(turn)
		if token != "" && !strings.ContainsAny(token, " \t\n") {
			args[missing[0]] = token
		}
	}
	return args
}

func missingParams(spec backend.ToolSpec, args map[string]any) []string {
	var missing []string
	for _, req := range spec.Required {
		if s, ok := args[req].(string); !ok || strings.TrimSpace(s) == "" {
			missing = append(missing, req)
		}
	}
	return missing
}

func keepKnownParams(spec backend.ToolSpec, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for key, val := range args {
		if _, ok := spec.Parameters[key]; ok {
			out[key] = val
		}
	}
	return out
}

func clarifyQuestion(spec backend.ToolSpec, missing []string) string {
	goal := strings.TrimSuffix(spec.Description, ".")
	if goal != "" {
		goal = strings.ToLower(goal[:1]) + goal[1:]
	} else {
		goal = "run " + spec.Name
	}
	return fmt.Sprintf("Could you share your %s? I need it to %s.", strings.Join(missing, " and "), goal)
}

func lastUserMessage(history []backend.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

func mergeArgs(base, overlay map[string]any) map[string]any {
	for k, v := range overlay {
		base[k] = v
	}
	return base
}
