// Package mock is the deterministic stand-in used when no model credential is
// configured. Tool selection follows a fixed keyword priority list and
// streaming chunks a precomputed reply, so protocol behavior is fully
// reproducible in tests and demos.
package mock

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
)

const maxEchoLen = 160

// keywordRule maps trigger keywords to a tool, checked in order. The first
// rule whose keyword appears in the latest user message wins; this is the
// documented tie-break for mock mode.
type keywordRule struct {
	keywords []string
	tool     string
}

var rules = []keywordRule{
	{keywords: []string{"balance"}, tool: "fetch_account_balance"},
	{keywords: []string{"order", "shipping", "delivery"}, tool: "fetch_order_status"},
}

var argPattern = regexp.MustCompile(`(?i)([a-z_]+)\s*[=:]\s*([A-Za-z0-9_-]+)`)

type Backend struct{}

var _ backend.Backend = Backend{}

func New() Backend {
	return Backend{}
}

func (Backend) Decide(_ context.Context, history []backend.Message, tools []backend.ToolSpec) (backend.Decision, error) {
	last := lastUserMessage(history)
	lowered := strings.ToLower(last)

	for _, rule := range rules {
		if !toolAvailable(tools, rule.tool) {
			continue
		}
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return backend.Decision{Tool: rule.tool, Args: extractArgs(history)}, nil
			}
		}
	}
	return backend.Decision{}, nil
}

func (Backend) Stream(_ context.Context, history []backend.Message) (backend.TokenStream, error) {
	return newWordStream(replyFor(history)), nil
}

func (Backend) Summarize(_ context.Context, transcript string) (string, error) {
	lines := 0
	for _, ln := range strings.Split(transcript, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines++
		}
	}
	return strings.Join([]string{
		"- Session completed (mock mode).",
		fmt.Sprintf("- Total transcript lines: %d.", lines),
		"- Key topics: realtime chat, streaming, persistence, and post-session summary.",
	}, "\n"), nil
}

// replyFor builds the full assistant reply before streaming. If the turn
// carries a tool result, the answer references it; otherwise the latest user
// message is echoed back in a fixed template.
func replyFor(history []backend.Message) string {
	if len(history) > 0 && history[len(history)-1].Role == "tool" {
		return "Here is what I found: " + history[len(history)-1].Content
	}
	last := lastUserMessage(history)
	if len(last) > maxEchoLen {
		last = last[:maxEchoLen]
	}
	return "Got it. Here is a concise response based on your message: " + last
}

func lastUserMessage(history []backend.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

func toolAvailable(tools []backend.ToolSpec, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// extractArgs scans the history, newest message first, for key=value or
// key: value pairs. The first occurrence of a key wins so the latest turn
// overrides older ones.
func extractArgs(history []backend.Message) map[string]any {
	args := make(map[string]any)
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != "user" {
			continue
		}
		for _, m := range argPattern.FindAllStringSubmatch(history[i].Content, -1) {
			key := strings.ToLower(m[1])
			if _, seen := args[key]; !seen {
				args[key] = m[2]
			}
		}
	}
	return args
}

// wordStream replays a fixed reply word by word.
type wordStream struct {
	chunks []string
	pos    int
}

func newWordStream(text string) *wordStream {
	words := strings.SplitAfter(text, " ")
	chunks := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		chunks = append(chunks, w)
	}
	return &wordStream{chunks: chunks}
}

func (s *wordStream) Next() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	tok := s.chunks[s.pos]
	s.pos++
	return tok, nil
}

func (s *wordStream) Close() error {
	s.pos = len(s.chunks)
	return nil
}
