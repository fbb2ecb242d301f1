// Package gemini implements the backend contract on the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/core"
)

const (
	DefaultModel = "gemini-2.0-flash"

	systemPrompt = "You are a helpful assistant in a realtime chat session. " +
		"Be concise, ask clarifying questions when needed, and when a tool is " +
		"available use it ONLY if it meaningfully improves the answer."

	summarySystemPrompt = "You are an expert session summarizer."
)

type Backend struct {
	client *genai.Client
	model  string
}

var _ backend.Backend = (*Backend)(nil)

// New builds a Gemini-backed model client. model may be empty; DefaultModel
// is used then.
func New(ctx context.Context, apiKey, model string) (*Backend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Backend{client: client, model: model}, nil
}

func (b *Backend) Decide(ctx context.Context, history []backend.Message, tools []backend.ToolSpec) (backend.Decision, error) {
	if len(tools) == 0 {
		return backend.Decision{}, nil
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Tools:             []*genai.Tool{{FunctionDeclarations: toDeclarations(tools)}},
	}
	resp, err := b.client.Models.GenerateContent(ctx, b.model, toContents(history), cfg)
	if err != nil {
		return backend.Decision{}, core.NewBackendUnavailableError(fmt.Sprintf("gemini decide: %v", err))
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return backend.Decision{}, nil
	}
	// The model's ranked choice is authoritative; take the first call and
	// ignore the rest (single tool hop per turn).
	return backend.Decision{Tool: calls[0].Name, Args: calls[0].Args}, nil
}

func (b *Backend) Stream(ctx context.Context, history []backend.Message) (backend.TokenStream, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	seq := b.client.Models.GenerateContentStream(ctx, b.model, toContents(history), cfg)
	return newGenaiStream(seq), nil
}

func (b *Backend) Summarize(ctx context.Context, transcript string) (string, error) {
	prompt := "Summarize this conversation in 5-7 bullet points. " +
		"Include any actions taken (including tool usage) and the user's final intent.\n\n" +
		"TRANSCRIPT:\n" + transcript

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(summarySystemPrompt, genai.RoleUser),
	}
	resp, err := b.client.Models.GenerateContent(ctx, b.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, cfg)
	if err != nil {
		return "", &core.Error{Type: core.ErrSummarization, Message: fmt.Sprintf("gemini summarize: %v", err)}
	}
	return strings.TrimSpace(resp.Text()), nil
}

func toContents(history []backend.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case "assistant":
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleModel))
		case "tool":
			// Tool results travel back as user-role context; the contract
			// keeps history text-only.
			out = append(out, genai.NewContentFromText("Tool result: "+m.Content, genai.RoleUser))
		default:
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return out
}

func toDeclarations(tools []backend.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Parameters))
		for name, p := range t.Parameters {
			props[name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   append([]string(nil), t.Required...),
			},
		})
	}
	return decls
}

// genaiStream adapts the SDK's push iterator to the pull-based TokenStream.
type genaiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func newGenaiStream(seq iter.Seq2[*genai.GenerateContentResponse, error]) *genaiStream {
	next, stop := iter.Pull2(seq)
	return &genaiStream{next: next, stop: stop}
}

func (s *genaiStream) Next() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", core.NewBackendUnavailableError(fmt.Sprintf("gemini stream: %v", err))
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *genaiStream) Close() error {
	s.stop()
	return nil
}
