package mock

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
)

var testTools = []backend.ToolSpec{
	{Name: "fetch_account_balance", Required: []string{"user_id"}},
	{Name: "fetch_order_status", Required: []string{"order_id"}},
}

func userTurn(text string) []backend.Message {
	return []backend.Message{{Role: "user", Content: text}}
}

func TestDecide_BalanceKeyword(t *testing.T) {
	d, err := New().Decide(context.Background(), userTurn("what is my balance?"), testTools)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Tool != "fetch_account_balance" {
		t.Fatalf("tool = %q, want fetch_account_balance", d.Tool)
	}
}

func TestDecide_BalanceWinsOverOrder(t *testing.T) {
	d, err := New().Decide(context.Background(), userTurn("check my order balance"), testTools)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Tool != "fetch_account_balance" {
		t.Fatalf("tool = %q, balance keyword should win the tie", d.Tool)
	}
}

func TestDecide_NoKeywordNoTool(t *testing.T) {
	d, err := New().Decide(context.Background(), userTurn("tell me a joke"), testTools)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Tool != "" {
		t.Fatalf("tool = %q, want direct answer", d.Tool)
	}
}

func TestDecide_SkipsUnavailableTool(t *testing.T) {
	only := []backend.ToolSpec{{Name: "fetch_order_status"}}
	d, err := New().Decide(context.Background(), userTurn("what is my balance?"), only)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Tool != "" {
		t.Fatalf("tool = %q, want none when balance tool is absent", d.Tool)
	}
}

func TestDecide_ArgsPreserveValueCase(t *testing.T) {
	d, err := New().Decide(context.Background(), userTurn("order status for order_id=ORD-77 please"), testTools)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Args["order_id"] != "ORD-77" {
		t.Fatalf("order_id = %v, want ORD-77", d.Args["order_id"])
	}
}

func TestDecide_LatestTurnWinsArgConflict(t *testing.T) {
	history := []backend.Message{
		{Role: "user", Content: "balance for user_id=old"},
		{Role: "assistant", Content: "sure"},
		{Role: "user", Content: "actually balance for user_id=new"},
	}
	d, err := New().Decide(context.Background(), history, testTools)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Args["user_id"] != "new" {
		t.Fatalf("user_id = %v, want new", d.Args["user_id"])
	}
}

func TestStream_RoundTripsReply(t *testing.T) {
	history := userTurn("hello there")
	stream, err := New().Stream(context.Background(), history)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	var got strings.Builder
	for {
		tok, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got.WriteString(tok)
	}

	want := replyFor(history)
	if got.String() != want {
		t.Fatalf("concatenated tokens = %q, want %q", got.String(), want)
	}
	if !strings.Contains(got.String(), "hello there") {
		t.Fatalf("reply does not echo the user message: %q", got.String())
	}
}

func TestStream_ToolResultReply(t *testing.T) {
	history := []backend.Message{
		{Role: "user", Content: "what is my balance? user_id=u1"},
		{Role: "tool", Content: `{"balance":120.00}`},
	}
	want := replyFor(history)
	if !strings.HasPrefix(want, "Here is what I found: ") {
		t.Fatalf("tool-result reply = %q", want)
	}
}

func TestSummarize_CountsTranscriptLines(t *testing.T) {
	summary, err := New().Summarize(context.Background(), "user: hi\nassistant: hello\n\n")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(summary, "Total transcript lines: 2.") {
		t.Fatalf("summary = %q", summary)
	}
}
