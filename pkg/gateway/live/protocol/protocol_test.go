package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeTurn_TrimsWhitespace(t *testing.T) {
	text, derr := DecodeTurn([]byte("  hello there \n"))
	if derr != nil {
		t.Fatalf("unexpected decode error: %v", derr)
	}
	if text != "hello there" {
		t.Fatalf("text = %q, want %q", text, "hello there")
	}
}

func TestDecodeTurn_RejectsEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		if _, derr := DecodeTurn([]byte(raw)); derr == nil {
			t.Fatalf("DecodeTurn(%q) accepted an empty turn", raw)
		}
	}
}

func TestDecodeTurn_RejectsOversize(t *testing.T) {
	_, derr := DecodeTurn([]byte(strings.Repeat("a", MaxTurnBytes+1)))
	if derr == nil {
		t.Fatal("expected oversize turn to be rejected")
	}
	if derr.Code != "bad_request" {
		t.Fatalf("code = %q, want bad_request", derr.Code)
	}
}

func TestDecodeTurn_RejectsInvalidUTF8(t *testing.T) {
	if _, derr := DecodeTurn([]byte{0xff, 0xfe}); derr == nil {
		t.Fatal("expected invalid utf-8 to be rejected")
	}
}

func TestEncode_FrameShapes(t *testing.T) {
	cases := []struct {
		frame any
		want  map[string]any
	}{
		{Start(), map[string]any{"type": "start"}},
		{Token("hel"), map[string]any{"type": "token", "text": "hel"}},
		{Done("hello"), map[string]any{"type": "done", "text": "hello"}},
		{Error("backend_unavailable", "boom"), map[string]any{"type": "error", "code": "backend_unavailable", "message": "boom"}},
	}
	for _, tc := range cases {
		data, err := Encode(tc.frame)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", tc.frame, err)
		}
		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("frame is not valid JSON: %v", err)
		}
		for k, v := range tc.want {
			if got[k] != v {
				t.Fatalf("frame %s: field %q = %v, want %v", data, k, got[k], v)
			}
		}
	}
}

func TestEncode_DoneOmitsEmptyText(t *testing.T) {
	data, err := Encode(Done(""))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(data), "text") {
		t.Fatalf("empty done should omit text, got %s", data)
	}
}

func TestDecodeError_Error(t *testing.T) {
	e := badRequest("turn text is required", "text")
	if got := e.Error(); got != "turn text is required (text)" {
		t.Fatalf("Error() = %q", got)
	}
	e = badRequest("invalid frame", "")
	if got := e.Error(); got != "invalid frame" {
		t.Fatalf("Error() = %q", got)
	}
}
