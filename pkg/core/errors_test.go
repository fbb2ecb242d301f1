package core

import "testing"

func TestError_FormatsTypeAndCode(t *testing.T) {
	err := NewMalformedInputError("empty message")
	if err.Type != ErrMalformedInput {
		t.Fatalf("type = %q", err.Type)
	}
	if got := err.Error(); got != "malformed_input: empty message" {
		t.Fatalf("error = %q", got)
	}

	err.Code = "bad_request"
	if got := err.Error(); got != "malformed_input: empty message (code: bad_request)" {
		t.Fatalf("error with code = %q", got)
	}
}

func TestNewBackendUnavailableError(t *testing.T) {
	err := NewBackendUnavailableError("model down")
	if err.Type != ErrBackendUnavailable || err.Message != "model down" {
		t.Fatalf("err = %+v", err)
	}
}
