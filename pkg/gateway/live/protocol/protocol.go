// Package protocol defines the websocket wire frames for a session. The
// client sends plain text messages, one per turn; the server replies with
// JSON frames. Per turn the grammar is: one start frame, zero or more token
// frames in stream order, then exactly one of done or error.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	TypeStart = "start"
	TypeToken = "token"
	TypeDone  = "done"
	TypeError = "error"
)

// MaxTurnBytes bounds a single inbound turn.
const MaxTurnBytes = 16 * 1024

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// DecodeTurn validates one inbound text message and returns the turn text.
func DecodeTurn(data []byte) (string, *DecodeError) {
	if len(data) > MaxTurnBytes {
		return "", badRequest(fmt.Sprintf("turn exceeds %d bytes", MaxTurnBytes), "text")
	}
	if !utf8.Valid(data) {
		return "", badRequest("turn is not valid utf-8", "text")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", badRequest("turn text is required", "text")
	}
	return text, nil
}

// ServerStart opens a streamed reply.
type ServerStart struct {
	Type string `json:"type"`
}

// ServerToken carries one streamed increment.
type ServerToken struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerDone closes a streamed reply. Text is the full concatenation of the
// turn's token frames, included for client convenience.
type ServerDone struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ServerError is terminal for the turn it follows; the connection stays up.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func Start() ServerStart            { return ServerStart{Type: TypeStart} }
func Token(text string) ServerToken { return ServerToken{Type: TypeToken, Text: text} }
func Done(text string) ServerDone   { return ServerDone{Type: TypeDone, Text: text} }

func Error(code, msg string) ServerError {
	return ServerError{Type: TypeError, Code: code, Message: msg}
}

// Encode marshals a server frame. Frames are plain structs so a marshal
// failure indicates a programming error; it is still surfaced.
func Encode(frame any) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}
