// Package session runs one live websocket conversation: a reader goroutine
// feeding a strictly sequential turn loop, and a writer goroutine that owns
// the socket's write side. One turn is fully processed (planned, optionally
// one tool hop, streamed, persisted) before the next inbound message is
// consumed.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/core"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/live/protocol"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/planner"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/gateway/tools"
	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/store"
)

const maxHistoryMessages = 40

type wsConn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	wsWriter
}

type Config struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	TurnTimeout       time.Duration
	ToolTimeout       time.Duration
	OutboundQueueSize int
}

type Dependencies struct {
	Conn      wsConn
	Logger    *slog.Logger
	Store     store.Store
	Backend   backend.Backend
	Planner   *planner.Planner
	Tools     *tools.Registry
	SessionID string
	UserID    string
	RequestID string
	Config    Config
}

type LiveSession struct {
	conn      wsConn
	logger    *slog.Logger
	store     store.Store
	backend   backend.Backend
	planner   *planner.Planner
	tools     *tools.Registry
	sessionID string
	userID    string
	requestID string
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc

	outbound chan []byte

	// In-memory conversation context. Owned by the turn loop, never shared,
	// discarded on disconnect.
	history []backend.Message
	pending *planner.PendingIntent
}

type inboundFrame struct {
	data []byte
	err  error
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if deps.Planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if deps.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.Config.TurnTimeout <= 0 {
		deps.Config.TurnTimeout = 60 * time.Second
	}
	if deps.Config.ToolTimeout <= 0 {
		deps.Config.ToolTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LiveSession{
		conn:      deps.Conn,
		logger:    deps.Logger.With("session_id", deps.SessionID, "request_id", deps.RequestID),
		store:     deps.Store,
		backend:   deps.Backend,
		planner:   deps.Planner,
		tools:     deps.Tools,
		sessionID: deps.SessionID,
		userID:    deps.UserID,
		requestID: deps.RequestID,
		cfg:       deps.Config,
		ctx:       ctx,
		cancel:    cancel,
		outbound:  make(chan []byte, deps.Config.OutboundQueueSize),
	}, nil
}

// Cancel tears the session down; safe from any goroutine.
func (s *LiveSession) Cancel() { s.cancel() }

// NotifyShutdown tells the client the server is draining. Best effort.
func (s *LiveSession) NotifyShutdown(message string) error {
	return s.sendFrame(protocol.Error("shutting_down", message))
}

// Run processes the connection until the client disconnects or the session is
// canceled. The returned error reflects transport failures only; turn-level
// failures stay on the wire as error frames.
func (s *LiveSession) Run() error {
	defer s.cancel()

	s.conn.SetReadLimit(protocol.MaxTurnBytes + 1024)
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	readCh := make(chan inboundFrame, 16)
	go s.readLoop(readCh)

	writerErrCh := make(chan error, 1)
	go func() {
		w := outboundWriter{
			ws:       s.conn,
			ctx:      s.ctx,
			cfg:      s.cfg,
			outbound: s.outbound,
		}
		err := w.Run()
		// A dead writer means nothing drains outbound anymore; cancel so a
		// turn blocked in sendFrame unwinds instead of filling the queue.
		s.cancel()
		writerErrCh <- err
		close(writerErrCh)
	}()
	defer func() {
		s.cancel()
		select {
		case <-writerErrCh:
		case <-time.After(200 * time.Millisecond):
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case err := <-writerErrCh:
			return err
		case frame, ok := <-readCh:
			if !ok {
				return nil
			}
			if frame.err != nil {
				if isExpectedClose(frame.err) {
					return nil
				}
				return frame.err
			}
			s.handleInbound(frame.data)
		}
	}
}

func (s *LiveSession) readLoop(readCh chan<- inboundFrame) {
	defer close(readCh)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case readCh <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		if s.cfg.ReadTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case readCh <- inboundFrame{data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LiveSession) handleInbound(data []byte) {
	text, derr := protocol.DecodeTurn(data)
	if derr != nil {
		cerr := core.NewMalformedInputError(derr.Message)
		cerr.Code = derr.Code
		s.logger.Warn("malformed turn", "error", cerr)
		s.logSystemEvent("malformed inbound message: "+cerr.Message, map[string]any{"code": cerr.Code})
		_ = s.sendFrame(protocol.Error(cerr.Code, cerr.Message))
		return
	}
	s.handleTurn(text)
}

// handleTurn runs one full turn. Any failure after the user message is
// accepted becomes a terminal error frame for this turn; the connection and
// the session survive.
func (s *LiveSession) handleTurn(text string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.TurnTimeout)
	defer cancel()

	s.appendHistory(backend.Message{Role: store.RoleUser, Content: text})
	s.logEvent(store.EventUserMessage, store.RoleUser, text, nil)

	plan, pending, err := s.planner.Plan(ctx, s.history, s.pending)
	if err != nil {
		s.failTurn(ctx, err)
		return
	}
	s.pending = pending

	switch plan.Kind {
	case planner.Clarify:
		s.streamCanned(plan.Question)
	case planner.ToolCall:
		s.runToolTurn(ctx, plan)
	default:
		s.streamReply(ctx)
	}
}

// runToolTurn performs the single tool hop: invoke, persist both sides of the
// exchange, then stream a reply grounded on the result.
func (s *LiveSession) runToolTurn(ctx context.Context, plan planner.Plan) {
	s.logEvent(store.EventToolCall, store.RoleAssistant,
		fmt.Sprintf("calling %s", plan.Tool),
		map[string]any{"tool": plan.Tool, "args": plan.Args})

	toolCtx, cancel := context.WithTimeout(ctx, s.cfg.ToolTimeout)
	result, terr := s.tools.Execute(toolCtx, plan.Tool, plan.Args)
	cancel()
	if terr != nil {
		s.logger.Warn("tool failed", "tool", plan.Tool, "error", terr)
		s.logSystemEvent("tool failed: "+terr.Message, map[string]any{"tool": plan.Tool, "code": string(terr.Code)})
		_ = s.sendFrame(protocol.Error(string(terr.Code), terr.Message))
		return
	}

	s.logEvent(store.EventToolResult, store.RoleTool, result, map[string]any{"tool": plan.Tool})
	s.appendHistory(backend.Message{Role: store.RoleTool, Content: result})
	s.streamReply(ctx)
}

// streamReply streams the model's answer for the current history: one start
// frame, token frames in order, then done carrying the concatenation. The
// concatenation is persisted as a single assistant_message event.
func (s *LiveSession) streamReply(ctx context.Context) {
	stream, err := s.backend.Stream(ctx, s.history)
	if err != nil {
		s.failTurn(ctx, err)
		return
	}
	defer stream.Close()

	if err := s.sendFrame(protocol.Start()); err != nil {
		return
	}

	var full string
	for {
		tok, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.failTurn(ctx, err)
			return
		}
		full += tok
		if err := s.sendFrame(protocol.Token(tok)); err != nil {
			return
		}
	}

	if err := s.sendFrame(protocol.Done(full)); err != nil {
		return
	}
	s.logEvent(store.EventAssistantMessage, store.RoleAssistant, full, nil)
	s.appendHistory(backend.Message{Role: store.RoleAssistant, Content: full})
}

// streamCanned emits fixed text (a clarifying question) with the same frame
// grammar as a model reply, chunked by word.
func (s *LiveSession) streamCanned(text string) {
	if err := s.sendFrame(protocol.Start()); err != nil {
		return
	}
	for _, tok := range splitTokens(text) {
		if err := s.sendFrame(protocol.Token(tok)); err != nil {
			return
		}
	}
	if err := s.sendFrame(protocol.Done(text)); err != nil {
		return
	}
	s.logEvent(store.EventAssistantMessage, store.RoleAssistant, text, map[string]any{"clarify": true})
	s.appendHistory(backend.Message{Role: store.RoleAssistant, Content: text})
}

// failTurn converts a backend failure into a terminal error frame. A timeout
// surfaces as backend_unavailable per the error taxonomy.
func (s *LiveSession) failTurn(ctx context.Context, err error) {
	code := "backend_unavailable"
	message := "model backend is unavailable"
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		code = string(coreErr.Type)
		message = coreErr.Message
	}
	if ctx.Err() != nil && s.ctx.Err() == nil {
		code = "backend_unavailable"
		message = "turn timed out"
	}
	s.logger.Error("turn failed", "error", err, "code", code)
	s.logSystemEvent("turn failed: "+message, map[string]any{"code": code})
	_ = s.sendFrame(protocol.Error(code, message))
}

func (s *LiveSession) sendFrame(frame any) error {
	payload, err := protocol.Encode(frame)
	if err != nil {
		s.logger.Error("encode frame failed", "error", err)
		return err
	}
	select {
	case s.outbound <- payload:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *LiveSession) appendHistory(m backend.Message) {
	s.history = append(s.history, m)
	if len(s.history) > maxHistoryMessages {
		s.history = s.history[len(s.history)-maxHistoryMessages:]
	}
}

// logEvent persists one event. Persistence problems never interrupt the turn;
// the store degrades internally and the failure is logged.
func (s *LiveSession) logEvent(eventType, role, content string, meta map[string]any) {
	if err := s.store.LogEvent(s.ctx, s.sessionID, eventType, role, content, meta); err != nil {
		s.logger.Error("log event failed", "event_type", eventType, "error", err)
	}
}

func (s *LiveSession) logSystemEvent(content string, meta map[string]any) {
	s.logEvent(store.EventSystem, store.RoleSystem, content, meta)
}

func splitTokens(text string) []string {
	var tokens []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' {
			tokens = append(tokens, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
