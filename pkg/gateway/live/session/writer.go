package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// outboundWriter owns all writes to the websocket. Frames arrive on a single
// queue; the writer also keeps the connection alive with periodic pings.
type outboundWriter struct {
	ws       wsWriter
	ctx      context.Context
	cfg      Config
	outbound <-chan []byte
}

func (w *outboundWriter) Run() error {
	if w == nil || w.ws == nil {
		return nil
	}

	pingInterval := w.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := w.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		if w.ctx != nil {
			select {
			case <-w.ctx.Done():
				w.flushOnShutdown(writeTimeout)
				_ = w.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
				_ = w.ws.Close()
				return nil
			default:
			}
		}

		select {
		case <-pingTicker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := w.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		case payload, ok := <-w.outbound:
			if !ok {
				return nil
			}
			if err := w.writeFrame(payload, writeTimeout); err != nil {
				return err
			}
		case <-w.ctxDone():
		}
	}
}

func (w *outboundWriter) ctxDone() <-chan struct{} {
	if w.ctx == nil {
		return nil
	}
	return w.ctx.Done()
}

// flushOnShutdown drains a handful of queued frames so a terminal done or
// error frame reaches the client before the close handshake.
func (w *outboundWriter) flushOnShutdown(writeTimeout time.Duration) {
	if w == nil || w.ws == nil || w.outbound == nil {
		return
	}

	flushTimeout := 100 * time.Millisecond
	if writeTimeout > 0 && writeTimeout < flushTimeout {
		flushTimeout = writeTimeout
	}
	if flushTimeout <= 0 {
		return
	}

	deadline := time.Now().Add(flushTimeout)
	maxFlushFrames := 8

	for i := 0; i < maxFlushFrames && time.Now().Before(deadline); i++ {
		select {
		case payload, ok := <-w.outbound:
			if !ok {
				return
			}
			_ = w.writeFrame(payload, writeTimeout)
		default:
			return
		}
	}
}

func (w *outboundWriter) writeFrame(payload []byte, writeTimeout time.Duration) error {
	if len(payload) == 0 {
		return nil
	}
	if err := w.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, payload)
}
