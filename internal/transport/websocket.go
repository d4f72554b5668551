package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocket adapts a gorilla websocket connection to Transport.
//
// A private goroutine owns conn reads. Ping control frames are surfaced as
// KindPing frames in the order they arrived relative to data frames, so the
// session decides how to answer them.
type WebSocket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	frames       chan Frame
	readDone     chan struct{}
	readErr      error
	closed       chan struct{}
	closeOnce    sync.Once
}

// NewWebSocket wraps an established connection and starts its read pump.
func NewWebSocket(conn *websocket.Conn, cfg DialConfig) *WebSocket {
	cfg = cfg.WithDefaults()
	w := &WebSocket{
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
		frames:       make(chan Frame, cfg.ReadBuffer),
		readDone:     make(chan struct{}),
		closed:       make(chan struct{}),
	}
	conn.SetPingHandler(func(appData string) error {
		w.push(Frame{Kind: KindPing, Data: []byte(appData)})
		return nil
	})
	go w.readPump()
	return w
}

func (w *WebSocket) push(f Frame) bool {
	select {
	case w.frames <- f:
		return true
	case <-w.closed:
		return false
	}
}

func (w *WebSocket) readPump() {
	defer close(w.readDone)
	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			w.readErr = w.mapReadErr(err)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if !w.push(TextFrame(data)) {
			w.readErr = ErrClosed
			return
		}
	}
}

func (w *WebSocket) mapReadErr(err error) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return fmt.Errorf("transport: read: %w", err)
}

func (w *WebSocket) ReadFrame(ctx context.Context) (Frame, error) {
	select {
	case f := <-w.frames:
		return f, nil
	default:
	}
	select {
	case f := <-w.frames:
		return f, nil
	case <-w.readDone:
		select {
		case f := <-w.frames:
			return f, nil
		default:
			return Frame{}, w.readErr
		}
	case <-w.closed:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (w *WebSocket) WriteFrame(ctx context.Context, f Frame) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}
	deadline := time.Now().Add(w.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	var err error
	switch f.Kind {
	case KindText:
		if err = w.conn.SetWriteDeadline(deadline); err == nil {
			err = w.conn.WriteMessage(websocket.TextMessage, f.Data)
		}
	case KindPong:
		err = w.conn.WriteControl(websocket.PongMessage, f.Data, deadline)
	case KindPing:
		err = w.conn.WriteControl(websocket.PingMessage, f.Data, deadline)
	default:
		return fmt.Errorf("transport: unsupported frame kind %s", f.Kind)
	}
	if err != nil {
		return fmt.Errorf("transport: write %s: %w", f.Kind, err)
	}
	return nil
}

// Close sends a normal-closure control frame and releases the connection.
func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = w.conn.Close()
	})
	return err
}

// Dial establishes one websocket transport.
func Dial(ctx context.Context, cfg DialConfig) (*WebSocket, error) {
	cfg = cfg.WithDefaults()
	if err := ValidateDialConfig(cfg); err != nil {
		return nil, err
	}
	netDialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	dialer := websocket.Dialer{
		NetDialContext:   netDialer.DialContext,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	tlsCfg, err := clientTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	dialer.TLSClientConfig = tlsCfg

	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", cfg.URL, err)
	}
	return NewWebSocket(conn, cfg), nil
}

// DialWithRetry dials until success, MaxAttempts is exhausted, or ctx ends.
func DialWithRetry(ctx context.Context, cfg DialConfig) (*WebSocket, error) {
	cfg = cfg.WithDefaults()
	if err := ValidateDialConfig(cfg); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var attempt int
	for {
		attempt++
		conn, err := Dial(ctx, cfg)
		if err == nil {
			return conn, nil
		}
		log.Warn().Int("attempt", attempt).Str("url", cfg.URL).Err(err).Msg("transport.Dial failed")
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return nil, err
		}
		timer := time.NewTimer(NextBackoffDelay(cfg.Backoff, attempt, rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
