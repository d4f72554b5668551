// Package hasstest runs an in-process Home Assistant websocket gateway for
// tests. It speaks the auth handshake, answers ping, tracks event
// subscriptions, and serves canned results for other command types.
package hasstest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/hassctl/internal/auth"
	"github.com/gorilla/websocket"
)

const Version = "2024.6.1"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Command is one decoded client frame.
type Command struct {
	ID     uint64
	Type   string
	Fields map[string]json.RawMessage
}

// Field decodes one command field into out.
func (c Command) Field(name string, out any) error {
	raw, ok := c.Fields[name]
	if !ok {
		return fmt.Errorf("hasstest: field %q missing", name)
	}
	return json.Unmarshal(raw, out)
}

// HandlerFunc answers a command with a result payload, or an error code and
// message when code is non-empty.
type HandlerFunc func(cmd Command) (result any, code, message string)

type subscription struct {
	conn      *conn
	id        uint64
	eventType string
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping(data string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, []byte(data), time.Now().Add(2*time.Second))
}

// Server is a fake gateway bound to a loopback httptest server.
type Server struct {
	// Auth checks the access token of every handshake.
	Auth auth.Validator

	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	conns    map[*conn]struct{}
	subs     map[uint64]subscription
	received []Command
	pongs    []string
}

// New starts a gateway that accepts token and closes it on test cleanup.
func New(t testing.TB, token string) *Server {
	t.Helper()
	s := &Server{
		Auth:     auth.StaticToken{Token: token},
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[*conn]struct{}),
		subs:     make(map[uint64]subscription),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// URL is the ws:// endpoint of the gateway.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/api/websocket"
}

func (s *Server) Close() {
	s.mu.Lock()
	for c := range s.conns {
		_ = c.ws.Close()
	}
	s.mu.Unlock()
	s.srv.Close()
}

// Handle installs fn for command type verb.
func (s *Server) Handle(verb string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[verb] = fn
}

// HandleResult answers verb with a fixed successful result.
func (s *Server) HandleResult(verb string, result any) {
	s.Handle(verb, func(Command) (any, string, string) { return result, "", "" })
}

// Received returns the commands seen so far in arrival order.
func (s *Server) Received() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.received...)
}

// Pongs returns the payloads of pongs received in answer to Ping.
func (s *Server) Pongs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pongs...)
}

// Subscriptions counts live event subscriptions across connections.
func (s *Server) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// WaitSubscriptions blocks until at least n subscriptions are live.
func (s *Server) WaitSubscriptions(ctx context.Context, n int) error {
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		if s.Subscriptions() >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// Ping sends a websocket ping control frame on every connection.
func (s *Server) Ping(data string) {
	for _, c := range s.snapshotConns() {
		_ = c.ping(data)
	}
}

// Publish fires an event to every subscription whose type matches, or that
// subscribed to all events. It returns the number of frames written.
func (s *Server) Publish(eventType string, data any) int {
	s.mu.Lock()
	targets := make([]subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.eventType == "" || sub.eventType == eventType {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	sent := 0
	for _, sub := range targets {
		frame := map[string]any{
			"id":   sub.id,
			"type": "event",
			"event": map[string]any{
				"event_type": eventType,
				"data":       data,
				"origin":     "LOCAL",
				"time_fired": time.Now().UTC().Format(time.RFC3339Nano),
				"context":    map[string]any{"id": fmt.Sprintf("ctx-%d", sub.id), "parent_id": nil, "user_id": nil},
			},
		}
		if err := sub.conn.writeJSON(frame); err == nil {
			sent++
		}
	}
	return sent
}

func (s *Server) snapshotConns() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws}
	ws.SetPongHandler(func(data string) error {
		s.mu.Lock()
		s.pongs = append(s.pongs, data)
		s.mu.Unlock()
		return nil
	})
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	defer s.drop(c)

	if !s.handshake(c) {
		return
	}
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := decodeCommand(data)
		if err != nil {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, cmd)
		s.mu.Unlock()
		_ = c.writeJSON(s.answer(c, cmd))
	}
}

func (s *Server) drop(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	for id, sub := range s.subs {
		if sub.conn == c {
			delete(s.subs, id)
		}
	}
	s.mu.Unlock()
	_ = c.ws.Close()
}

func (s *Server) handshake(c *conn) bool {
	if err := c.writeJSON(map[string]any{"type": "auth_required", "ha_version": Version}); err != nil {
		return false
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return false
	}
	var msg struct {
		Type        string `json:"type"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "auth" {
		_ = c.writeJSON(map[string]any{"type": "auth_invalid", "message": "Auth message incorrectly formatted"})
		return false
	}
	if s.Auth.Validate(msg.AccessToken) != nil {
		_ = c.writeJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token or password"})
		return false
	}
	return c.writeJSON(map[string]any{"type": "auth_ok", "ha_version": Version}) == nil
}

func decodeCommand(data []byte) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Command{}, err
	}
	var cmd Command
	if err := json.Unmarshal(fields["id"], &cmd.ID); err != nil {
		return Command{}, err
	}
	if err := json.Unmarshal(fields["type"], &cmd.Type); err != nil {
		return Command{}, err
	}
	delete(fields, "id")
	delete(fields, "type")
	cmd.Fields = fields
	return cmd, nil
}

func (s *Server) answer(c *conn, cmd Command) map[string]any {
	switch cmd.Type {
	case "ping":
		return map[string]any{"id": cmd.ID, "type": "pong"}
	case "subscribe_events":
		var eventType string
		if _, ok := cmd.Fields["event_type"]; ok {
			_ = cmd.Field("event_type", &eventType)
		}
		s.mu.Lock()
		s.subs[cmd.ID] = subscription{conn: c, id: cmd.ID, eventType: eventType}
		s.mu.Unlock()
		return success(cmd.ID, nil)
	case "unsubscribe_events":
		var target uint64
		if err := cmd.Field("subscription", &target); err != nil {
			return failure(cmd.ID, "invalid_format", err.Error())
		}
		s.mu.Lock()
		_, ok := s.subs[target]
		delete(s.subs, target)
		s.mu.Unlock()
		if !ok {
			return failure(cmd.ID, "not_found", "Subscription not found.")
		}
		return success(cmd.ID, nil)
	}

	s.mu.Lock()
	fn, ok := s.handlers[cmd.Type]
	s.mu.Unlock()
	if !ok {
		return failure(cmd.ID, "unknown_command", "Unknown command.")
	}
	result, code, message := fn(cmd)
	if code != "" {
		return failure(cmd.ID, code, message)
	}
	return success(cmd.ID, result)
}

func success(id uint64, result any) map[string]any {
	return map[string]any{"id": id, "type": "result", "success": true, "result": result}
}

func failure(id uint64, code, message string) map[string]any {
	return map[string]any{
		"id":      id,
		"type":    "result",
		"success": false,
		"error":   map[string]any{"code": code, "message": message},
	}
}
