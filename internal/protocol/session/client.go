package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/hassctl/internal/observability"
	"github.com/danmuck/hassctl/internal/protocol"
	"github.com/danmuck/hassctl/internal/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	authNone int32 = iota
	authPending
	authOK
	authFailed
)

// Subscription is an active event stream. Events closes when the
// subscription is removed by Unsubscribe, by falling behind, or by the
// connection ending.
type Subscription struct {
	ID        uint64
	EventType string
	Events    <-chan protocol.Event
}

// Client is one connection's facade. It is safe for concurrent use.
type Client struct {
	cfg       Config
	transport transport.Transport
	seq       Sequencer
	log       zerolog.Logger
	connID    string

	ops      chan op
	inbound  chan transport.Frame
	outbound chan transport.Frame

	greeted       chan struct{}
	serverVersion atomic.Value
	auth          atomic.Int32

	stopping <-chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

// New starts the reader, writer and dispatcher for t. The client owns t and
// closes it when the connection ends.
func New(t transport.Transport, cfg Config) *Client {
	cfg = cfg.WithDefaults()
	logger, connID := observability.ConnLogger("session")
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	c := &Client{
		cfg:       cfg,
		transport: t,
		log:       logger,
		connID:    connID,
		ops:       make(chan op),
		inbound:   make(chan transport.Frame),
		outbound:  make(chan transport.Frame, cfg.OutboundBuffer),
		greeted:   make(chan struct{}),
		stopping:  gctx.Done(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	d := &dispatcher{
		tables:   newTables(),
		inbound:  c.inbound,
		ops:      c.ops,
		outbound: c.outbound,
		log:      logger,
		greeted:  c.greeted,
		version:  &c.serverVersion,
		auth:     &c.auth,
	}
	w := &writer{
		transport: t,
		queue:     c.outbound,
		timeout:   cfg.WriteTimeout,
		log:       logger,
	}

	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return w.run(gctx) })
	g.Go(func() error { return d.run(gctx) })
	go c.wait(g)

	logger.Debug().
		Int("outbound_buffer", cfg.OutboundBuffer).
		Int("event_buffer", cfg.EventBuffer).
		Msg("session.Client started")
	return c
}

// readLoop hands frames to the dispatcher one at a time, so every frame read
// before the stream ends is processed before teardown.
func (c *Client) readLoop(ctx context.Context) error {
	for {
		f, err := c.transport.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case c.inbound <- f:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) wait(g *errgroup.Group) {
	err := g.Wait()
	if cerr := c.transport.Close(); cerr != nil {
		c.log.Debug().Err(cerr).Msg("session.Client transport close")
	}
	c.err = err
	if err != nil {
		c.log.Info().Err(err).Msg("session.Client connection ended")
	} else {
		c.log.Debug().Msg("session.Client closed")
	}
	close(c.done)
}

// Close tears the connection down and waits for the workers to exit.
func (c *Client) Close() error {
	c.cancel()
	<-c.done
	return nil
}

// Done is closed once the connection has ended and every waiter was released.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended: nil after Close, io.EOF when the
// server ended the stream, or the transport failure.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// ServerVersion is the ha_version announced by the server, if any.
func (c *Client) ServerVersion() string {
	v, _ := c.serverVersion.Load().(string)
	return v
}

// ConnID identifies this connection in logs.
func (c *Client) ConnID() string {
	return c.connID
}

type authMessage struct {
	AccessToken string `json:"access_token"`
}

// Authenticate runs the one-time handshake: wait for auth_required, send the
// token untagged, and wait for auth_ok or auth_invalid.
//
// If ctx ends before the credential is sent, a later call may try again. Once
// it is sent, the attempt belongs to the server's answer: Authenticate returns
// ErrAuthInterrupted and the dispatcher still moves the client to
// authenticated or failed when auth_ok or auth_invalid arrives. Until then,
// further calls return ErrUntaggedPending.
func (c *Client) Authenticate(ctx context.Context, token string) error {
	if !c.auth.CompareAndSwap(authNone, authPending) {
		switch c.auth.Load() {
		case authOK:
			return ErrAlreadyAuthenticated
		case authFailed:
			return ErrAuthenticationFailed
		default:
			return ErrUntaggedPending
		}
	}

	select {
	case <-c.greeted:
	case <-c.stopping:
		c.auth.Store(authNone)
		return ErrConnectionClosed
	case <-ctx.Done():
		c.auth.Store(authNone)
		return ctx.Err()
	}

	p := newPending(protocol.TypeAuth)
	if err := c.send(ctx, 0, p, authMessage{AccessToken: token}); err != nil {
		c.auth.Store(authNone)
		return err
	}
	reply, err := c.await(ctx, p)
	if err != nil {
		if ctx.Err() != nil {
			c.log.Warn().Err(err).Msg("session.Client stopped waiting for auth reply")
			return fmt.Errorf("%w: %w", ErrAuthInterrupted, err)
		}
		return err
	}
	switch reply.Type {
	case protocol.TypeAuthOK:
		c.log.Info().Str("ha_version", c.ServerVersion()).Msg("session.Client authenticated")
		return nil
	case protocol.TypeAuthInvalid:
		c.log.Warn().Str("message", reply.Message).Msg("session.Client authentication rejected")
		return &AuthError{Message: reply.Message}
	default:
		return &AuthError{Message: fmt.Sprintf("protocol error: unexpected %s reply during handshake", reply.Type)}
	}
}

// Command sends {id, type: verb, ...fields} and waits for its reply. A result
// with success=false is returned along with a *ResponseError.
func (c *Client) Command(ctx context.Context, verb string, fields any) (protocol.Reply, error) {
	if err := c.requireAuth(); err != nil {
		return protocol.Reply{}, err
	}
	return c.roundTrip(ctx, c.seq.Next(), newPending(verb), fields)
}

// Untagged sends a frame without an id and waits for the next id-less reply.
// Only one untagged request may be outstanding, and only before the
// handshake settles: the server sends no id-less replies afterwards.
func (c *Client) Untagged(ctx context.Context, verb string, fields any) (protocol.Reply, error) {
	switch c.auth.Load() {
	case authOK:
		return protocol.Reply{}, ErrAlreadyAuthenticated
	case authFailed:
		return protocol.Reply{}, ErrAuthenticationFailed
	}
	return c.roundTrip(ctx, 0, newPending(verb), fields)
}

// Subscribe asks the server for events of eventType, or every event when
// eventType is empty.
func (c *Client) Subscribe(ctx context.Context, eventType string) (*Subscription, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	id := c.seq.Next()
	p := newPending(protocol.TypeSubscribeEvents)
	p.sub = &subscription{
		id:        id,
		eventType: eventType,
		events:    make(chan protocol.Event, c.cfg.EventBuffer),
	}
	fields := map[string]any{}
	if eventType != "" {
		fields["event_type"] = eventType
	}
	reply, err := c.roundTrip(ctx, id, p, fields)
	if err != nil {
		return nil, err
	}
	if reply.Type != protocol.TypeResult {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedReply, reply)
	}
	c.log.Debug().Uint64("subscription", id).Str("event_type", eventType).Msg("session.Client subscribed")
	return &Subscription{ID: id, EventType: eventType, Events: p.sub.events}, nil
}

// Unsubscribe cancels subscription id on the server and removes it locally.
// ErrSubscriptionNotFound means the server accepted but the local entry was
// already gone.
func (c *Client) Unsubscribe(ctx context.Context, id uint64) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	p := newPending(protocol.TypeUnsubscribeEvents)
	p.unsubscribe = &id
	reply, err := c.roundTrip(ctx, c.seq.Next(), p, map[string]any{"subscription": id})
	if err != nil {
		return err
	}
	if reply.Type != protocol.TypeResult {
		return fmt.Errorf("%w: %s", ErrUnexpectedReply, reply)
	}
	return nil
}

func (c *Client) requireAuth() error {
	if c.auth.Load() != authOK {
		return ErrNotAuthenticated
	}
	return nil
}

// roundTrip sends p's frame and awaits its slot. id 0 uses the untagged
// slot.
func (c *Client) roundTrip(ctx context.Context, id uint64, p *pending, fields any) (protocol.Reply, error) {
	if err := c.send(ctx, id, p, fields); err != nil {
		return protocol.Reply{}, err
	}
	reply, err := c.await(ctx, p)
	if err != nil && ctx.Err() != nil && p.sub != nil {
		_ = c.submit(op{kind: opAbandon, id: id, entry: p})
	}
	return reply, err
}

// send registers p and enqueues the encoded frame. On error nothing was
// written and the registration is withdrawn.
func (c *Client) send(ctx context.Context, id uint64, p *pending, fields any) error {
	data, err := protocol.EncodeCommand(p.verb, id, fields)
	if err != nil {
		return err
	}
	kind := opRegister
	if id == 0 {
		kind = opRegisterUntagged
	}
	p.sent = time.Now()
	if err := c.submit(op{kind: kind, id: id, entry: p, ack: make(chan error, 1)}); err != nil {
		return err
	}
	if err := c.enqueue(ctx, transport.TextFrame(data)); err != nil {
		_ = c.submit(op{kind: opForget, id: id, entry: p})
		return err
	}
	return nil
}

// await blocks until p's slot is resolved or ctx ends. An abandoned slot is
// still consumed by its reply or by teardown.
func (c *Client) await(ctx context.Context, p *pending) (protocol.Reply, error) {
	select {
	case o := <-p.slot:
		err := o.err
		if err == nil && o.reply.Type == protocol.TypeResult && !o.reply.Success {
			err = responseError(o.reply)
		}
		observability.RecordRequest(p.verb, err == nil, time.Since(p.sent))
		return o.reply, err
	case <-ctx.Done():
		return protocol.Reply{}, ctx.Err()
	}
}

func (c *Client) submit(o op) error {
	select {
	case c.ops <- o:
	case <-c.stopping:
		return ErrConnectionClosed
	}
	if o.ack == nil {
		return nil
	}
	return <-o.ack
}

func (c *Client) enqueue(ctx context.Context, f transport.Frame) error {
	select {
	case c.outbound <- f:
		return nil
	case <-c.stopping:
		return ErrSendFailed
	case <-ctx.Done():
		return ctx.Err()
	}
}
