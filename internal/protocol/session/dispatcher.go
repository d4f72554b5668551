package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/danmuck/hassctl/internal/observability"
	"github.com/danmuck/hassctl/internal/protocol"
	"github.com/danmuck/hassctl/internal/transport"
	"github.com/rs/zerolog"
)

type opKind int

const (
	opRegister opKind = iota + 1
	opRegisterUntagged
	opForget
	opAbandon
)

// op is a facade request to mutate the tables. ack, when set, has capacity 1
// and always receives the result.
type op struct {
	kind  opKind
	id    uint64
	entry *pending
	ack   chan error
}

// dispatcher classifies inbound frames strictly in arrival order and is the
// only goroutine that touches tables.
type dispatcher struct {
	tables   *tables
	inbound  <-chan transport.Frame
	ops      <-chan op
	outbound chan<- transport.Frame
	log      zerolog.Logger

	// greeted is closed on the first auth_required.
	greeted     chan struct{}
	greetedSeen bool
	version     *atomic.Value
	// auth is settled from the reply to the credential frame, whether or not
	// Authenticate is still waiting for it.
	auth *atomic.Int32
}

func (d *dispatcher) run(ctx context.Context) error {
	for {
		select {
		case f := <-d.inbound:
			d.handleFrame(ctx, f)
		case o := <-d.ops:
			d.handleOp(o)
		case <-ctx.Done():
			d.teardown(context.Cause(ctx))
			return nil
		}
	}
}

func (d *dispatcher) handleOp(o op) {
	var err error
	switch o.kind {
	case opRegister:
		err = d.tables.register(o.id, o.entry)
	case opRegisterUntagged:
		err = d.tables.registerUntagged(o.entry)
	case opForget:
		if d.tables.forget(o.id, o.entry) {
			observability.AddPending(-1)
		}
		return
	case opAbandon:
		d.abandon(o.id, o.entry)
		return
	default:
		err = fmt.Errorf("session: unknown op %d", o.kind)
	}
	if err == nil {
		observability.AddPending(1)
	}
	o.ack <- err
}

func (d *dispatcher) handleFrame(ctx context.Context, f transport.Frame) {
	observability.RecordFrame("in", f.Kind.String())
	switch f.Kind {
	case transport.KindPing:
		select {
		case d.outbound <- transport.PongFrame(f.Data):
		case <-ctx.Done():
		}
		return
	case transport.KindPong:
		return
	}

	in, err := protocol.Decode(f.Data)
	if err != nil {
		observability.RecordDecodeError()
		d.log.Warn().Err(err).Int("bytes", len(f.Data)).Msg("session.Dispatcher drop frame")
		return
	}
	switch in.Class {
	case protocol.ClassEvent:
		d.routeEvent(in.Event)
	case protocol.ClassReply:
		d.routeReply(in.Reply)
	}
}

func (d *dispatcher) routeReply(r protocol.Reply) {
	if r.Type == protocol.TypeAuthRequired {
		if r.HAVersion != "" {
			d.version.Store(r.HAVersion)
		}
		if !d.greetedSeen {
			d.greetedSeen = true
			close(d.greeted)
		}
		return
	}

	id, tagged := r.CorrelationID()
	var (
		p  *pending
		ok bool
	)
	if tagged {
		p, ok = d.tables.take(id)
	} else {
		p, ok = d.tables.takeUntagged()
	}
	if !ok {
		observability.RecordOrphanReply()
		d.log.Warn().Err(ErrOrphanReply).Str("reply", r.String()).Msg("session.Dispatcher drop reply")
		return
	}
	observability.AddPending(-1)
	if !tagged && p.verb == protocol.TypeAuth {
		d.settleAuth(r)
	}

	o := outcome{reply: r}
	if r.Type == protocol.TypeResult && r.Success {
		if p.sub != nil && p.abandoned {
			d.log.Debug().Uint64("subscription", p.sub.id).Msg("session.Dispatcher subscribe acknowledged after waiter left")
		} else if p.sub != nil {
			d.tables.activate(p.sub)
			observability.AddSubscriptions(1)
		}
		if p.unsubscribe != nil {
			if d.tables.removeSubscription(*p.unsubscribe) {
				observability.AddSubscriptions(-1)
			} else {
				o.err = ErrSubscriptionNotFound
			}
		}
	}
	p.resolve(o)
}

func (d *dispatcher) settleAuth(r protocol.Reply) {
	if d.auth == nil {
		return
	}
	switch r.Type {
	case protocol.TypeAuthOK:
		if r.HAVersion != "" {
			d.version.Store(r.HAVersion)
		}
		d.auth.Store(authOK)
	default:
		d.auth.Store(authFailed)
	}
}

// abandon handles a subscribe whose caller stopped waiting. A still pending
// entry is marked so its ack does not activate a channel nobody reads; an
// ack that already landed has its subscription removed.
func (d *dispatcher) abandon(id uint64, p *pending) {
	if cur, ok := d.tables.pending[id]; ok && cur == p {
		p.abandoned = true
		return
	}
	if p.sub == nil || d.tables.subs[p.sub.id] != p.sub {
		return
	}
	if d.tables.removeSubscription(p.sub.id) {
		observability.AddSubscriptions(-1)
		d.log.Debug().Uint64("subscription", p.sub.id).Msg("session.Dispatcher dropped subscription after waiter left")
	}
}

func (d *dispatcher) routeEvent(ev protocol.Event) {
	switch d.tables.deliver(ev) {
	case delivered:
		observability.RecordEvent(observability.EventDelivered)
	case pruned:
		observability.RecordEvent(observability.EventPruned)
		observability.AddSubscriptions(-1)
		d.log.Warn().Uint64("subscription", ev.SubscriptionID).Msg("session.Dispatcher pruned subscription")
	case unrouted:
		observability.RecordEvent(observability.EventUnrouted)
		d.log.Debug().Uint64("subscription", ev.SubscriptionID).Msg("session.Dispatcher drop event")
	}
}

func (d *dispatcher) teardown(cause error) {
	slots, subs := d.tables.drain(closedError(cause))
	observability.AddPending(-slots)
	observability.AddSubscriptions(-subs)
	d.log.Debug().
		AnErr("cause", cause).
		Int("pending", slots).
		Int("subscriptions", subs).
		Msg("session.Dispatcher teardown")
}

func closedError(cause error) error {
	if cause == nil || errors.Is(cause, context.Canceled) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
}
