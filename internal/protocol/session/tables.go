package session

import (
	"time"

	"github.com/danmuck/hassctl/internal/protocol"
)

// outcome is what a waiting caller receives exactly once.
type outcome struct {
	reply protocol.Reply
	err   error
}

// pending is one reply slot. slot has capacity 1 and receives exactly one
// outcome, from a matching reply or from teardown.
type pending struct {
	verb string
	slot chan outcome
	// sent is set by the caller before registration.
	sent time.Time
	// sub is activated when a subscribe request is acknowledged.
	sub *subscription
	// unsubscribe names the subscription removed when the reply succeeds.
	unsubscribe *uint64
	// abandoned is set by the dispatcher once the waiter gave up; the reply
	// is still consumed but sub is never activated.
	abandoned bool
}

func newPending(verb string) *pending {
	return &pending{verb: verb, slot: make(chan outcome, 1)}
}

func (p *pending) resolve(o outcome) {
	p.slot <- o
}

type subscription struct {
	id        uint64
	eventType string
	events    chan protocol.Event
}

// Delivery results of tables.deliver.
type delivery int

const (
	delivered delivery = iota
	pruned
	unrouted
)

// tables holds the pending-request table, the untagged-reply slot and the
// subscription table of one connection. It is owned by the dispatcher
// goroutine and has no internal locking.
type tables struct {
	pending  map[uint64]*pending
	untagged *pending
	subs     map[uint64]*subscription
}

func newTables() *tables {
	return &tables{
		pending: make(map[uint64]*pending),
		subs:    make(map[uint64]*subscription),
	}
}

func (t *tables) register(id uint64, p *pending) error {
	if _, ok := t.pending[id]; ok {
		return ErrDuplicateID
	}
	t.pending[id] = p
	return nil
}

func (t *tables) registerUntagged(p *pending) error {
	if t.untagged != nil {
		return ErrUntaggedPending
	}
	t.untagged = p
	return nil
}

func (t *tables) take(id uint64) (*pending, bool) {
	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return p, ok
}

func (t *tables) takeUntagged() (*pending, bool) {
	p := t.untagged
	t.untagged = nil
	return p, p != nil
}

// forget drops an entry whose frame was never sent. id 0 addresses the
// untagged slot. The entry is only removed if it is still p.
func (t *tables) forget(id uint64, p *pending) bool {
	if id == 0 {
		if t.untagged == p {
			t.untagged = nil
			return true
		}
		return false
	}
	if cur, ok := t.pending[id]; ok && cur == p {
		delete(t.pending, id)
		return true
	}
	return false
}

func (t *tables) activate(sub *subscription) {
	t.subs[sub.id] = sub
}

// removeSubscription deletes the entry and closes its channel.
func (t *tables) removeSubscription(id uint64) bool {
	sub, ok := t.subs[id]
	if !ok {
		return false
	}
	delete(t.subs, id)
	close(sub.events)
	return true
}

// deliver never blocks. A full channel prunes the subscription.
func (t *tables) deliver(ev protocol.Event) delivery {
	sub, ok := t.subs[ev.SubscriptionID]
	if !ok {
		return unrouted
	}
	select {
	case sub.events <- ev:
		return delivered
	default:
		t.removeSubscription(ev.SubscriptionID)
		return pruned
	}
}

// drain resolves every slot with err and closes every subscription.
func (t *tables) drain(err error) (slots, subs int) {
	for id, p := range t.pending {
		delete(t.pending, id)
		p.resolve(outcome{err: err})
		slots++
	}
	if p, ok := t.takeUntagged(); ok {
		p.resolve(outcome{err: err})
		slots++
	}
	for id := range t.subs {
		t.removeSubscription(id)
		subs++
	}
	return slots, subs
}
