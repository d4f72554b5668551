package session

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danmuck/hassctl/internal/protocol"
	"github.com/danmuck/hassctl/internal/testutil/testlog"
)

func TestTablesRegisterAndTake(t *testing.T) {
	testlog.Start(t)
	tb := newTables()
	p := newPending("get_states")
	if err := tb.register(3, p); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := tb.register(3, newPending("get_states")); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	got, ok := tb.take(3)
	if !ok || got != p {
		t.Fatalf("take returned %v ok=%v", got, ok)
	}
	if _, ok := tb.take(3); ok {
		t.Fatalf("second take must miss")
	}
}

func TestTablesSingleUntaggedSlot(t *testing.T) {
	testlog.Start(t)
	tb := newTables()
	first := newPending("auth")
	if err := tb.registerUntagged(first); err != nil {
		t.Fatalf("register untagged: %v", err)
	}
	if err := tb.registerUntagged(newPending("auth")); !errors.Is(err, ErrUntaggedPending) {
		t.Fatalf("expected ErrUntaggedPending, got %v", err)
	}
	if tb.forget(0, newPending("auth")) {
		t.Fatalf("forget must only remove the registered entry")
	}
	if !tb.forget(0, first) {
		t.Fatalf("forget registered untagged entry failed")
	}
	if _, ok := tb.takeUntagged(); ok {
		t.Fatalf("slot should be empty")
	}
}

func TestTablesDeliverPrunesFullChannel(t *testing.T) {
	testlog.Start(t)
	tb := newTables()
	sub := &subscription{id: 9, events: make(chan protocol.Event, 1)}
	tb.activate(sub)

	ev := protocol.Event{SubscriptionID: 9, Payload: json.RawMessage(`{"n":1}`)}
	if got := tb.deliver(ev); got != delivered {
		t.Fatalf("first delivery=%v", got)
	}
	if got := tb.deliver(ev); got != pruned {
		t.Fatalf("second delivery=%v", got)
	}
	if got := tb.deliver(ev); got != unrouted {
		t.Fatalf("delivery after prune=%v", got)
	}
	if _, ok := <-sub.events; !ok {
		t.Fatalf("buffered event lost")
	}
	if _, ok := <-sub.events; ok {
		t.Fatalf("channel should be closed after prune")
	}
}

func TestTablesDrain(t *testing.T) {
	testlog.Start(t)
	tb := newTables()
	a, b, u := newPending("a"), newPending("b"), newPending("auth")
	_ = tb.register(1, a)
	_ = tb.register(2, b)
	_ = tb.registerUntagged(u)
	sub := &subscription{id: 4, events: make(chan protocol.Event, 1)}
	tb.activate(sub)

	slots, subs := tb.drain(ErrConnectionClosed)
	if slots != 3 || subs != 1 {
		t.Fatalf("drain slots=%d subs=%d", slots, subs)
	}
	for _, p := range []*pending{a, b, u} {
		o := <-p.slot
		if !errors.Is(o.err, ErrConnectionClosed) {
			t.Fatalf("expected ErrConnectionClosed, got %v", o.err)
		}
	}
	if _, ok := <-sub.events; ok {
		t.Fatalf("subscription channel should be closed")
	}
	if len(tb.pending) != 0 || len(tb.subs) != 0 || tb.untagged != nil {
		t.Fatalf("tables not empty after drain")
	}
}
