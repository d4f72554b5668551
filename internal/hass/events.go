package hass

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/danmuck/hassctl/internal/protocol"
	"github.com/danmuck/hassctl/internal/protocol/session"
)

// EventStream decodes events of one subscription.
type EventStream struct {
	client *Client
	sub    *session.Subscription
}

// SubscribeEvents subscribes to eventType, or to every event when empty.
func (c *Client) SubscribeEvents(ctx context.Context, eventType string) (*EventStream, error) {
	sub, err := c.sess.Subscribe(ctx, eventType)
	if err != nil {
		return nil, err
	}
	return &EventStream{client: c, sub: sub}, nil
}

func (s *EventStream) ID() uint64 {
	return s.sub.ID
}

func (s *EventStream) EventType() string {
	return s.sub.EventType
}

// Raw exposes the undecoded payload channel.
func (s *EventStream) Raw() <-chan protocol.Event {
	return s.sub.Events
}

// Next waits for the next event. ErrStreamClosed means the subscription was
// removed or the connection ended.
func (s *EventStream) Next(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-s.sub.Events:
		if !ok {
			return Event{}, ErrStreamClosed
		}
		return DecodeEvent(ev.Payload)
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close unsubscribes on the server. A subscription already pruned locally
// reports session.ErrSubscriptionNotFound.
func (s *EventStream) Close(ctx context.Context) error {
	return s.client.sess.Unsubscribe(ctx, s.sub.ID)
}

func DecodeEvent(payload json.RawMessage) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("hass: decode event: %w", err)
	}
	return ev, nil
}
