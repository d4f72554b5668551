package protocol

import (
	"encoding/json"
	"strconv"
)

// Inbound message types.
const (
	TypeAuthRequired = "auth_required"
	TypeAuthOK       = "auth_ok"
	TypeAuthInvalid  = "auth_invalid"
	TypeResult       = "result"
	TypePong         = "pong"
	TypeEvent        = "event"
)

// Outbound verbs the engine itself issues.
const (
	TypeAuth              = "auth"
	TypePing              = "ping"
	TypeSubscribeEvents   = "subscribe_events"
	TypeUnsubscribeEvents = "unsubscribe_events"
)

// Class is the dispatcher-level category of an inbound frame.
type Class int

const (
	ClassReply Class = iota + 1
	ClassEvent
)

func (c Class) String() string {
	switch c {
	case ClassReply:
		return "reply"
	case ClassEvent:
		return "event"
	default:
		return "unknown"
	}
}

// ErrorInfo is the server error detail attached to a failed result.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts both string and numeric codes.
func (e *ErrorInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Message = raw.Message
	e.Code = ""
	if len(raw.Code) == 0 || string(raw.Code) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Code, &s); err == nil {
		e.Code = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.Code, &n); err != nil {
		return err
	}
	e.Code = n.String()
	return nil
}

// Reply is an inbound answer to a correlated command or to the handshake.
type Reply struct {
	Type      string          `json:"type"`
	ID        *uint64         `json:"id,omitempty"`
	Success   bool            `json:"success,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ErrorInfo      `json:"error,omitempty"`
	HAVersion string          `json:"ha_version,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// CorrelationID returns the reply id when the reply is tagged.
func (r Reply) CorrelationID() (uint64, bool) {
	if r.ID == nil {
		return 0, false
	}
	return *r.ID, true
}

func (r Reply) String() string {
	id := "-"
	if r.ID != nil {
		id = strconv.FormatUint(*r.ID, 10)
	}
	return r.Type + "#" + id
}

// Event is a push notification routed by subscription id. Payload is the
// nested event object exactly as received.
type Event struct {
	SubscriptionID uint64
	Payload        json.RawMessage
}

// Inbound is one classified frame.
type Inbound struct {
	Class Class
	Reply Reply
	Event Event
}

func Uint64(v uint64) *uint64 {
	return &v
}
