package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type envelope struct {
	Type      string          `json:"type"`
	ID        *uint64         `json:"id"`
	Success   *bool           `json:"success"`
	Result    json.RawMessage `json:"result"`
	Error     *ErrorInfo      `json:"error"`
	HAVersion *string         `json:"ha_version"`
	Message   *string         `json:"message"`
	Event     json.RawMessage `json:"event"`
}

// Decode parses one inbound text frame and classifies it. Every failure wraps
// ErrDecode.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	rule, ok := inboundSchemas[env.Type]
	if !ok {
		return Inbound{}, fmt.Errorf("%w: %w %q", ErrDecode, ErrUnknownType, env.Type)
	}
	if err := rule.validate(env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if rule.class == ClassEvent {
		return Inbound{
			Class: ClassEvent,
			Event: Event{
				SubscriptionID: *env.ID,
				Payload:        copyRaw(env.Event),
			},
		}, nil
	}

	reply := Reply{
		Type:   env.Type,
		ID:     env.ID,
		Result: nullToEmpty(env.Result),
		Error:  env.Error,
	}
	if env.Success != nil {
		reply.Success = *env.Success
	}
	if env.HAVersion != nil {
		reply.HAVersion = *env.HAVersion
	}
	if env.Message != nil {
		reply.Message = *env.Message
	}
	return Inbound{Class: ClassReply, Reply: reply}, nil
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// copyRaw detaches the payload from the decode buffer without reformatting it.
func copyRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
