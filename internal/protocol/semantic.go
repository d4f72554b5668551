package protocol

import "fmt"

// schema declares the class and required fields of one inbound type.
type schema struct {
	class     Class
	requireID bool
	required  []string
}

var inboundSchemas = map[string]schema{
	TypeAuthRequired: {class: ClassReply},
	TypeAuthOK:       {class: ClassReply},
	TypeAuthInvalid:  {class: ClassReply, required: []string{"message"}},
	TypeResult:       {class: ClassReply, required: []string{"success"}},
	TypePong:         {class: ClassReply},
	TypeEvent:        {class: ClassEvent, requireID: true, required: []string{"event"}},
}

func (s schema) validate(env envelope) error {
	if s.requireID && env.ID == nil {
		return fmt.Errorf("%w: %s.id", ErrMissingField, env.Type)
	}
	for _, field := range s.required {
		if !env.has(field) {
			return fmt.Errorf("%w: %s.%s", ErrMissingField, env.Type, field)
		}
	}
	return nil
}

func (e envelope) has(field string) bool {
	switch field {
	case "success":
		return e.Success != nil
	case "message":
		return e.Message != nil
	case "ha_version":
		return e.HAVersion != nil
	case "event":
		return len(nullToEmpty(e.Event)) > 0
	default:
		return false
	}
}
