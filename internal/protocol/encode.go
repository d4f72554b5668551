package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeCommand builds one outbound frame {id?, type: verb, ...fields}.
// id 0 marks an untagged command and is left off the wire; fields must
// encode to a JSON object (or be nil) and may not carry "id" or "type".
func EncodeCommand(verb string, id uint64, fields any) ([]byte, error) {
	if strings.TrimSpace(verb) == "" {
		return nil, ErrVerbRequired
	}
	obj := map[string]json.RawMessage{}
	if fields != nil {
		raw, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if string(raw) != "null" {
			if err := json.Unmarshal(raw, &obj); err != nil {
				return nil, fmt.Errorf("%w: fields must be a json object", ErrInvalidPayload)
			}
		}
	}
	if _, ok := obj["id"]; ok {
		return nil, fmt.Errorf("%w: id", ErrReservedField)
	}
	if _, ok := obj["type"]; ok {
		return nil, fmt.Errorf("%w: type", ErrReservedField)
	}

	verbRaw, err := json.Marshal(verb)
	if err != nil {
		return nil, err
	}
	obj["type"] = verbRaw
	if id != 0 {
		obj["id"] = json.RawMessage(fmt.Sprintf("%d", id))
	}
	return json.Marshal(obj)
}
