package protocol

import "errors"

var (
	// ErrDecode marks an inbound frame that could not be parsed or classified.
	ErrDecode         = errors.New("protocol: decode failed")
	ErrUnknownType    = errors.New("protocol: unknown message type")
	ErrMissingField   = errors.New("protocol: missing required field")
	ErrInvalidPayload = errors.New("protocol: invalid command payload")
	ErrReservedField  = errors.New("protocol: reserved field in command payload")
	ErrVerbRequired   = errors.New("protocol: command type required")
)
