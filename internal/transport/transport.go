package transport

import (
	"context"
	"errors"
)

// ErrClosed reports a read or write on a transport that has been shut down.
var ErrClosed = errors.New("transport: closed")

// Kind discriminates data frames from keep-alive control frames.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindPing
	KindPong
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	default:
		return "unknown"
	}
}

// Frame is one discrete unit exchanged over a transport.
type Frame struct {
	Kind Kind
	Data []byte
}

func TextFrame(data []byte) Frame {
	return Frame{Kind: KindText, Data: data}
}

func PongFrame(data []byte) Frame {
	return Frame{Kind: KindPong, Data: data}
}

// Transport delivers frames reliably and in order in each direction.
// ReadFrame returns io.EOF once the peer has ended the stream.
// ReadFrame and WriteFrame may be called from different goroutines, but
// each must have a single caller at a time.
type Transport interface {
	ReadFrame(ctx context.Context) (Frame, error)
	WriteFrame(ctx context.Context, f Frame) error
	Close() error
}
