package transport

import (
	"context"
	"io"
	"sync"
)

const pipeBuffer = 64

type pipeEnd struct {
	done chan struct{}
	once sync.Once
}

func (e *pipeEnd) close() {
	e.once.Do(func() { close(e.done) })
}

// PipeConn is one end of an in-memory transport pair.
type PipeConn struct {
	in   chan Frame
	out  chan Frame
	self *pipeEnd
	peer *pipeEnd
}

// Pipe returns two connected transports. Frames written on one end are read
// on the other in write order; closing either end ends the peer's stream with
// io.EOF once the frames already in flight have been read.
func Pipe() (*PipeConn, *PipeConn) {
	ab := make(chan Frame, pipeBuffer)
	ba := make(chan Frame, pipeBuffer)
	a := &pipeEnd{done: make(chan struct{})}
	b := &pipeEnd{done: make(chan struct{})}
	return &PipeConn{in: ba, out: ab, self: a, peer: b},
		&PipeConn{in: ab, out: ba, self: b, peer: a}
}

func (p *PipeConn) ReadFrame(ctx context.Context) (Frame, error) {
	select {
	case <-p.self.done:
		return Frame{}, ErrClosed
	default:
	}
	select {
	case f := <-p.in:
		return f, nil
	default:
	}
	select {
	case f := <-p.in:
		return f, nil
	case <-p.peer.done:
		select {
		case f := <-p.in:
			return f, nil
		default:
			return Frame{}, io.EOF
		}
	case <-p.self.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (p *PipeConn) WriteFrame(ctx context.Context, f Frame) error {
	select {
	case <-p.self.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	default:
	}
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	select {
	case p.out <- Frame{Kind: f.Kind, Data: data}:
		return nil
	case <-p.self.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PipeConn) Close() error {
	p.self.close()
	return nil
}
