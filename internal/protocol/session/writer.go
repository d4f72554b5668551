package session

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/hassctl/internal/observability"
	"github.com/danmuck/hassctl/internal/transport"
	"github.com/rs/zerolog"
)

// writer is the only goroutine that writes to the transport. Frames leave in
// enqueue order; the first failed write ends it.
type writer struct {
	transport transport.Transport
	queue     <-chan transport.Frame
	timeout   time.Duration
	log       zerolog.Logger
}

func (w *writer) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-w.queue:
			if err := w.write(ctx, f); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.log.Error().Err(err).Str("kind", f.Kind.String()).Msg("session.Writer write failed")
				return fmt.Errorf("%w: %w", ErrSendFailed, err)
			}
		}
	}
}

func (w *writer) write(ctx context.Context, f transport.Frame) error {
	wctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.transport.WriteFrame(wctx, f); err != nil {
		return err
	}
	observability.RecordFrame("out", f.Kind.String())
	return nil
}
