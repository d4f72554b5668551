package transport

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/danmuck/hassctl/internal/testutil/testlog"
)

func TestPipePreservesOrderBothWays(t *testing.T) {
	testlog.Start(t)
	a, b := Pipe()
	defer a.Close()
	defer b.Close()
	ctx := context.Background()

	for i, payload := range []string{"one", "two", "three"} {
		kind := KindText
		if i == 1 {
			kind = KindPing
		}
		if err := a.WriteFrame(ctx, Frame{Kind: kind, Data: []byte(payload)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	for i, want := range []string{"one", "two", "three"} {
		f, err := b.ReadFrame(ctx)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if string(f.Data) != want {
			t.Fatalf("frame %d got=%q want=%q", i, f.Data, want)
		}
	}

	if err := b.WriteFrame(ctx, PongFrame([]byte("p"))); err != nil {
		t.Fatalf("write back: %v", err)
	}
	f, err := a.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if f.Kind != KindPong || string(f.Data) != "p" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestPipeDrainsThenEOFAfterPeerClose(t *testing.T) {
	testlog.Start(t)
	a, b := Pipe()
	ctx := context.Background()
	if err := a.WriteFrame(ctx, TextFrame([]byte(`{"type":"pong","id":1}`))); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = a.Close()

	if _, err := b.ReadFrame(ctx); err != nil {
		t.Fatalf("expected queued frame before eof, got %v", err)
	}
	if _, err := b.ReadFrame(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if err := b.WriteFrame(ctx, TextFrame([]byte("x"))); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed writing to closed peer, got %v", err)
	}
	if _, err := a.ReadFrame(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed reading closed end, got %v", err)
	}
}

func TestPipeReadHonorsContext(t *testing.T) {
	testlog.Start(t)
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := b.ReadFrame(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPipeWriteCopiesPayload(t *testing.T) {
	testlog.Start(t)
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	buf := []byte("abc")
	if err := a.WriteFrame(context.Background(), TextFrame(buf)); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf[0] = 'z'
	f, err := b.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(f.Data) != "abc" {
		t.Fatalf("payload aliased caller buffer: %q", f.Data)
	}
}
