package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/hassctl/internal/testutil/testlog"
)

func TestValidateDialConfig(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		cfg  DialConfig
		want error
	}{
		{name: "missing url", cfg: DialConfig{}, want: ErrURLRequired},
		{name: "bad scheme", cfg: DialConfig{URL: "http://localhost:8123/api/websocket"}, want: ErrInvalidScheme},
		{name: "tls on ws", cfg: DialConfig{URL: "ws://localhost:8123/api/websocket", TLS: TLSConfig{CAFile: "ca.crt"}}, want: ErrTLSRequiresWSS},
		{name: "key without cert", cfg: DialConfig{URL: "wss://ha.local/api/websocket", TLS: TLSConfig{KeyFile: "c.key"}}, want: ErrTLSCertFileRequired},
		{name: "cert without key", cfg: DialConfig{URL: "wss://ha.local/api/websocket", TLS: TLSConfig{CertFile: "c.crt"}}, want: ErrTLSKeyFileRequired},
		{name: "plain ws", cfg: DialConfig{URL: "ws://localhost:8123/api/websocket"}},
		{name: "wss with ca", cfg: DialConfig{URL: "wss://ha.local/api/websocket", TLS: TLSConfig{CAFile: "ca.crt"}}},
	}
	for _, tc := range cases {
		err := ValidateDialConfig(tc.cfg)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected err: %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got=%v want=%v", tc.name, err, tc.want)
		}
	}
}

func TestDialConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := DialConfig{URL: "ws://localhost:8123/api/websocket", WriteTimeout: time.Second, MaxAttempts: -3}.WithDefaults()
	def := DefaultDialConfig()
	if cfg.WriteTimeout != time.Second {
		t.Fatalf("explicit write timeout overwritten: %v", cfg.WriteTimeout)
	}
	if cfg.ConnectTimeout != def.ConnectTimeout || cfg.HandshakeTimeout != def.HandshakeTimeout {
		t.Fatalf("timeouts not defaulted: %+v", cfg)
	}
	if cfg.Backoff != def.Backoff {
		t.Fatalf("backoff not defaulted: %+v", cfg.Backoff)
	}
	if cfg.MaxAttempts != 0 {
		t.Fatalf("negative attempts should clamp to unlimited, got %d", cfg.MaxAttempts)
	}
}
