package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/hassctl/internal/protocol/session"
	"github.com/danmuck/hassctl/internal/testutil/testlog"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hassctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSessionConfigOverlay(t *testing.T) {
	testlog.Start(t)
	path := writeTOML(t, `url = "ws://localhost:8123/api/websocket"
token = "abc"

[session]
event_buffer = 64
write_timeout = "2s"
`)
	cfg, err := loadSessionConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EventBuffer != 64 {
		t.Fatalf("event_buffer=%d", cfg.EventBuffer)
	}
	if cfg.OutboundBuffer != session.DefaultConfig().OutboundBuffer {
		t.Fatalf("outbound_buffer should keep default, got %d", cfg.OutboundBuffer)
	}
	if cfg.WriteTimeout != 2*time.Second {
		t.Fatalf("write_timeout=%s", cfg.WriteTimeout)
	}
}

func TestLoadSessionConfigWithoutSection(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadSessionConfig(writeTOML(t, "token = \"abc\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != session.DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadSessionConfigRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		body string
		want string
	}{
		{body: "[session]\nevent_buffer = 0\n", want: "event_buffer"},
		{body: "[session]\noutbound_buffer = -1\n", want: "outbound_buffer"},
		{body: "[session]\nwrite_timeout = \"soon\"\n", want: "write_timeout"},
		{body: "[session]\nwrite_timeout = \"-1s\"\n", want: "write_timeout"},
		{body: "[session\n", want: "load session config"},
	}
	for _, tc := range cases {
		_, err := loadSessionConfig(writeTOML(t, tc.body))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%q: expected error mentioning %q, got %v", tc.body, tc.want, err)
		}
	}
}
