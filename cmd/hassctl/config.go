package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/hassctl/internal/protocol/session"
)

type sessionFile struct {
	Session struct {
		EventBuffer    int    `toml:"event_buffer"`
		OutboundBuffer int    `toml:"outbound_buffer"`
		WriteTimeout   string `toml:"write_timeout"`
	} `toml:"session"`
}

// loadSessionConfig overlays the [session] table of path onto the session
// defaults. Keys that are absent keep their default.
func loadSessionConfig(path string) (session.Config, error) {
	cfg := session.DefaultConfig()

	var raw sessionFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return session.Config{}, fmt.Errorf("load session config: %w", err)
	}

	if meta.IsDefined("session", "event_buffer") {
		if raw.Session.EventBuffer <= 0 {
			return session.Config{}, fmt.Errorf("session.event_buffer must be > 0")
		}
		cfg.EventBuffer = raw.Session.EventBuffer
	}

	if meta.IsDefined("session", "outbound_buffer") {
		if raw.Session.OutboundBuffer <= 0 {
			return session.Config{}, fmt.Errorf("session.outbound_buffer must be > 0")
		}
		cfg.OutboundBuffer = raw.Session.OutboundBuffer
	}

	if meta.IsDefined("session", "write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Session.WriteTimeout))
		if err != nil {
			return session.Config{}, fmt.Errorf("parse session.write_timeout: %w", err)
		}
		if d <= 0 {
			return session.Config{}, fmt.Errorf("session.write_timeout must be positive")
		}
		cfg.WriteTimeout = d
	}

	return cfg, nil
}
