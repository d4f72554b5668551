package session

import "time"

// Config sizes the per-connection queues.
type Config struct {
	// OutboundBuffer bounds the writer queue shared by commands and pongs.
	OutboundBuffer int
	// EventBuffer bounds each subscription channel. A consumer that lets it
	// fill loses the subscription.
	EventBuffer int
	// WriteTimeout caps a single transport write.
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		OutboundBuffer: 20,
		EventBuffer:    20,
		WriteTimeout:   10 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.OutboundBuffer <= 0 {
		c.OutboundBuffer = def.OutboundBuffer
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}
