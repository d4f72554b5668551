package transport

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrURLRequired         = errors.New("transport: url required")
	ErrInvalidScheme       = errors.New("transport: url scheme must be ws or wss")
	ErrTLSRequiresWSS      = errors.New("transport: tls settings require a wss url")
	ErrTLSCertFileRequired = errors.New("transport: tls cert file required")
	ErrTLSKeyFileRequired  = errors.New("transport: tls key file required")
)

// TLSConfig describes client-side TLS material loaded from files.
type TLSConfig struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

func (t TLSConfig) configured() bool {
	return strings.TrimSpace(t.CAFile) != "" ||
		strings.TrimSpace(t.CertFile) != "" ||
		strings.TrimSpace(t.KeyFile) != "" ||
		strings.TrimSpace(t.ServerName) != "" ||
		t.InsecureSkipVerify
}

// DialConfig defines how the websocket transport is established.
type DialConfig struct {
	URL              string
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadBuffer       int
	TLS              TLSConfig
	Backoff          BackoffConfig
	// MaxAttempts bounds DialWithRetry; 0 retries until ctx is done.
	MaxAttempts int
}

func DefaultDialConfig() DialConfig {
	return DialConfig{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     15 * time.Second,
		ReadBuffer:       16,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		MaxAttempts: 1,
	}
}

// WithDefaults fills zero-valued fields from DefaultDialConfig.
func (c DialConfig) WithDefaults() DialConfig {
	def := DefaultDialConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = def.ReadBuffer
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	return c
}

func ValidateDialConfig(cfg DialConfig) error {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("transport: parse url %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws":
		if cfg.TLS.configured() {
			return ErrTLSRequiresWSS
		}
	case "wss":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidScheme, u.Scheme)
	}
	hasCert := strings.TrimSpace(cfg.TLS.CertFile) != ""
	hasKey := strings.TrimSpace(cfg.TLS.KeyFile) != ""
	if hasKey && !hasCert {
		return ErrTLSCertFileRequired
	}
	if hasCert && !hasKey {
		return ErrTLSKeyFileRequired
	}
	return nil
}
