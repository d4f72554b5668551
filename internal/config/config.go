package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/hassctl/internal/transport"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultURL      = "ws://localhost:8123/api/websocket"
	DefaultTokenEnv = "HASS_TOKEN"
)

var ErrTokenMissing = errors.New("config: access token not set")

// ClientConfig is the on-disk description of one Home Assistant endpoint.
type ClientConfig struct {
	URL      string      `toml:"url"`
	Token    string      `toml:"token"`
	TokenEnv string      `toml:"token_env"`
	TLS      TLSSection  `toml:"tls"`
	Dial     DialSection `toml:"dial"`
}

type TLSSection struct {
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// DialSection holds durations as Go duration strings ("5s", "250ms").
type DialSection struct {
	ConnectTimeout   string `toml:"connect_timeout"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	MaxAttempts      int    `toml:"max_attempts"`
}

// DefaultClientConfig targets a local instance with the token in $HASS_TOKEN.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{}.withDefaults()
}

func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	cfg = cfg.withDefaults()
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func (c ClientConfig) withDefaults() ClientConfig {
	if strings.TrimSpace(c.URL) == "" {
		c.URL = DefaultURL
	}
	if strings.TrimSpace(c.Token) == "" && strings.TrimSpace(c.TokenEnv) == "" {
		c.TokenEnv = DefaultTokenEnv
	}
	return c
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Token) == "" && strings.TrimSpace(cfg.TokenEnv) == "" {
		return fmt.Errorf("client config requires token or token_env")
	}
	if cfg.Dial.MaxAttempts < 0 {
		return fmt.Errorf("dial.max_attempts must be >= 0")
	}
	dial, err := cfg.DialConfig()
	if err != nil {
		return err
	}
	return transport.ValidateDialConfig(dial)
}

// ResolveToken returns the inline token, or the value of token_env.
func (c ClientConfig) ResolveToken() (string, error) {
	if token := strings.TrimSpace(c.Token); token != "" {
		return token, nil
	}
	env := strings.TrimSpace(c.TokenEnv)
	if env == "" {
		return "", ErrTokenMissing
	}
	token := strings.TrimSpace(os.Getenv(env))
	if token == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrTokenMissing, env)
	}
	return token, nil
}

// DialConfig maps the file layout onto transport settings. Unset fields keep
// transport defaults; max_attempts = 0 keeps a single attempt.
func (c ClientConfig) DialConfig() (transport.DialConfig, error) {
	out := transport.DefaultDialConfig()
	out.URL = strings.TrimSpace(c.URL)
	out.TLS = transport.TLSConfig{
		CAFile:             c.TLS.CAFile,
		CertFile:           c.TLS.CertFile,
		KeyFile:            c.TLS.KeyFile,
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	var err error
	if out.ConnectTimeout, err = parseDuration("dial.connect_timeout", c.Dial.ConnectTimeout, out.ConnectTimeout); err != nil {
		return transport.DialConfig{}, err
	}
	if out.HandshakeTimeout, err = parseDuration("dial.handshake_timeout", c.Dial.HandshakeTimeout, out.HandshakeTimeout); err != nil {
		return transport.DialConfig{}, err
	}
	if c.Dial.MaxAttempts > 0 {
		out.MaxAttempts = c.Dial.MaxAttempts
	}
	return out, nil
}

func parseDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s invalid: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}
