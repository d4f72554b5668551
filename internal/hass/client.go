package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/hassctl/internal/config"
	"github.com/danmuck/hassctl/internal/protocol"
	"github.com/danmuck/hassctl/internal/protocol/session"
	"github.com/danmuck/hassctl/internal/transport"
	"github.com/rs/zerolog/log"
)

// Command types.
const (
	TypeGetConfig          = "get_config"
	TypeGetStates          = "get_states"
	TypeGetServices        = "get_services"
	TypeGetPanels          = "get_panels"
	TypeCallService        = "call_service"
	TypeAreaRegistryList   = "config/area_registry/list"
	TypeDeviceRegistryList = "config/device_registry/list"
	TypeEntityRegistryList = "config/entity_registry/list"
)

var (
	ErrUnexpectedReply = session.ErrUnexpectedReply
	ErrServiceRequired = errors.New("hass: domain and service required")
	ErrStreamClosed    = errors.New("hass: event stream closed")
)

// Client wraps an authenticated session with typed commands.
type Client struct {
	sess *session.Client
}

func New(sess *session.Client) *Client {
	return &Client{sess: sess}
}

// Connect dials cfg, starts a session and authenticates it.
func Connect(ctx context.Context, cfg config.ClientConfig, scfg session.Config) (*Client, error) {
	dial, err := cfg.DialConfig()
	if err != nil {
		return nil, err
	}
	token, err := cfg.ResolveToken()
	if err != nil {
		return nil, err
	}
	ws, err := transport.DialWithRetry(ctx, dial)
	if err != nil {
		return nil, err
	}
	sess := session.New(ws, scfg)
	if err := sess.Authenticate(ctx, token); err != nil {
		_ = sess.Close()
		return nil, err
	}
	log.Info().
		Str("url", dial.URL).
		Str("conn", sess.ConnID()).
		Str("ha_version", sess.ServerVersion()).
		Msg("hass.Connect connected")
	return New(sess), nil
}

func (c *Client) Session() *session.Client {
	return c.sess
}

func (c *Client) Close() error {
	return c.sess.Close()
}

// Ping round-trips a ping command and expects a pong.
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.sess.Command(ctx, protocol.TypePing, nil)
	if err != nil {
		return err
	}
	if reply.Type != protocol.TypePong {
		return fmt.Errorf("%w: %s", ErrUnexpectedReply, reply)
	}
	return nil
}

func (c *Client) GetConfig(ctx context.Context) (ServerConfig, error) {
	var out ServerConfig
	err := c.fetch(ctx, TypeGetConfig, nil, &out)
	return out, err
}

func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	var out []State
	err := c.fetch(ctx, TypeGetStates, nil, &out)
	return out, err
}

func (c *Client) GetServices(ctx context.Context) (Services, error) {
	var out Services
	err := c.fetch(ctx, TypeGetServices, nil, &out)
	return out, err
}

func (c *Client) GetPanels(ctx context.Context) (Panels, error) {
	var out Panels
	err := c.fetch(ctx, TypeGetPanels, nil, &out)
	return out, err
}

func (c *Client) GetAreaRegistry(ctx context.Context) ([]Area, error) {
	var out []Area
	err := c.fetch(ctx, TypeAreaRegistryList, nil, &out)
	return out, err
}

func (c *Client) GetDeviceRegistry(ctx context.Context) ([]Device, error) {
	var out []Device
	err := c.fetch(ctx, TypeDeviceRegistryList, nil, &out)
	return out, err
}

func (c *Client) GetEntityRegistry(ctx context.Context) ([]EntityEntry, error) {
	var out []EntityEntry
	err := c.fetch(ctx, TypeEntityRegistryList, nil, &out)
	return out, err
}

type callService struct {
	Domain      string `json:"domain"`
	Service     string `json:"service"`
	ServiceData any    `json:"service_data,omitempty"`
}

// CallService invokes domain.service with optional data and returns the raw
// result, which carries the context of the call on current servers.
func (c *Client) CallService(ctx context.Context, domain, service string, data any) (json.RawMessage, error) {
	domain, service = strings.TrimSpace(domain), strings.TrimSpace(service)
	if domain == "" || service == "" {
		return nil, ErrServiceRequired
	}
	var out json.RawMessage
	err := c.fetch(ctx, TypeCallService, callService{Domain: domain, Service: service, ServiceData: data}, &out)
	return out, err
}

func (c *Client) fetch(ctx context.Context, verb string, fields any, out any) error {
	reply, err := c.sess.Command(ctx, verb, fields)
	if err != nil {
		return err
	}
	if err := session.CheckResult(reply); err != nil {
		return err
	}
	if out == nil || len(reply.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Result, out); err != nil {
		return fmt.Errorf("hass: decode %s result: %w", verb, err)
	}
	return nil
}
