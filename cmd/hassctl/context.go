package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/hassctl/internal/config"
	"github.com/danmuck/hassctl/internal/hass"
	"github.com/danmuck/hassctl/internal/protocol/session"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "hassctl.toml"

type commandContext struct {
	configFlag  *string
	timeoutFlag *time.Duration

	configOnce sync.Once
	client     config.ClientConfig
	session    session.Config
	configErr  error
}

func newCommandContext(configFlag *string, timeoutFlag *time.Duration) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		timeoutFlag: timeoutFlag,
	}
}

// configPath is the --config value, or ./hassctl.toml when it exists. An
// empty result means built-in defaults.
func (c *commandContext) configPath() string {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path
		}
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func (c *commandContext) ensureConfig() (config.ClientConfig, session.Config, error) {
	c.configOnce.Do(func() {
		path := c.configPath()
		if path == "" {
			c.client = config.DefaultClientConfig()
			c.session = session.DefaultConfig()
			return
		}
		client, err := config.LoadClientConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		sess, err := loadSessionConfig(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.client = client
		c.session = sess
	})
	return c.client, c.session, c.configErr
}

func (c *commandContext) timeout() time.Duration {
	if c.timeoutFlag == nil || *c.timeoutFlag <= 0 {
		return defaultRequestTimeout
	}
	return *c.timeoutFlag
}

// requestContext bounds a one-shot command by --timeout.
func (c *commandContext) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(commandCtx(cmd), c.timeout())
}

// withClient connects, runs fn and closes the session.
func (c *commandContext) withClient(ctx context.Context, fn func(*hass.Client) error) error {
	client, sess, err := c.ensureConfig()
	if err != nil {
		return err
	}
	hc, err := hass.Connect(ctx, client, sess)
	if err != nil {
		return err
	}
	defer hc.Close()
	return fn(hc)
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// isClosing reports errors that only mean the session is already gone.
func isClosing(err error) bool {
	return errors.Is(err, session.ErrConnectionClosed) ||
		errors.Is(err, session.ErrSendFailed) ||
		errors.Is(err, session.ErrSubscriptionNotFound) ||
		errors.Is(err, context.Canceled)
}
