package main

import (
	"context"
	"time"

	"github.com/danmuck/hassctl/internal/hass"
	"github.com/spf13/cobra"
)

type fetchDef struct {
	use   string
	short string
	fetch func(ctx context.Context, c *hass.Client) (any, error)
}

var fetchTable = []fetchDef{
	{
		use:   "info",
		short: "Show the server configuration (get_config)",
		fetch: func(ctx context.Context, c *hass.Client) (any, error) { return c.GetConfig(ctx) },
	},
	{
		use:   "states",
		short: "List entity states",
		fetch: func(ctx context.Context, c *hass.Client) (any, error) { return c.GetStates(ctx) },
	},
	{
		use:   "services",
		short: "List the service catalog by domain",
		fetch: func(ctx context.Context, c *hass.Client) (any, error) { return c.GetServices(ctx) },
	},
	{
		use:   "panels",
		short: "List frontend panels",
		fetch: func(ctx context.Context, c *hass.Client) (any, error) { return c.GetPanels(ctx) },
	},
	{
		use:   "areas",
		short: "List the area registry",
		fetch: func(ctx context.Context, c *hass.Client) (any, error) { return c.GetAreaRegistry(ctx) },
	},
	{
		use:   "devices",
		short: "List the device registry",
		fetch: func(ctx context.Context, c *hass.Client) (any, error) { return c.GetDeviceRegistry(ctx) },
	},
	{
		use:   "entities",
		short: "List the entity registry",
		fetch: func(ctx context.Context, c *hass.Client) (any, error) { return c.GetEntityRegistry(ctx) },
	},
}

func newFetchCommands(ctx *commandContext) []*cobra.Command {
	cmds := []*cobra.Command{newPingCommand(ctx)}
	for _, def := range fetchTable {
		cmds = append(cmds, newFetchCommand(ctx, def))
	}
	return cmds
}

func newFetchCommand(ctx *commandContext, def fetchDef) *cobra.Command {
	return &cobra.Command{
		Use:   def.use,
		Short: def.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqCtx, cancel := ctx.requestContext(cmd)
			defer cancel()
			return ctx.withClient(reqCtx, func(c *hass.Client) error {
				out, err := def.fetch(reqCtx, c)
				if err != nil {
					return err
				}
				return writeJSON(cmd, out)
			})
		},
	}
}

type pingResult struct {
	ServerVersion string `json:"ha_version"`
	ConnID        string `json:"conn_id"`
	RoundTrip     string `json:"round_trip"`
}

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Authenticate and round-trip a ping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqCtx, cancel := ctx.requestContext(cmd)
			defer cancel()
			return ctx.withClient(reqCtx, func(c *hass.Client) error {
				start := time.Now()
				if err := c.Ping(reqCtx); err != nil {
					return err
				}
				return writeJSON(cmd, pingResult{
					ServerVersion: c.Session().ServerVersion(),
					ConnID:        c.Session().ConnID(),
					RoundTrip:     time.Since(start).String(),
				})
			})
		},
	}
}
