package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danmuck/hassctl/internal/hass"
	"github.com/spf13/cobra"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	var dataFlag string

	cmd := &cobra.Command{
		Use:   "call <domain> <service>",
		Short: "Call a service, e.g. call light turn_on --data '{\"entity_id\":\"light.kitchen\"}'",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseServiceData(dataFlag)
			if err != nil {
				return err
			}
			reqCtx, cancel := ctx.requestContext(cmd)
			defer cancel()
			return ctx.withClient(reqCtx, func(c *hass.Client) error {
				result, err := c.CallService(reqCtx, args[0], args[1], data)
				if err != nil {
					return err
				}
				if len(result) == 0 {
					result = json.RawMessage("null")
				}
				return writeJSON(cmd, result)
			})
		},
	}

	cmd.Flags().StringVarP(&dataFlag, "data", "d", "", "Service data as a JSON object")
	return cmd
}

// parseServiceData returns a nil interface for empty input so the
// service_data field is omitted.
func parseServiceData(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}
	return data, nil
}
