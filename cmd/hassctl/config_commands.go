package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/hassctl/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Configuration utilities",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var kind string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = defaultConfigPath
			}
			if dir := filepath.Dir(target); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create config directory %q: %w", dir, err)
				}
			}
			if err := config.WriteTemplate(target, kind, overwrite); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Export %s with a long-lived access token before connecting.\n", config.DefaultTokenEnv)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().StringVar(&kind, "kind", "client", "Template kind: client or tls")
	cmd.Flags().BoolVar(&overwrite, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a configuration file without connecting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.configPath()
			if len(args) == 1 {
				path = strings.TrimSpace(args[0])
			}
			if path == "" {
				return fmt.Errorf("no configuration file: pass a path or --config")
			}
			client, err := config.LoadClientConfig(path)
			if err != nil {
				return err
			}
			sess, err := loadSessionConfig(path)
			if err != nil {
				return err
			}
			tokenState := "resolved"
			if _, err := client.ResolveToken(); err != nil {
				tokenState = err.Error()
			}
			return writeJSON(cmd, map[string]any{
				"path":            path,
				"url":             client.URL,
				"token":           tokenState,
				"event_buffer":    sess.EventBuffer,
				"outbound_buffer": sess.OutboundBuffer,
				"write_timeout":   sess.WriteTimeout.String(),
			})
		},
	}
}
