package main

import (
	"time"

	"github.com/spf13/cobra"
)

const defaultRequestTimeout = 30 * time.Second

func newRootCommand() *cobra.Command {
	var configFlag string
	var timeoutFlag time.Duration

	ctx := newCommandContext(&configFlag, &timeoutFlag)

	rootCmd := &cobra.Command{
		Use:           "hassctl",
		Short:         "Home Assistant websocket client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, _, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default ./hassctl.toml when present)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", defaultRequestTimeout, "Deadline for connect plus one request; watch ignores it once subscribed")

	for _, cmd := range newFetchCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newCallCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
