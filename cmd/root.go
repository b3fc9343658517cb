// Package cmd defines the windwatch command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/logging"
)

var settings *conf.Settings

var rootCmd = &cobra.Command{
	Use:   "windwatch",
	Short: "Alert rule and notification engine for windfarm portfolios",
	Long: `windwatch evaluates user-defined alert rules against windfarm
performance metrics, tracks breach episodes as triggers and delivers
notifications in-app, by email or as batched digests.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = conf.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			settings.Debug = true
		}
		logging.Init(settings.Debug)
		return nil
	},
	// Running without a subcommand starts the server.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
