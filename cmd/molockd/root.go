package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"molock/internal/config"
)

var (
	cfgFile   string
	hotReload bool
	rootCmd   = &cobra.Command{
		Use:   "molockd",
		Short: "Molock - configurable HTTP mock server",
		Long: `Molock serves HTTP responses from a configuration-driven endpoint
catalog: path templates with precedence rules, stateful per-key rule
evaluation, response templating, and OpenTelemetry instrumentation.`,
	}
)

// Execute runs the root command and terminates the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&hotReload, "hot-reload", false, "watch the config file and reload the endpoint catalog on change")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
}
