package main

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "silence",
		Short: "silence - SQL templates and entity mapping",
		Long: `silence renders dynamic SQL templates into statements with bound
parameters and runs them against PostgreSQL.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")

	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newPingCmd(&cfgFile))

	return rootCmd
}
