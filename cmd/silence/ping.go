package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Konsultn-Engineering/silence"
	"github.com/Konsultn-Engineering/silence/config"
	"github.com/Konsultn-Engineering/silence/connector"
	"github.com/Konsultn-Engineering/silence/logging"
)

func newPingCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect to the configured database and report the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			start := time.Now()
			client, err := silence.Connect(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s ok in %s\n",
				logging.SanitizeConnectionString(cfg.Database.DSN()),
				time.Since(start).Round(time.Millisecond))
			renderStats(out, client.Stats())
			return nil
		},
	}
}

func renderStats(w io.Writer, s connector.ConnectionStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Max", "Open", "In use", "Idle", "Acquires"})
	t.AppendRow(table.Row{s.MaxConnections, s.OpenConnections, s.InUse, s.Idle, s.Acquires})
	t.Render()
}
