package main

import (
	"github.com/spf13/cobra"

	"rosterlink/internal/app"
	"rosterlink/internal/infrastructure"
)

func newServeCmd(c *cli) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves the reconcile, grading and cache endpoints under /api and
Prometheus metrics under /metrics until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				c.cfg.Server.Port = port
			}
			logger, err := infrastructure.InitializeLogger(c.cfg.Logging)
			if err != nil {
				return err
			}
			a, err := app.NewWithConfig(cmd.Context(), c.cfg, logger)
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
