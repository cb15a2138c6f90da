// Command rosterlink reconciles Canvas activity, registration forms and Zoom
// attendance, reports discussion grading status, and serves both over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rosterlink/internal/app"
	"rosterlink/internal/config"
	"rosterlink/internal/infrastructure"
	"rosterlink/pkg/contracts"
)

// cli carries state resolved by the root command's pre-run hook.
type cli struct {
	configFile string
	envFile    string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Reconcile course rosters and track discussion grading",
		Long: `rosterlink merges three inconsistent sources about the same students:
Canvas discussion activity, registration form responses and Zoom attendance
exports. It flags attendance discrepancies and lists discussion posts that
still need a grade.

Configuration comes from config.yaml and ROSTERLINK_* environment variables.
A .env file in the working directory is loaded first.`,
		Version:       config.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			// Log lines of one invocation share a trace id.
			cmd.SetContext(infrastructure.EnsureTraceID(cmd.Context()))
			return nil
		},
	}

	root.SetVersionTemplate(contracts.GetFullVersionString() + "\n")

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: $ROSTERLINK_CONFIG, ./config.yaml, ./configs/config.yaml)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newReconcileCmd(c),
		newGradingCmd(c),
		newServeCmd(c),
	)
	return root
}

// setup loads .env, configuration and the stderr logger.
func (c *cli) setup() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", c.envFile, err)
		}
	}

	var err error
	if c.configFile != "" {
		c.cfg, err = config.LoadFrom(c.configFile)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		c.cfg.Logging.Level = c.logLevel
	}

	// Reports may go to stdout, so one-shot commands log to stderr.
	c.logger = infrastructure.NewJSONLogger(os.Stderr, c.cfg.Logging.Level)
	slog.SetDefault(c.logger)
	return nil
}

// application wires the services without starting the server.
func (c *cli) application(ctx context.Context) (*app.Application, error) {
	return app.NewWithConfig(ctx, c.cfg, c.logger)
}
