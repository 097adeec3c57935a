package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvkit/internal/config"
	"github.com/JonMunkholm/csvkit/internal/core"
	"github.com/JonMunkholm/csvkit/internal/logging"
)

// app carries state shared by every subcommand once the root pre-run
// has loaded it.
type app struct {
	cfg *config.Config

	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		msg := core.MapError(err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if msg.Action != "" {
			fmt.Fprintf(os.Stderr, "%s (%s)\n", msg.Action, msg.Code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "csvkit",
		Short:         "Filter, merge, split and export delimited files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json (overrides LOG_FORMAT)")

	root.AddCommand(
		a.filterRowCmd(),
		a.filterRowsCmd(),
		a.mergeCmd(),
		a.splitCmd(),
		a.exportCmd(),
		a.serveCmd(),
	)
	return root
}

// load reads .env, the environment and the logging flags.
func (a *app) load() error {
	// Overload lets .env win over the inherited environment
	if err := godotenv.Overload(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}

	// Subcommand results go to stdout, so logs go to stderr
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	core.ContextCheckInterval = cfg.CSV.ContextCheckInterval

	a.cfg = cfg
	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

// jobContext returns a context cancelled on SIGINT or SIGTERM and tagged
// with a fresh job id.
func jobContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	return logging.ContextWithJobID(ctx, uuid.NewString()), stop
}
