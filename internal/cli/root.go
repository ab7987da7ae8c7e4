// Package cli wires the fxserver cobra commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fx_backend/internal/app/di"
	"fx_backend/internal/platform/config"
	"fx_backend/internal/platform/logger"
)

var (
	cfgFile  string
	logLevel string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "fxserver",
	Short:         "FX candle service with tiered caching and degradation cascade",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		cfg = loaded
		log = logger.New(cfg.Logging).With().Str("app", cfg.App.Name).Logger()
		return nil
	},
}

// Execute runs the root command with the process arguments.
func Execute() {
	ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the root command with args and exits non-zero on failure.
func ExecuteArgs(args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(resampleCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(purgeCmd)
}

// buildContainer opens the database and Redis; callers must Close it.
func buildContainer(ctx context.Context) (*di.Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded; PersistentPreRunE not executed")
	}
	return di.Build(ctx, cfg, log)
}
