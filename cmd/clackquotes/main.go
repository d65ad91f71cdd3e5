package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/graffic/clackquotes/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var verbose bool

	root := &cobra.Command{
		Use:   "clackquotes",
		Short: "Quote storage service",
		Long: `clackquotes stores quotes, their votes and the chat messages they
were posted as. Without a subcommand it applies pending migrations and
starts serving.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := migrateUp(cfg); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newServeCmd(), newMigrateCmd())

	return root.ExecuteContext(context.Background())
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadConfig reads the configuration for the environment named by ENV
func loadConfig() (*config.Config, error) {
	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
