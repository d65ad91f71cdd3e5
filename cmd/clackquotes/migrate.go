package main

import (
	"fmt"
	"strconv"

	"github.com/graffic/clackquotes/internal/config"
	"github.com/graffic/clackquotes/internal/storage"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				return migrateUp(cfg)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *storage.Migrator, args []string) error {
				return m.Down()
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, or roll back -N",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(cmd *cobra.Command, m *storage.Migrator, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q: %w", args[0], err)
				}
				return m.Steps(n)
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(cmd *cobra.Command, m *storage.Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return m.Force(v)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, m *storage.Migrator, args []string) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			}),
		},
	)

	return cmd
}

func migrateUp(cfg *config.Config) error {
	if err := storage.RunMigrations(&cfg.Database); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// withMigrator opens a migrator for the configured database around fn
func withMigrator(fn func(*cobra.Command, *storage.Migrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		m, err := storage.NewMigrator(&cfg.Database)
		if err != nil {
			return err
		}
		defer m.Close()

		return fn(cmd, m, args)
	}
}
