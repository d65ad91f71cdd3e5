package storage

import (
	"embed"
	"log/slog"

	"github.com/graffic/clackquotes/internal/config"
)

// migrationFS carries the schema so the binary needs no migrations directory
//
//go:embed migrations/*.sql
var migrationFS embed.FS

// RunMigrations applies every pending migration. Already applied versions
// are a no-op, so it is safe to run on each start.
func RunMigrations(cfg *config.DatabaseConfig) error {
	slog.Info("running database migrations", "host", cfg.Host, "database", cfg.Database)

	migrator, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		return err
	}

	slog.Info("migrations completed successfully")
	return nil
}
