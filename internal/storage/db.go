package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/graffic/clackquotes/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection pool
type DB struct {
	*gorm.DB
}

// New opens a connection pool sized from the configuration
func New(cfg *config.DatabaseConfig) (*DB, error) {
	return NewWithLogger(cfg, ParseLogLevel(cfg.LogLevel))
}

// NewWithLogger opens a connection pool with a custom gorm logger level
func NewWithLogger(cfg *config.DatabaseConfig, logLevel logger.LogLevel) (*DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// Unique and foreign key violations surface as gorm.ErrDuplicatedKey
		// and gorm.ErrForeignKeyViolated.
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &DB{db}, nil
}

// ParseLogLevel maps a configured level name to a gorm logger level.
// Unknown names fall back to silent.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// Ping checks that the database answers
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
