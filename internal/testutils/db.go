package testutils

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/graffic/clackquotes/internal/config"
	"github.com/graffic/clackquotes/internal/storage"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testImage    = "postgres:16-alpine"
	testDatabase = "clackquotes_test"
	testUser     = "clackquotes"
	testPassword = "clackquotes"
)

// tables lists every table in dependency order, children first
var tables = []string{"quote_vote", "quote_message", "quote_content", "quote_metadata", "discord_user"}

var (
	setupOnce sync.Once
	sharedCfg *config.DatabaseConfig
	setupErr  error
)

// TestDB wraps a GORM database connection for testing
type TestDB struct {
	DB     *gorm.DB
	Config *config.DatabaseConfig
}

// NewTestDB returns a migrated, empty database. The database comes from
// TEST_DB_HOST and friends when set, otherwise from a postgres container
// shared by every test in the package. Tests are skipped when neither is
// available.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	setupOnce.Do(func() {
		sharedCfg, setupErr = setupDatabase(context.Background())
	})
	if setupErr != nil {
		t.Skipf("test database unavailable: %v", setupErr)
	}

	pool, err := storage.NewWithLogger(sharedCfg, logger.Silent)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	testDB := &TestDB{DB: pool.DB, Config: sharedCfg}
	testDB.Cleanup()

	t.Cleanup(func() {
		testDB.Cleanup()
		pool.Close()
	})

	return testDB
}

// Open returns a second, independent pool on the same database. Callbacks
// registered on it do not leak into the pool returned by NewTestDB.
func (tdb *TestDB) Open(t *testing.T) *gorm.DB {
	t.Helper()

	pool, err := storage.NewWithLogger(tdb.Config, logger.Silent)
	if err != nil {
		t.Fatalf("Failed to open extra connection: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool.DB
}

// Cleanup truncates all tables
func (tdb *TestDB) Cleanup() {
	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
}

// setupDatabase resolves the database and applies the migrations once
func setupDatabase(ctx context.Context) (*config.DatabaseConfig, error) {
	cfg, ok := envDatabaseConfig()
	if !ok {
		var err error
		cfg, err = startContainer(ctx)
		if err != nil {
			return nil, err
		}
	}

	if err := storage.RunMigrations(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envDatabaseConfig reads TEST_DB_* variables. TEST_DB_HOST must be set.
func envDatabaseConfig() (*config.DatabaseConfig, bool) {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		return nil, false
	}

	return &config.DatabaseConfig{
		Host:     host,
		Port:     getEnvInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", testUser),
		Password: getEnv("TEST_DB_PASSWORD", testPassword),
		Database: getEnv("TEST_DB_NAME", testDatabase),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}, true
}

// startContainer starts a throwaway postgres. The testcontainers reaper
// removes it when the test binary exits.
func startContainer(ctx context.Context) (*config.DatabaseConfig, error) {
	ctr, err := postgres.Run(ctx, testImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("failed to get container connection string: %w", err)
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse container connection string: %w", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return nil, fmt.Errorf("failed to parse container port: %w", err)
	}

	return &config.DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     testUser,
		Password: testPassword,
		Database: testDatabase,
		SSLMode:  "disable",
	}, nil
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int or returns default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}
