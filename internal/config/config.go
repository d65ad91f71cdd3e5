package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds all application configuration
type Config struct {
	Environment           string         `koanf:"environment"`
	HTTP                  HTTPConfig     `koanf:"http"`
	Database              DatabaseConfig `koanf:"database"`
	Telegram              TelegramConfig `koanf:"telegram"`
	AllowedChatIDs        []int64        `koanf:"allowed_chat_ids"`
	AutoLeaveUnauthorized bool           `koanf:"auto_leave_unauthorized"`
}

// HTTPConfig holds the API server configuration
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	SSLMode  string `koanf:"sslmode"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	QueryTimeout    time.Duration `koanf:"query_timeout"` // bounds every gateway operation
	LogLevel        string        `koanf:"log_level"`     // silent, error, warn, info
}

// TelegramConfig holds Telegram bot configuration. The bot is disabled
// when Token is empty. Reactions only count as votes in ChatID.
type TelegramConfig struct {
	Token  string `koanf:"token"`
	ChatID int64  `koanf:"chat_id"`
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects it
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Load loads configuration from environment variables and config files
func Load(environment string) (*Config, error) {
	// A missing .env is the normal case outside development
	if err := godotenv.Load(".env"); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	k := koanf.New(".")
	// Load defaults first (lowest priority)
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	// Load from config file based on environment
	configFile := fmt.Sprintf("config/%s.yaml", environment)
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		// Config file is optional
		slog.Debug("config file not loaded", "file", configFile, "error", err)
	}

	// DB_HOST, DB_USER, DB_PASSWORD... as deployed for the previous service
	if err := k.Load(env.Provider("DB_", ".", func(key string) string {
		return "database." + strings.ToLower(strings.TrimPrefix(key, "DB_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading database environment: %w", err)
	}

	// Load from environment variables with CLACK_ prefix
	// Environment variables override everything above
	if err := k.Load(env.ProviderWithValue("CLACK_", "__", func(key string, value string) (string, interface{}) {
		finalKey := strings.TrimPrefix(strings.ToLower(key), "clack_")

		// Check if the existing config has this key as a slice
		switch k.Get(finalKey).(type) {
		case []interface{}, []string, []int64:
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return finalKey, parts
		}

		return finalKey, value
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Environment = environment

	return &cfg, nil
}

// defaultConfig returns the default configuration values
func defaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":5000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "clackbot-quotes",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    5 * time.Second,
			LogLevel:        "silent",
		},
	}
}
