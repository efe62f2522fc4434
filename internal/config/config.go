// Package config loads application settings from a YAML file, a .env file
// and the process environment, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryan-buckman/sftu/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"` // PostgreSQL DSN; empty selects SQLite
	SQLitePath  string `yaml:"sqlite_path"`
	PageSize    int    `yaml:"page_size"`

	Auth   AuthConfig   `yaml:"auth"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
	Ingest IngestConfig `yaml:"ingest"`
}

// AuthConfig configures session cookies and Google sign-in.
type AuthConfig struct {
	BaseURL            string `yaml:"base_url"`
	Secret             string `yaml:"secret"` // also guards /api/admin
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	SessionDays        int    `yaml:"session_days"`
}

// RedisConfig enables the session cache when Addr is set.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// LogConfig selects level, encoding and destination of the logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console | json
	Output     string `yaml:"output"` // stdout | stderr | file path
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// IngestConfig controls feed polling.
type IngestConfig struct {
	Enabled                bool `yaml:"enabled"`
	PollingIntervalMinutes int  `yaml:"polling_interval_minutes"`
	FetchTimeoutSeconds    int  `yaml:"fetch_timeout_seconds"`
}

// Load reads path (a missing file is fine), then .env, then the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	// .env is optional; real environment variables take precedence over it.
	_ = godotenv.Load()

	applyEnvironmentOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// GetConfigPath returns the config file path from the environment or the default.
func GetConfigPath() string {
	if path := os.Getenv("SFTU_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// UsePostgres reports whether a PostgreSQL DSN is configured.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func applyDefaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "./sftu.db"
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 6
	}
	if cfg.Auth.BaseURL == "" {
		cfg.Auth.BaseURL = "http://localhost" + cfg.Addr
		if strings.HasPrefix(cfg.Addr, "0.0.0.0") {
			cfg.Auth.BaseURL = "http://localhost" + strings.TrimPrefix(cfg.Addr, "0.0.0.0")
		}
	}
	if cfg.Auth.SessionDays == 0 {
		cfg.Auth.SessionDays = 7
	}
	if cfg.Redis.TTLSeconds == 0 {
		cfg.Redis.TTLSeconds = 300
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Ingest.PollingIntervalMinutes == 0 {
		cfg.Ingest.PollingIntervalMinutes = model.MinPollingIntervalMinutes
	}
	if cfg.Ingest.FetchTimeoutSeconds == 0 {
		cfg.Ingest.FetchTimeoutSeconds = 30
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	setString(&cfg.Addr, "SFTU_ADDR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Auth.BaseURL, "BETTER_AUTH_URL")
	setString(&cfg.Auth.Secret, "BETTER_AUTH_SECRET")
	setString(&cfg.Auth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Auth.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("SFTU_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PageSize = n
		}
	}
	if v := os.Getenv("SFTU_INGEST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ingest.Enabled = b
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func validate(cfg *Config) error {
	if cfg.PageSize < 1 {
		return fmt.Errorf("page_size must be at least 1, got %d", cfg.PageSize)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", cfg.Log.Format)
	}
	if cfg.Ingest.PollingIntervalMinutes < model.MinPollingIntervalMinutes {
		return fmt.Errorf("ingest.polling_interval_minutes must be at least %d, got %d",
			model.MinPollingIntervalMinutes, cfg.Ingest.PollingIntervalMinutes)
	}
	if cfg.Auth.GoogleClientID != "" && cfg.Auth.GoogleClientSecret == "" {
		return fmt.Errorf("auth.google_client_secret is required when google_client_id is set")
	}
	return nil
}
