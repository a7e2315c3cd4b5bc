// Package config loads console configuration from an optional YAML file,
// a .env file and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is consulted when no explicit config path is given.
const DefaultFile = "console.yaml"

// Config holds all configuration for the console.
type Config struct {
	ListenAddr     string        `yaml:"listen_addr"`
	BackendURL     string        `yaml:"backend_url"`
	CredentialFile string        `yaml:"credential_file"`
	LogLevel       string        `yaml:"log_level"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Load reads configuration. A YAML file at path (or DefaultFile if path is
// empty and the file exists) overrides defaults; environment variables
// override both. A .env file, if present, is folded into the environment.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:     ":7080",
		BackendURL:     "http://localhost:8000/api",
		LogLevel:       "info",
		RequestTimeout: 30 * time.Second,
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ListenAddr = envOr("CONSOLE_ADDR", cfg.ListenAddr)
	cfg.BackendURL = envOr("BACKEND_URL", cfg.BackendURL)
	cfg.CredentialFile = envOr("CREDENTIAL_FILE", cfg.CredentialFile)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.RequestTimeout = envDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)

	return cfg, nil
}

// SlogLevel maps the configured log level onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}
		return d
	}
	return fallback
}
