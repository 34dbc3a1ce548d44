package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/matchday/sportsync/config"
)

// InitLogger initializes the structured logger and installs it as the
// process default. Development mode gets debug-level output.
func InitLogger(isDev bool) *slog.Logger {
	level := slog.LevelInfo
	if isDev {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates that at least one service is enabled.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}
	return nil
}

// EnabledServiceNames returns the names of enabled services, for startup logs.
func EnabledServiceNames(cfg *config.AppConfig) []string {
	if cfg == nil {
		return nil
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(services))
	for mode := range services {
		names = append(names, string(mode))
	}
	return names
}
