package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and cache configuration
//   - provider.go: Sports data provider configuration
//   - sync.go: Sync engine, scheduler, recovery, and reaper configuration
//   - observability.go: Metrics and notification configuration
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, relaxed guardrails).
	IsDev bool `env:"DEV" envDefault:"false"`

	// Environment is a deployment-environment tag stamped into job run metadata.
	// It is observability-only and never gates execution logic.
	Environment string `env:"ENVIRONMENT" envDefault:"local"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// Sports data provider configuration
	Provider ProviderConfig `envPrefix:"PROVIDER_"`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"scheduler,reaper"`

	// Sync engine configuration
	Sync SyncConfig

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Overdue fixture recovery configuration
	Recovery RecoveryConfig

	// Job run reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Sync.Sanitize()
	c.Scheduler.Sanitize()
	c.Recovery.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	c.Environment = strings.TrimSpace(c.Environment)
	if c.Environment == "" {
		c.Environment = "local"
	}

	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
// APP_ENV is checked as a fallback for deployments that only set one signal.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsSchedulerEnabled returns true if the cron scheduler service is enabled.
func (c *AppConfig) IsSchedulerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeScheduler]
}

// IsReaperEnabled returns true if the job run reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}
