package config

import "time"

// ProviderConfig contains configuration for the external sports data provider.
// The provider adapter itself lives behind the core.ProviderClient port; these
// values are passed through to whichever adapter is wired at bootstrap.
type ProviderConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.sports.example.com"`
	APIKey  string        `env:"API_KEY"  envDefault:""`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"30s"`
}
