// Package remote provides the client for the campus portal REST service.
package remote

import (
	"strings"
	"time"
)

// Config holds the configuration for portal API access.
type Config struct {
	// BaseURL is the portal API base URL
	BaseURL string `yaml:"base_url" env:"PORTAL_URL"`

	// Token is the bearer token of the signed-in user
	Token string `yaml:"token" env:"PORTAL_TOKEN"`

	// Timeout for API requests
	Timeout time.Duration `yaml:"timeout" env:"PORTAL_TIMEOUT"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:5000",
		Timeout: 10 * time.Second,
	}
}

// Normalize fills in missing values with defaults.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultConfig().BaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultConfig().Timeout
	}
}

// HasToken returns true if requests will be authenticated.
func (c Config) HasToken() bool {
	return c.Token != ""
}
