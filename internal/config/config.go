// Package config loads the companion's configuration from a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/campus-portal/companion/internal/remote"
)

// Config is the top-level companion configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" env:"COMPANION_LISTEN"`

	// DataDir holds the SQLite database.
	DataDir string `yaml:"data_dir" env:"COMPANION_DATA_DIR"`

	// StaticDir, if set, is served at /.
	StaticDir string `yaml:"static_dir" env:"COMPANION_STATIC_DIR"`

	// Timezone is the IANA zone event windows are interpreted in. Empty
	// means the host's local zone.
	Timezone string `yaml:"timezone" env:"COMPANION_TIMEZONE"`

	PhaseTick       time.Duration `yaml:"phase_tick" env:"COMPANION_PHASE_TICK"`
	Debounce        time.Duration `yaml:"debounce" env:"COMPANION_DEBOUNCE"`
	CatalogSync     time.Duration `yaml:"catalog_sync" env:"COMPANION_CATALOG_SYNC"`
	SeedConcurrency int           `yaml:"seed_concurrency" env:"COMPANION_SEED_CONCURRENCY"`

	// ICSFeeds are extra calendars merged into the event catalog.
	ICSFeeds []string `yaml:"ics_feeds" env:"COMPANION_ICS_FEEDS"`

	Portal remote.Config `yaml:"portal"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8099",
		DataDir:         "./data",
		PhaseTick:       30 * time.Second,
		Debounce:        500 * time.Millisecond,
		CatalogSync:     10 * time.Minute,
		SeedConcurrency: 8,
		ICSFeeds:        []string{},
		Portal:          remote.DefaultConfig(),
	}
}

// Normalize fills zero values with defaults and tidies lists.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.PhaseTick < time.Second {
		c.PhaseTick = d.PhaseTick
	}
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.CatalogSync < time.Minute {
		c.CatalogSync = d.CatalogSync
	}
	if c.SeedConcurrency <= 0 {
		c.SeedConcurrency = d.SeedConcurrency
	}

	feeds := make([]string, 0, len(c.ICSFeeds))
	for _, f := range c.ICSFeeds {
		if f = strings.TrimSpace(f); f != "" {
			feeds = append(feeds, f)
		}
	}
	c.ICSFeeds = feeds

	c.Portal.Normalize()
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DatabasePath returns the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "companion.db")
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then the
// environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.Normalize()
	return cfg, nil
}
