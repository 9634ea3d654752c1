// Package config handles configuration loading and validation for agenda.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Remote store backends.
const (
	BackendJSONFile = "jsonfile"
	BackendMongo    = "mongo"
)

// Config holds the application configuration.
type Config struct {
	Backend      string             `yaml:"backend"`
	Mongo        MongoConfig        `yaml:"mongo"`
	PollInterval time.Duration      `yaml:"poll_interval"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Reservations ReservationsConfig `yaml:"reservations"`
	DataDir      string             `yaml:"-"` // set by caller, not from config file
}

// MongoConfig holds connection settings for the mongo backend.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// CatalogConfig controls where sessions are loaded from.
type CatalogConfig struct {
	// Sources are glob patterns (doublestar syntax) of .json and .ics files.
	// Relative patterns resolve against the data directory.
	Sources []string `yaml:"sources"`
	// Refresh is a cron spec for periodic reloads. Empty disables it.
	Refresh string `yaml:"refresh"`
	Window  Window `yaml:"window"`
}

// Window bounds the conference; recurring calendar events are expanded inside it.
type Window struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// ReservationsConfig holds reservation policy.
type ReservationsConfig struct {
	// Cutoff is how long before a session starts changes are refused.
	Cutoff time.Duration `yaml:"cutoff"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendJSONFile,
		Mongo: MongoConfig{
			Database: "agenda",
		},
		PollInterval: time.Second,
		Catalog: CatalogConfig{
			Sources: []string{"catalog/**/*.json", "catalog/**/*.ics"},
		},
		Reservations: ReservationsConfig{
			Cutoff: 15 * time.Minute,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = defaults.Mongo.Database
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.Catalog.Sources == nil {
		c.Catalog.Sources = defaults.Catalog.Sources
	}
}

// SourcePatterns returns the catalog patterns with relative entries
// resolved against the data directory.
func (c *Config) SourcePatterns() []string {
	out := make([]string, len(c.Catalog.Sources))
	for i, p := range c.Catalog.Sources {
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.DataDir, p)
		}
		out[i] = p
	}
	return out
}

// StoreDir returns the directory used by the jsonfile backend.
func (c *Config) StoreDir() string {
	return filepath.Join(c.DataDir, "store")
}

// IdentityFile returns the path the signed-in user is persisted to.
func (c *Config) IdentityFile() string {
	return filepath.Join(c.DataDir, "identity.yaml")
}

// StoreLocation describes where the remote store lives without exposing
// credentials: the jsonfile directory, or the mongo host and database.
func (c *Config) StoreLocation() string {
	if c.Backend != BackendMongo {
		return c.StoreDir()
	}

	host := "mongo"
	if u, err := url.Parse(c.Mongo.URI); err == nil && u.Host != "" {
		host = u.Host
	}
	return host + "/" + c.Mongo.Database
}
