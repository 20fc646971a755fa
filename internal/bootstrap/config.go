package bootstrap

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/tonsurance/btcfloat/internal/config"
	"github.com/tonsurance/btcfloat/internal/policy"
)

// Config is an alias for the project's main configuration struct
type Config = config.Config

// LoadConfig delegates to the project's config loader
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	// Pre-flight Checks
	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation
func checkPreFlight(cfg *Config) error {
	// The resolved fixed-point policy must itself validate; schema-level
	// float checks can pass while the converted ratios land out of range.
	if err := policy.Validate(cfg.ToPolicy()); err != nil {
		return fmt.Errorf("resolved allocation policy invalid: %w", err)
	}

	if cfg.Venue.Type == "http" {
		u, err := url.Parse(cfg.Venue.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("venue.base_url is not a valid URL: %q", cfg.Venue.BaseURL)
		}
	}

	if cfg.Persistence.Enabled {
		dir := filepath.Dir(cfg.Persistence.SQLitePath)
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("persistence directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("persistence path parent %s is not a directory", dir)
		}
	}

	return nil
}
