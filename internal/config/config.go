// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/internal/money"
)

// Config represents the complete configuration structure
type Config struct {
	Allocation  AllocationConfig  `yaml:"allocation"`
	Venue       VenueConfig       `yaml:"venue"`
	System      SystemConfig      `yaml:"system"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Alerting    AlertingConfig    `yaml:"alerting"`
}

// AllocationConfig carries the reserve allocation parameters. Ratios are
// floats only at this boundary; ToPolicy converts them to the fixed-point
// representation the rest of the module computes with.
type AllocationConfig struct {
	TargetUSDRatio     float64 `yaml:"target_usd_ratio"`
	RebalanceThreshold float64 `yaml:"rebalance_threshold"`
	MinFloatBTC        float64 `yaml:"min_float_btc"` // whole BTC
	MaxFloatBTC        float64 `yaml:"max_float_btc"` // whole BTC
	HedgeLeverage      uint8   `yaml:"hedge_leverage"`
	DCAEnabled         bool    `yaml:"dca_enabled"`
	DCAPeriodHours     int     `yaml:"dca_period_hours"`
}

// VenueConfig contains futures-venue connection settings
type VenueConfig struct {
	Type              string  `yaml:"type"` // "http" or "mock"
	BaseURL           string  `yaml:"base_url"`
	APIKey            Secret  `yaml:"api_key"`
	SecretKey         Secret  `yaml:"secret_key"`
	Symbol            string  `yaml:"symbol"`
	TimeoutMs         int     `yaml:"timeout_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// PersistenceConfig configures the optional execution/snapshot store
type PersistenceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SQLitePath string `yaml:"sqlite_path"`
}

// AlertingConfig configures optional alert delivery channels. Empty values
// disable the corresponding channel.
type AlertingConfig struct {
	SlackWebhookURL  Secret `yaml:"slack_webhook_url"`
	TelegramBotToken Secret `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	SchedulerPoolSize   int `yaml:"scheduler_pool_size"`
	SchedulerPoolBuffer int `yaml:"scheduler_pool_buffer"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Allocation.TargetUSDRatio == 0 {
		c.Allocation.TargetUSDRatio = 0.40
	}
	if c.Allocation.RebalanceThreshold == 0 {
		c.Allocation.RebalanceThreshold = 0.10
	}
	if c.Allocation.MinFloatBTC == 0 {
		c.Allocation.MinFloatBTC = 50
	}
	if c.Allocation.MaxFloatBTC == 0 {
		c.Allocation.MaxFloatBTC = 10_000
	}
	if c.Allocation.HedgeLeverage == 0 {
		c.Allocation.HedgeLeverage = 5
	}
	if c.Allocation.DCAPeriodHours == 0 {
		c.Allocation.DCAPeriodHours = 24
	}
	if c.Venue.TimeoutMs == 0 {
		c.Venue.TimeoutMs = 30_000
	}
	if c.Venue.RequestsPerSecond == 0 {
		c.Venue.RequestsPerSecond = 5
	}
	if c.Venue.Burst == 0 {
		c.Venue.Burst = 10
	}
	if c.Venue.Symbol == "" {
		c.Venue.Symbol = "BTCUSDT"
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.Telemetry.MetricsPort == 0 {
		c.Telemetry.MetricsPort = 9090
	}
	if c.Concurrency.SchedulerPoolSize == 0 {
		c.Concurrency.SchedulerPoolSize = 4
	}
	if c.Concurrency.SchedulerPoolBuffer == 0 {
		c.Concurrency.SchedulerPoolBuffer = 64
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateAllocationConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateVenueConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validatePersistenceConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateAlertingConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAllocationConfig() error {
	if c.Allocation.TargetUSDRatio <= 0 || c.Allocation.TargetUSDRatio >= 1 {
		return ValidationError{
			Field:   "allocation.target_usd_ratio",
			Value:   c.Allocation.TargetUSDRatio,
			Message: "must be strictly between 0 and 1",
		}
	}
	if c.Allocation.RebalanceThreshold <= 0 || c.Allocation.RebalanceThreshold >= 1 {
		return ValidationError{
			Field:   "allocation.rebalance_threshold",
			Value:   c.Allocation.RebalanceThreshold,
			Message: "must be strictly between 0 and 1",
		}
	}
	if c.Allocation.MinFloatBTC < 0 {
		return ValidationError{
			Field:   "allocation.min_float_btc",
			Value:   c.Allocation.MinFloatBTC,
			Message: "must be non-negative",
		}
	}
	if c.Allocation.MinFloatBTC >= c.Allocation.MaxFloatBTC {
		return ValidationError{
			Field:   "allocation.max_float_btc",
			Value:   c.Allocation.MaxFloatBTC,
			Message: "must be greater than min_float_btc",
		}
	}
	if c.Allocation.HedgeLeverage < 1 || c.Allocation.HedgeLeverage > 20 {
		return ValidationError{
			Field:   "allocation.hedge_leverage",
			Value:   c.Allocation.HedgeLeverage,
			Message: "must be between 1 and 20",
		}
	}
	return nil
}

func (c *Config) validateVenueConfig() error {
	validTypes := []string{"http", "mock"}
	if !contains(validTypes, c.Venue.Type) {
		return ValidationError{
			Field:   "venue.type",
			Value:   c.Venue.Type,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validTypes, ", ")),
		}
	}

	if c.Venue.Type == "mock" {
		return nil
	}

	if c.Venue.BaseURL == "" {
		return ValidationError{
			Field:   "venue.base_url",
			Message: "base URL is required for an http venue",
		}
	}
	if c.Venue.APIKey == "" {
		return ValidationError{
			Field:   "venue.api_key",
			Message: "API key is required for an http venue",
		}
	}
	if c.Venue.SecretKey == "" {
		return ValidationError{
			Field:   "venue.secret_key",
			Message: "secret key is required for an http venue",
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validatePersistenceConfig() error {
	if c.Persistence.Enabled && c.Persistence.SQLitePath == "" {
		return ValidationError{
			Field:   "persistence.sqlite_path",
			Message: "sqlite path is required when persistence is enabled",
		}
	}
	return nil
}

func (c *Config) validateAlertingConfig() error {
	if c.Alerting.TelegramBotToken != "" && c.Alerting.TelegramChatID == "" {
		return ValidationError{
			Field:   "alerting.telegram_chat_id",
			Message: "chat id is required when a telegram bot token is set",
		}
	}
	return nil
}

// ToPolicy converts the allocation section into the fixed-point
// AllocationPolicy the decision components consume.
func (c *Config) ToPolicy() core.AllocationPolicy {
	return core.AllocationPolicy{
		MinFloatBTC:        money.Sats(c.Allocation.MinFloatBTC * money.SatsPerBTC),
		MaxFloatBTC:        money.Sats(c.Allocation.MaxFloatBTC * money.SatsPerBTC),
		TargetUSDRatio:     money.NewRatio(int64(c.Allocation.TargetUSDRatio * money.RatioScale)),
		RebalanceThreshold: money.NewRatio(int64(c.Allocation.RebalanceThreshold * money.RatioScale)),
		DCAEnabled:         c.Allocation.DCAEnabled,
		DCAPeriod:          time.Duration(c.Allocation.DCAPeriodHours) * time.Hour,
		HedgeLeverage:      c.Allocation.HedgeLeverage,
		VenueTimeout:       time.Duration(c.Venue.TimeoutMs) * time.Millisecond,
	}
}

// VenueTimeout returns the configured venue deadline as a duration.
func (c *Config) VenueTimeout() time.Duration {
	return time.Duration(c.Venue.TimeoutMs) * time.Millisecond
}

// String returns a string representation of the configuration. Secrets
// redact themselves via Secret.MarshalYAML, so the output never carries
// credentials.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		value := os.Getenv(key)
		if value == "" && isCriticalEnvVar(key) {
			return ""
		}
		return value
	})
}

// isCriticalEnvVar checks if an environment variable is critical for operation
func isCriticalEnvVar(key string) bool {
	criticalVars := []string{
		"VENUE_API_KEY", "VENUE_SECRET_KEY",
	}
	return contains(criticalVars, key)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	cfg := &Config{
		Allocation: AllocationConfig{
			TargetUSDRatio:     0.40,
			RebalanceThreshold: 0.10,
			MinFloatBTC:        50,
			MaxFloatBTC:        10_000,
			HedgeLeverage:      5,
			DCAEnabled:         false,
			DCAPeriodHours:     24,
		},
		Venue: VenueConfig{
			Type:   "mock",
			Symbol: "BTCUSDT",
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
	cfg.applyDefaults()
	return cfg
}
