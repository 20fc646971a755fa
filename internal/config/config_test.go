package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:  "expand single env var",
			input: "api_key: ${TEST_API_KEY}",
			envVars: map[string]string{
				"TEST_API_KEY": "test_key_123",
			},
			expected: "api_key: test_key_123",
		},
		{
			name:  "expand multiple env vars",
			input: "api_key: ${API_KEY}\nsecret: ${SECRET_KEY}",
			envVars: map[string]string{
				"API_KEY":    "key_value",
				"SECRET_KEY": "secret_value",
			},
			expected: "api_key: key_value\nsecret: secret_value",
		},
		{
			name:     "missing env var returns empty string",
			input:    "api_key: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "api_key: ",
		},
		{
			name:  "mixed static and env vars",
			input: "static_value: 123\napi_key: ${TEST_KEY}",
			envVars: map[string]string{
				"TEST_KEY": "dynamic_key",
			},
			expected: "static_value: 123\napi_key: dynamic_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Set up environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			result := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	// Create a temporary config file with env var placeholders
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	configContent := `allocation:
  target_usd_ratio: 0.40
  rebalance_threshold: 0.10
  min_float_btc: 50
  max_float_btc: 10000
  hedge_leverage: 5

venue:
  type: "http"
  base_url: "https://futures.example.com"
  api_key: "${TEST_VENUE_API_KEY}"
  secret_key: "${TEST_VENUE_SECRET_KEY}"
  symbol: "BTCUSDT"
  timeout_ms: 30000

system:
  log_level: "INFO"

telemetry:
  metrics_port: 9090
  enable_metrics: true
`

	_, err = tmpFile.Write([]byte(configContent))
	require.NoError(t, err)
	tmpFile.Close()

	os.Setenv("TEST_VENUE_API_KEY", "test_api_key_from_env")
	os.Setenv("TEST_VENUE_SECRET_KEY", "test_secret_key_from_env")
	defer os.Unsetenv("TEST_VENUE_API_KEY")
	defer os.Unsetenv("TEST_VENUE_SECRET_KEY")

	config, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err, "LoadConfig() error")

	assert.Equal(t, Secret("test_api_key_from_env"), config.Venue.APIKey)
	assert.Equal(t, Secret("test_secret_key_from_env"), config.Venue.SecretKey)
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "target ratio out of range",
			mutate:  func(c *Config) { c.Allocation.TargetUSDRatio = 1.5 },
			wantErr: "allocation.target_usd_ratio",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Allocation.RebalanceThreshold = -0.1 },
			wantErr: "allocation.rebalance_threshold",
		},
		{
			name:    "floor above ceiling",
			mutate:  func(c *Config) { c.Allocation.MinFloatBTC = 20_000 },
			wantErr: "allocation.max_float_btc",
		},
		{
			name:    "leverage too high",
			mutate:  func(c *Config) { c.Allocation.HedgeLeverage = 50 },
			wantErr: "allocation.hedge_leverage",
		},
		{
			name:    "unknown venue type",
			mutate:  func(c *Config) { c.Venue.Type = "carrier-pigeon" },
			wantErr: "venue.type",
		},
		{
			name: "http venue without base url",
			mutate: func(c *Config) {
				c.Venue.Type = "http"
				c.Venue.BaseURL = ""
				c.Venue.APIKey = "k"
				c.Venue.SecretKey = "s"
			},
			wantErr: "venue.base_url",
		},
		{
			name: "persistence without path",
			mutate: func(c *Config) {
				c.Persistence.Enabled = true
				c.Persistence.SQLitePath = ""
			},
			wantErr: "persistence.sqlite_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	p := cfg.ToPolicy()
	assert.Equal(t, int64(400_000), p.TargetUSDRatio.Num)
	assert.Equal(t, int64(100_000), p.RebalanceThreshold.Num)
	assert.EqualValues(t, 50*100_000_000, p.MinFloatBTC)
	assert.EqualValues(t, uint8(5), p.HedgeLeverage)
}

func TestIsCriticalEnvVar(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		expected bool
	}{
		{"venue api key is critical", "VENUE_API_KEY", true},
		{"venue secret is critical", "VENUE_SECRET_KEY", true},
		{"random var is not critical", "RANDOM_VAR", false},
		{"empty var is not critical", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isCriticalEnvVar(tt.envVar)
			assert.Equal(t, tt.expected, result, "isCriticalEnvVar(%q)", tt.envVar)
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Venue.APIKey = Secret("my_super_secret_api_key")
	cfg.Venue.SecretKey = Secret("my_super_secret_secret_key")

	output := cfg.String()

	assert.Contains(t, output, "[REDACTED]", "output should contain the redaction marker")
	assert.NotContains(t, output, "my_super_secret_api_key", "output should NOT contain full API key")
	assert.NotContains(t, output, "my_super_secret_secret_key", "output should NOT contain full secret key")
	assert.NotContains(t, output, "my_s", "output should NOT contain partial secret parts")
}
