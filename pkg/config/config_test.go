package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Provider.Endpoint)
	assert.NotEmpty(t, cfg.Provider.Model)

	assert.Equal(t, 1000, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 500000, cfg.RateLimit.RequestsPerDay)
	assert.Equal(t, 300000, cfg.RateLimit.TokensPerMinute)

	assert.True(t, cfg.Database.Transactional)
	assert.Equal(t, 30, cfg.Extraction.RetentionDays)
	assert.Equal(t, 120, cfg.Extraction.HorizonDays)
	assert.Equal(t, 3, cfg.Extraction.MaxAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGEVENTS_API_KEY", "gsk_test")
	t.Setenv("IGEVENTS_MODEL", "test-model")
	t.Setenv("IGEVENTS_REQUESTS_PER_MINUTE", "50")
	t.Setenv("IGEVENTS_BATCH_SIZE", "25")
	t.Setenv("IGEVENTS_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "gsk_test", cfg.Provider.APIKey)
	assert.Equal(t, "test-model", cfg.Provider.Model)
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 25, cfg.Extraction.BatchSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("IGEVENTS_REQUESTS_PER_MINUTE", "not-a-number")
	t.Setenv("IGEVENTS_REQUESTS_PER_DAY", "-10")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, 1000, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 500000, cfg.RateLimit.RequestsPerDay)
}

func TestLoadFromFile(t *testing.T) {
	content := `
provider:
  api_key: gsk_from_file
  model: file-model
rate_limit:
  tokens_per_minute: 6000
database:
  path: /tmp/test.db
  transactional: false
extraction:
  retention_days: 14
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "gsk_from_file", cfg.Provider.APIKey)
	assert.Equal(t, "file-model", cfg.Provider.Model)
	assert.Equal(t, 6000, cfg.RateLimit.TokensPerMinute)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.False(t, cfg.Database.Transactional)
	assert.Equal(t, 14, cfg.Extraction.RetentionDays)

	// Untouched values keep their defaults
	assert.Equal(t, 1000, cfg.RateLimit.RequestsPerMinute)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	content := "provider:\n  api_key: gsk_from_file\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("IGEVENTS_API_KEY", "gsk_from_env")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	cfg.LoadFromEnv()

	assert.Equal(t, "gsk_from_env", cfg.Provider.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.APIKey = "gsk_test"
	require.NoError(t, cfg.Validate())
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api key", func(c *Config) { c.Provider.APIKey = "" }},
		{"missing endpoint", func(c *Config) { c.Provider.Endpoint = "" }},
		{"missing model", func(c *Config) { c.Provider.Model = "" }},
		{"zero rpm", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }},
		{"zero tpm", func(c *Config) { c.RateLimit.TokensPerMinute = 0 }},
		{"missing db path", func(c *Config) { c.Database.Path = "" }},
		{"missing storage root", func(c *Config) { c.Storage.Root = "" }},
		{"negative batch size", func(c *Config) { c.Extraction.BatchSize = -1 }},
		{"zero retention", func(c *Config) { c.Extraction.RetentionDays = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Provider.APIKey = "gsk_test"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
