package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the event extraction pipeline
type Config struct {
	// Inference provider settings
	Provider ProviderConfig `yaml:"provider" json:"provider"`

	// Rate limiting configuration (official provider limits)
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Relational store settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Blob storage settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Extraction batch settings
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ProviderConfig holds inference provider settings
type ProviderConfig struct {
	APIKey   string `yaml:"api_key" json:"api_key"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
}

// RateLimitConfig holds the official provider limits. The quota tracker
// enforces 90% of these values.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerDay    int `yaml:"requests_per_day" json:"requests_per_day"`
	TokensPerMinute   int `yaml:"tokens_per_minute" json:"tokens_per_minute"`
}

// DatabaseConfig holds relational store settings
type DatabaseConfig struct {
	Path          string `yaml:"path" json:"path"`
	Transactional bool   `yaml:"transactional" json:"transactional"`
}

// StorageConfig holds blob storage settings
type StorageConfig struct {
	Root string `yaml:"root" json:"root"`
}

// ExtractionConfig holds batch processing settings
type ExtractionConfig struct {
	// BatchSize limits how many unprocessed posts one run picks up.
	// Zero means all unprocessed posts.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// RetentionDays marks posts older than this processed without extraction.
	RetentionDays int `yaml:"retention_days" json:"retention_days"`
	// HorizonDays rejects events starting further out than this unless the
	// text names an explicit year.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// MaxAttempts caps extraction retries per post across runs.
	MaxAttempts int     `yaml:"max_attempts" json:"max_attempts"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Endpoint: "https://api.groq.com/openai/v1",
			Model:    "meta-llama/llama-4-scout-17b-16e-instruct",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 1000,
			RequestsPerDay:    500000,
			TokensPerMinute:   300000,
		},
		Database: DatabaseConfig{
			Path:          "igevents.db",
			Transactional: true,
		},
		Storage: StorageConfig{
			Root: "./storage",
		},
		Extraction: ExtractionConfig{
			BatchSize:     0,
			RetentionDays: 30,
			HorizonDays:   120,
			MaxAttempts:   3,
			MaxTokens:     4000,
			Temperature:   0.3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("IGEVENTS_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("IGEVENTS_ENDPOINT"); v != "" {
		c.Provider.Endpoint = v
	}
	if v := os.Getenv("IGEVENTS_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("IGEVENTS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("IGEVENTS_STORAGE_ROOT"); v != "" {
		c.Storage.Root = v
	}
	if v, ok := envInt("IGEVENTS_REQUESTS_PER_MINUTE"); ok {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := envInt("IGEVENTS_REQUESTS_PER_DAY"); ok {
		c.RateLimit.RequestsPerDay = v
	}
	if v, ok := envInt("IGEVENTS_TOKENS_PER_MINUTE"); ok {
		c.RateLimit.TokensPerMinute = v
	}
	if v, ok := envInt("IGEVENTS_BATCH_SIZE"); ok {
		c.Extraction.BatchSize = v
	}
	if v, ok := envInt("IGEVENTS_RETENTION_DAYS"); ok {
		c.Extraction.RetentionDays = v
	}
	if v := os.Getenv("IGEVENTS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".igevents.yaml",
		".igevents.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igevents", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".igevents.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("provider API key is required"))
	}
	if c.Provider.Endpoint == "" {
		errs = append(errs, errors.New("provider endpoint is required"))
	}
	if c.Provider.Model == "" {
		errs = append(errs, errors.New("provider model is required"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.RequestsPerDay <= 0 {
		errs = append(errs, errors.New("requests per day must be positive"))
	}
	if c.RateLimit.TokensPerMinute <= 0 {
		errs = append(errs, errors.New("tokens per minute must be positive"))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Storage.Root == "" {
		errs = append(errs, errors.New("storage root is required"))
	}

	if c.Extraction.BatchSize < 0 {
		errs = append(errs, errors.New("batch size cannot be negative"))
	}
	if c.Extraction.RetentionDays <= 0 {
		errs = append(errs, errors.New("retention days must be positive"))
	}
	if c.Extraction.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Environment variables > .env file > Config file > Defaults
func Load(configPath string) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igevents.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	config.LoadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
