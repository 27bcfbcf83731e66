package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/blobstream/internal/progress"
	"github.com/ligustah/blobstream/pkg/chunked"
)

// Config defines configuration for the blobstream CLI.
type Config struct {
	Source      string      `yaml:"source"`
	Object      string      `yaml:"object"`
	ChunkSize   int64       `yaml:"chunk_size"`
	Concurrency int         `yaml:"concurrency"`
	Output      string      `yaml:"output"`
	Progress    bool        `yaml:"progress"`
	PrefixMatch bool        `yaml:"prefix_match"`
	MetricsAddr string      `yaml:"metrics_addr"`
	LogLevel    string      `yaml:"log_level"`
	RateLimit   float64     `yaml:"rate_limit"`
	RateBurst   int         `yaml:"rate_burst"`
	Retry       RetryConfig `yaml:"retry"`
}

// RetryConfig defines per-chunk retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		ChunkSize:   chunked.DefaultChunkSize,
		Concurrency: chunked.DefaultConcurrency,
		LogLevel:    "info",
		Retry: RetryConfig{
			Attempts: chunked.DefaultMaxRetries,
			Backoff:  chunked.DefaultBackoff,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	Source      string          `yaml:"source"`
	Object      string          `yaml:"object"`
	ChunkSize   string          `yaml:"chunk_size"`
	Concurrency int             `yaml:"concurrency"`
	Output      string          `yaml:"output"`
	Progress    bool            `yaml:"progress"`
	PrefixMatch bool            `yaml:"prefix_match"`
	MetricsAddr string          `yaml:"metrics_addr"`
	LogLevel    string          `yaml:"log_level"`
	RateLimit   float64         `yaml:"rate_limit"`
	RateBurst   int             `yaml:"rate_burst"`
	Retry       yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   *int   `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of Default().
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Source != "" {
		cfg.Source = yc.Source
	}
	if yc.Object != "" {
		cfg.Object = yc.Object
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	if yc.Concurrency != 0 {
		cfg.Concurrency = yc.Concurrency
	}
	if yc.Output != "" {
		cfg.Output = yc.Output
	}
	cfg.Progress = yc.Progress
	cfg.PrefixMatch = yc.PrefixMatch
	if yc.MetricsAddr != "" {
		cfg.MetricsAddr = yc.MetricsAddr
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.RateLimit != 0 {
		cfg.RateLimit = yc.RateLimit
	}
	if yc.RateBurst != 0 {
		cfg.RateBurst = yc.RateBurst
	}
	if yc.Retry.Attempts != nil {
		cfg.Retry.Attempts = *yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the BLOBSTREAM_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("BLOBSTREAM_SOURCE"); v != "" {
		c.Source = v
	}
	if v := os.Getenv("BLOBSTREAM_OBJECT"); v != "" {
		c.Object = v
	}
	if v := os.Getenv("BLOBSTREAM_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse BLOBSTREAM_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = size
	}
	if v := os.Getenv("BLOBSTREAM_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BLOBSTREAM_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := os.Getenv("BLOBSTREAM_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("BLOBSTREAM_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("BLOBSTREAM_PREFIX_MATCH"); v != "" {
		c.PrefixMatch = v == "true" || v == "1"
	}
	if v := os.Getenv("BLOBSTREAM_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("BLOBSTREAM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("BLOBSTREAM_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse BLOBSTREAM_RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}
	if v := os.Getenv("BLOBSTREAM_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BLOBSTREAM_RATE_BURST: %w", err)
		}
		c.RateBurst = n
	}
	if v := os.Getenv("BLOBSTREAM_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BLOBSTREAM_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("BLOBSTREAM_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse BLOBSTREAM_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("BLOBSTREAM_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse BLOBSTREAM_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// IsHTTP reports whether Source is an http(s) URL rather than a bucket URL.
func (c *Config) IsHTTP() bool {
	return strings.HasPrefix(c.Source, "http://") || strings.HasPrefix(c.Source, "https://")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("config: source is required")
	}
	if c.Object == "" && !c.IsHTTP() {
		return errors.New("config: object is required for bucket sources")
	}
	if c.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.Retry.Attempts < 0 {
		return errors.New("config: retry.attempts must not be negative")
	}
	if c.Retry.MaxBackoff != 0 && c.Retry.MaxBackoff < c.Retry.Backoff {
		return errors.New("config: retry.max_backoff must not be below retry.backoff")
	}
	if c.RateLimit < 0 {
		return errors.New("config: rate_limit must not be negative")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Source != "" {
		c.Source = override.Source
	}
	if override.Object != "" {
		c.Object = override.Object
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.Concurrency != 0 {
		c.Concurrency = override.Concurrency
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.PrefixMatch {
		c.PrefixMatch = override.PrefixMatch
	}
	if override.MetricsAddr != "" {
		c.MetricsAddr = override.MetricsAddr
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.RateLimit != 0 {
		c.RateLimit = override.RateLimit
	}
	if override.RateBurst != 0 {
		c.RateBurst = override.RateBurst
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}

// StreamOptions converts the configuration into chunked options.
func (c *Config) StreamOptions() []chunked.Option {
	opts := []chunked.Option{
		chunked.WithChunkSize(c.ChunkSize),
		chunked.WithConcurrency(c.Concurrency),
		chunked.WithMaxRetries(c.Retry.Attempts),
		chunked.WithBackoff(c.Retry.Backoff, c.Retry.MaxBackoff),
	}
	if c.RateLimit > 0 {
		opts = append(opts, chunked.WithRateLimit(c.RateLimit, c.RateBurst))
	}
	return opts
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
	}
}
