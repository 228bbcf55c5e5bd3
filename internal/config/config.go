// Package config holds the process-wide search configuration: storage
// locations, concurrency limits, timeouts, cache sizing, and backend
// toggles. Loaded once at startup and read-only thereafter.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// SearchConfig is the complete configuration for the search core.
type SearchConfig struct {
	// Locations are the configured storage locations searched on every
	// request, in s3:// or omics:// form.
	Locations []string `yaml:"locations"`

	// MaxConcurrentSearches bounds backend fan-out per request.
	MaxConcurrentSearches int `yaml:"max_concurrent_searches"`

	// SearchTimeout is the per-backend-call deadline.
	SearchTimeout time.Duration `yaml:"search_timeout"`

	// MaxTagRetrievalBatchSize bounds concurrent tag lookups per listing
	// page so tag retrieval never degrades to per-file round trips.
	MaxTagRetrievalBatchSize int `yaml:"max_tag_retrieval_batch_size"`

	Backends BackendConfig `yaml:"backends"`
	Caches   CachesConfig  `yaml:"caches"`
	Logging  LoggingConfig `yaml:"logging"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// BackendConfig enables or disables individual storage backends.
type BackendConfig struct {
	S3Enabled    bool   `yaml:"s3_enabled"`
	OmicsEnabled bool   `yaml:"omics_enabled"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`

	// Static credentials. When empty the default AWS credential chain
	// is used.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// CacheConfig sizes one cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// CachesConfig sizes the three caches plus the shared prune ratio.
type CachesConfig struct {
	Tags       CacheConfig `yaml:"tags"`
	Results    CacheConfig `yaml:"results"`
	Pagination CacheConfig `yaml:"pagination"`

	// CleanupKeepRatio is the fraction of entries retained when a cache
	// is pruned, biased toward most recently used.
	CleanupKeepRatio float64 `yaml:"cleanup_keep_ratio"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *SearchConfig {
	return &SearchConfig{
		Locations:                nil,
		MaxConcurrentSearches:    8,
		SearchTimeout:            30 * time.Second,
		MaxTagRetrievalBatchSize: 16,
		Backends: BackendConfig{
			S3Enabled:    true,
			OmicsEnabled: false,
			Region:       "us-east-1",
		},
		Caches: CachesConfig{
			Tags:             CacheConfig{TTL: 10 * time.Minute, MaxEntries: 10000},
			Results:          CacheConfig{TTL: 2 * time.Minute, MaxEntries: 500},
			Pagination:       CacheConfig{TTL: 15 * time.Minute, MaxEntries: 1000},
			CleanupKeepRatio: 0.75,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "genomicsearch",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *SearchConfig) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv overrides configuration from environment variables.
func (c *SearchConfig) LoadFromEnv() error {
	if val := os.Getenv("GFS_LOCATIONS"); val != "" {
		c.Locations = splitAndTrim(val)
	}
	if val := os.Getenv("GFS_MAX_CONCURRENT_SEARCHES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxConcurrentSearches = n
		}
	}
	if val := os.Getenv("GFS_SEARCH_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.SearchTimeout = d
		}
	}
	if val := os.Getenv("GFS_TAG_BATCH_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxTagRetrievalBatchSize = n
		}
	}
	if val := os.Getenv("GFS_S3_ENABLED"); val != "" {
		c.Backends.S3Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("GFS_OMICS_ENABLED"); val != "" {
		c.Backends.OmicsEnabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("GFS_REGION"); val != "" {
		c.Backends.Region = val
	}
	if val := os.Getenv("GFS_ENDPOINT"); val != "" {
		c.Backends.Endpoint = val
	}
	if val := os.Getenv("GFS_ACCESS_KEY_ID"); val != "" {
		c.Backends.AccessKeyID = val
	}
	if val := os.Getenv("GFS_SECRET_ACCESS_KEY"); val != "" {
		c.Backends.SecretAccessKey = val
	}
	if val := os.Getenv("GFS_SESSION_TOKEN"); val != "" {
		c.Backends.SessionToken = val
	}
	if val := os.Getenv("GFS_CACHE_KEEP_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Caches.CleanupKeepRatio = f
		}
	}
	if val := os.Getenv("GFS_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	return nil
}

// Validate checks the configuration for internal consistency.
func (c *SearchConfig) Validate() error {
	if c.MaxConcurrentSearches <= 0 {
		return fmt.Errorf("max_concurrent_searches must be greater than 0")
	}
	if c.SearchTimeout <= 0 {
		return fmt.Errorf("search_timeout must be greater than 0")
	}
	if c.MaxTagRetrievalBatchSize <= 0 {
		return fmt.Errorf("max_tag_retrieval_batch_size must be greater than 0")
	}
	if c.Caches.CleanupKeepRatio <= 0 || c.Caches.CleanupKeepRatio >= 1 {
		return fmt.Errorf("cleanup_keep_ratio must be in (0, 1), got %v", c.Caches.CleanupKeepRatio)
	}
	if !c.Backends.S3Enabled && !c.Backends.OmicsEnabled {
		return fmt.Errorf("at least one backend must be enabled")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.Logging.Level, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
