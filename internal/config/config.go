// Package config resolves the proxy's runtime configuration, layering
// built-in defaults, an optional YAML file, and environment variables —
// the same envconfig+YAML layering used elsewhere in the corpus this
// repo was grown from.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

// Defaults matching the proxy's configuration table.
const (
	DefaultPort                  = 8080
	DefaultCacheSizeBytes  int64 = 200 * 1024 * 1024 // 200 MiB
	DefaultMaxElementBytes int64 = 10 * 1024 * 1024  // 10 MiB
	DefaultRequestTimeoutMS       = 30000
	DefaultCacheStatsIntervalMS   = 60000
	DefaultMetricsAddr            = ":9090"
	DefaultCORSOrigin             = "*"
)

// Config holds every named constant from the proxy's configuration
// table, plus the ambient settings (logging, CORS, metrics) the core
// depends on but the table leaves implicit.
type Config struct {
	Port                 int   `envconfig:"PORT" yaml:"port"`
	CacheSizeBytes       int64 `envconfig:"CACHE_SIZE" yaml:"cache_size"`
	MaxElementSizeBytes  int64 `envconfig:"MAX_ELEMENT_SIZE" yaml:"max_element_size"`
	RequestTimeoutMS     int   `envconfig:"REQUEST_TIMEOUT" yaml:"request_timeout_ms"`
	CacheStatsIntervalMS int   `envconfig:"CACHE_STATS_INTERVAL" yaml:"cache_stats_interval_ms"`
	Debug                bool  `envconfig:"DEBUG" yaml:"debug"`

	LogFile     string `envconfig:"LOG_FILE" yaml:"log_file"`
	CORSOrigin  string `envconfig:"CORS_ORIGIN" yaml:"cors_origin"`
	MetricsAddr string `envconfig:"METRICS_ADDR" yaml:"metrics_addr"`
}

// NewDefault returns the proxy's stated defaults.
func NewDefault() *Config {
	return &Config{
		Port:                 DefaultPort,
		CacheSizeBytes:       DefaultCacheSizeBytes,
		MaxElementSizeBytes:  DefaultMaxElementBytes,
		RequestTimeoutMS:     DefaultRequestTimeoutMS,
		CacheStatsIntervalMS: DefaultCacheStatsIntervalMS,
		CORSOrigin:           DefaultCORSOrigin,
		MetricsAddr:          DefaultMetricsAddr,
	}
}

// FromEnv layers environment variables over the defaults.
func FromEnv() (*Config, error) {
	cfg := NewDefault()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv layers environment variables over whatever cfg already holds
// (defaults, or defaults plus a loaded YAML file), completing the
// defaults -> YAML -> env -> CLI flag precedence chain. envconfig only
// overwrites a field when its matching variable is actually set, so
// layering it after YAML never clobbers a value the file provided.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("env config: %w", err)
	}
	return nil
}

// FromYAMLFile layers a YAML file over the defaults.
func FromYAMLFile(path string) (*Config, error) {
	cfg := NewDefault()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that would violate the cache's own
// configuration invariant (maxEntryBytes <= maxBytes).
func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive, got %d", c.Port)
	}
	if c.MaxElementSizeBytes > c.CacheSizeBytes {
		return fmt.Errorf("max_element_size (%d) cannot exceed cache_size (%d)",
			c.MaxElementSizeBytes, c.CacheSizeBytes)
	}
	return nil
}

// RequestTimeout is the origin fetch timeout as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// CacheStatsInterval is the observability emission period as a
// time.Duration.
func (c *Config) CacheStatsInterval() time.Duration {
	return time.Duration(c.CacheStatsIntervalMS) * time.Millisecond
}
