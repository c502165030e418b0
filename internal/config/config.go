// Package config provides YAML configuration loading and validation for the
// origin verification broker.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure for the broker.
type Config struct {
	// RedisAddr is the host:port of the shared key-value store backing
	// sessions and rate-limit counters. Required.
	RedisAddr string `yaml:"redis_addr"`

	// RedisDB selects the logical Redis database index. Defaults to 0.
	RedisDB int `yaml:"redis_db"`

	// HTTPAddr is the listen address for the REST + WebSocket API.
	// Defaults to "127.0.0.1:8080" when omitted.
	HTTPAddr string `yaml:"http_addr"`

	// SessionTTL bounds how long a session record is retrievable from its
	// creation time. Defaults to 30s when omitted.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// RateLimits configures the per-operation, per-minute request ceilings.
	RateLimits RateLimitConfig `yaml:"rate_limits"`

	// Registry configures the trust-anchor registry refresh pipeline.
	Registry RegistryConfig `yaml:"registry"`

	// Notify configures the notification hub.
	Notify NotifyConfig `yaml:"notify"`

	// TestSSL, when true, trusts any *.badssl.com host regardless of the
	// registry contents. Must never be enabled in production.
	TestSSL bool `yaml:"test_ssl"`

	// TestRelaxSameIPGuard, when true, disables the WebSocket same-IP guard
	// that normally refuses a socket whose peer IP matches the originating
	// browser's IP. Must never be enabled in production.
	TestRelaxSameIPGuard bool `yaml:"test_relax_same_ip_guard"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`
}

// RateLimitConfig holds the per-minute request ceiling for each rate-limited
// operation.
type RateLimitConfig struct {
	Init       int `yaml:"init"`
	Verify     int `yaml:"verify"`
	Proximity  int `yaml:"proximity"`
	Poll       int `yaml:"poll"`
}

// RegistryConfig configures the trust-anchor registry's refresh pipeline.
type RegistryConfig struct {
	// SnapshotPath is the local JSON file consulted (and, on a successful
	// upstream load, rewritten) before falling back to the upstream feed.
	SnapshotPath string `yaml:"snapshot_path"`

	// UpstreamURL is the paginated upstream domain feed. Leave empty to
	// skip upstream refresh and rely on the local snapshot and fallback
	// set only.
	UpstreamURL string `yaml:"upstream_url"`

	// CacheTTL is how long a successful load is trusted before the next
	// call attempts a refresh. Defaults to 1h when omitted.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// NotifyConfig configures the notification hub.
type NotifyConfig struct {
	// MaxConnsPerChannel bounds how many sockets may be registered under a
	// single channel key. Defaults to 5 when omitted.
	MaxConnsPerChannel int `yaml:"max_conns_per_channel"`

	// BroadcastWait is how long the hub waits for a late subscriber before
	// giving up silently. Defaults to 3s when omitted.
	BroadcastWait time.Duration `yaml:"broadcast_wait"`

	// WriteTimeout bounds a single frame write to a connected socket.
	// Defaults to 10s when omitted.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// LoadConfig reads the YAML file at path, unmarshals it into Config, applies
// defaults, and validates all required fields. It returns a typed error
// describing every validation failure encountered.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in zero-value optional fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = "127.0.0.1:8080"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Second
	}
	if cfg.RateLimits.Init <= 0 {
		cfg.RateLimits.Init = 20
	}
	if cfg.RateLimits.Verify <= 0 {
		cfg.RateLimits.Verify = 60
	}
	if cfg.RateLimits.Proximity <= 0 {
		cfg.RateLimits.Proximity = 30
	}
	if cfg.RateLimits.Poll <= 0 {
		cfg.RateLimits.Poll = 120
	}
	if cfg.Registry.CacheTTL <= 0 {
		cfg.Registry.CacheTTL = time.Hour
	}
	if cfg.Registry.SnapshotPath == "" {
		cfg.Registry.SnapshotPath = "data/trusted_domains.json"
	}
	if cfg.Notify.MaxConnsPerChannel <= 0 {
		cfg.Notify.MaxConnsPerChannel = 5
	}
	if cfg.Notify.BroadcastWait <= 0 {
		cfg.Notify.BroadcastWait = 3 * time.Second
	}
	if cfg.Notify.WriteTimeout <= 0 {
		cfg.Notify.WriteTimeout = 10 * time.Second
	}
}

// validate checks that all required fields are populated and that enumerated
// fields contain only valid values.
func validate(cfg *Config) error {
	var errs []error

	if cfg.RedisAddr == "" {
		errs = append(errs, errors.New("redis_addr is required"))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	return errors.Join(errs...)
}
