package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/adrianaguero/chatgate/internal/ailink"
	"github.com/adrianaguero/chatgate/internal/core"
)

// Config represents the complete application configuration.
// Layers, lowest precedence first:
// Layer 1: embedded defaults (defaults.yaml)
// Layer 2: user config file (--config or XDG config paths)
// Layer 3: environment variables, then runtime overrides
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Quota   QuotaConfig   `mapstructure:"quota"`
	AILink  ailink.Config `mapstructure:"ailink"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Debug   DebugConfig   `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ChatConfig controls the chat endpoint.
type ChatConfig struct {
	Path string `mapstructure:"path"`

	// MaxDuration bounds a whole chat request, streaming included.
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

// QuotaConfig selects and configures the quota store.
//
// Driver is one of redis, libsql, postgres or memory.
type QuotaConfig struct {
	Driver string        `mapstructure:"driver"`
	URL    string        `mapstructure:"url"`
	Token  string        `mapstructure:"token"`
	Path   string        `mapstructure:"path"`
	Prefix string        `mapstructure:"prefix"`
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// Quota drivers.
const (
	DriverRedis    = "redis"
	DriverLibsql   = "libsql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DriverName returns the normalized driver, defaulting to redis.
func (q QuotaConfig) DriverName() string {
	driver := strings.ToLower(strings.TrimSpace(q.Driver))
	if driver == "" {
		return DriverRedis
	}
	return driver
}

// Configured reports whether enough settings exist to build a store.
// An unconfigured store means the rate limiter runs without one.
func (q QuotaConfig) Configured() bool {
	switch q.DriverName() {
	case DriverMemory:
		return true
	case DriverLibsql:
		return strings.TrimSpace(q.Path) != "" || strings.TrimSpace(q.URL) != ""
	case DriverRedis:
		url := strings.TrimSpace(q.URL)
		if url == "" {
			return false
		}
		// A REST-style endpoint is only usable together with its token.
		if restStyleURL(url) {
			return strings.TrimSpace(q.Token) != ""
		}
		return true
	default:
		return strings.TrimSpace(q.URL) != ""
	}
}

func restStyleURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

// QuotaWindow returns the normalized sliding window.
func (q QuotaConfig) QuotaWindow() core.QuotaWindow {
	return core.QuotaWindow{Limit: q.Limit, Duration: q.Window}.Normalize()
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only (CLI commands)
// - STRUCTURED: JSON to stderr with correlation IDs (serve)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// Validate checks settings that cannot be defaulted at runtime.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Chat.Path, "/") {
		return fmt.Errorf("chat.path must start with '/': %q", c.Chat.Path)
	}
	if c.Chat.MaxDuration <= 0 {
		return fmt.Errorf("chat.max_duration must be positive")
	}
	switch c.Quota.DriverName() {
	case DriverRedis, DriverLibsql, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported quota.driver %q", c.Quota.Driver)
	}
	if c.Quota.Limit < 0 {
		return fmt.Errorf("quota.limit must not be negative")
	}
	if c.Quota.Window < 0 {
		return fmt.Errorf("quota.window must not be negative")
	}
	return c.AILink.Validate()
}
