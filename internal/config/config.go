package config

import "time"

// Config represents the complete application configuration.
// Values come from code defaults, the user config file, environment variables
// and runtime overrides, in increasing priority.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Quota   QuotaConfig   `mapstructure:"quota"`
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Probe   ProbeConfig   `mapstructure:"probe"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// APIConfig configures the provider client.
type APIConfig struct {
	Key          string        `mapstructure:"key"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	MinInterval  time.Duration `mapstructure:"min_interval"`

	// InitOnStart polls the rate-limit endpoint when a client is built.
	InitOnStart bool `mapstructure:"init_on_start"`
}

// QuotaConfig holds fallback ceilings per window, keyed by window name.
// They apply until the provider reports real ones.
type QuotaConfig struct {
	Defaults map[string]int `mapstructure:"defaults"`
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

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`

	// PollRetention caps the quota poll history; zero keeps every poll.
	PollRetention int `mapstructure:"poll_retention"`
}

// Cache drivers.
const (
	CacheDriverStore = "store"
	CacheDriverRedis = "redis"
	CacheDriverNone  = "none"
)

// CacheConfig selects and tunes the response cache.
type CacheConfig struct {
	Driver      string        `mapstructure:"driver"`
	TTL         time.Duration `mapstructure:"ttl"`
	RedisURL    string        `mapstructure:"redis_url"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
}

// ProbeConfig configures the endpoint probe runner.
type ProbeConfig struct {
	// Plan is the default plan file; empty selects the built-in spot plan.
	Plan string `mapstructure:"plan"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether /metrics is served
	Enabled bool `mapstructure:"enabled"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}
