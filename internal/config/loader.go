// Package config provides centralized configuration management for quotalens.
// Layers, lowest first: code defaults, the user config file read by viper,
// environment variables, runtime overrides.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/quotalens/quotalens/internal/appid"
	"github.com/quotalens/quotalens/internal/core/quota"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Load decodes the global viper settings plus environment and runtime
// overrides into a Config.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadFrom(ctx, viper.GetViper(), runtimeOverrides...)
}

// LoadFrom is Load with an explicit viper instance.
func LoadFrom(ctx context.Context, v *viper.Viper, runtimeOverrides ...map[string]any) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	merged := v.AllSettings()

	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	mergeSettings(merged, envOverrides)
	for _, overrides := range runtimeOverrides {
		mergeSettings(merged, overrides)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)

	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Cache.Driver)) {
	case "", CacheDriverStore, CacheDriverNone:
	case CacheDriverRedis:
		if strings.TrimSpace(c.Cache.RedisURL) == "" {
			return fmt.Errorf("cache.redis_url is required when cache.driver is %q", CacheDriverRedis)
		}
	default:
		return fmt.Errorf("unsupported cache driver: %s", c.Cache.Driver)
	}

	for name := range c.Quota.Defaults {
		if _, err := quota.ParseWindow(name); err != nil {
			return fmt.Errorf("quota.defaults: %w", err)
		}
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	return nil
}

// QuotaLimits returns the default ceilings with configured overrides applied.
func (c *Config) QuotaLimits() quota.Limits {
	if c == nil {
		return quota.DefaultLimits
	}
	return quota.DefaultLimits.WithOverrides(c.Quota.Defaults)
}

// ResolveAPIKey picks the API key: an explicit flag value first, then the
// loaded configuration (which already layers QUOTALENS_API_KEY over the file).
func ResolveAPIKey(flagValue string, cfg *Config) string {
	if key := strings.TrimSpace(flagValue); key != "" {
		return key
	}
	if cfg == nil {
		return ""
	}
	return strings.TrimSpace(cfg.API.Key)
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.key", "")
	v.SetDefault("api.base_url", "https://data-api.coindesk.com")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.retry_backoff", "1s")
	v.SetDefault("api.min_interval", "2s")
	v.SetDefault("api.init_on_start", true)

	// Quota defaults (fallback ceilings until the provider reports real ones)
	v.SetDefault("quota.defaults", map[string]int{})

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.poll_retention", 500)

	// Response cache defaults
	v.SetDefault("cache.driver", CacheDriverStore)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.redis_prefix", "quotalens:response:")

	// Probe defaults
	v.SetDefault("probe.plan", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)

	// Health check defaults
	v.SetDefault("health.enabled", true)
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs(ctx context.Context) []EnvVarSpec {
	prefix := envPrefix(ctx)

	return []EnvVarSpec{
		// API config
		{Name: prefix + "API_KEY", Path: []string{"api", "key"}, Type: EnvString},
		{Name: prefix + "BASE_URL", Path: []string{"api", "base_url"}, Type: EnvString},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "API_TIMEOUT", Path: []string{"api", "timeout"}, Type: EnvString},
		{Name: prefix + "API_RETRY_BACKOFF", Path: []string{"api", "retry_backoff"}, Type: EnvString},
		{Name: prefix + "API_MIN_INTERVAL", Path: []string{"api", "min_interval"}, Type: EnvString},
		{Name: prefix + "API_INIT_ON_START", Path: []string{"api", "init_on_start"}, Type: EnvBool},

		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		// Logging config
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "DB_DRIVER", Path: []string{"store", "driver"}, Type: EnvString},
		{Name: prefix + "DB_PATH", Path: []string{"store", "path"}, Type: EnvString},
		{Name: prefix + "DB_URL", Path: []string{"store", "url"}, Type: EnvString},
		{Name: prefix + "DB_AUTH_TOKEN", Path: []string{"store", "auth_token"}, Type: EnvString},
		{Name: prefix + "POLL_RETENTION", Path: []string{"store", "poll_retention"}, Type: EnvInt},

		// Cache config
		{Name: prefix + "CACHE_DRIVER", Path: []string{"cache", "driver"}, Type: EnvString},
		{Name: prefix + "CACHE_TTL", Path: []string{"cache", "ttl"}, Type: EnvString},
		{Name: prefix + "REDIS_URL", Path: []string{"cache", "redis_url"}, Type: EnvString},

		// Metrics and health config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},
	}
}

func envPrefix(ctx context.Context) string {
	prefix := "QUOTALENS_"
	if identity, err := appid.Get(ctx); err == nil && identity != nil && identity.EnvPrefix != "" {
		prefix = identity.EnvPrefix
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// mergeSettings deep-merges src into dst. Nested maps merge key by key; any
// other value in src replaces the one in dst.
func mergeSettings(dst, src map[string]any) {
	for key, value := range src {
		key = strings.ToLower(key)
		srcMap, srcIsMap := value.(map[string]any)
		if !srcIsMap {
			dst[key] = value
			continue
		}
		dstMap, dstIsMap := dst[key].(map[string]any)
		if !dstIsMap {
			dstMap = map[string]any{}
			dst[key] = dstMap
		}
		mergeSettings(dstMap, srcMap)
	}
}

func appNamesForPaths() (configName string, binaryName string) {
	configName = "quotalens"
	binaryName = "quotalens"
	identity, err := appid.Get(context.Background())
	if err != nil || identity == nil {
		return configName, binaryName
	}
	if strings.TrimSpace(identity.ConfigName) != "" {
		configName = identity.ConfigName
	}
	if strings.TrimSpace(identity.BinaryName) != "" {
		binaryName = identity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppConfigDir(configName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	configName, binaryName := appNamesForPaths()
	dataDir := gfconfig.GetAppDataDir(configName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}
