package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/config"
	"github.com/quotalens/quotalens/internal/core/cache"
	"github.com/quotalens/quotalens/internal/core/quota"
	errwrap "github.com/quotalens/quotalens/internal/errors"
	"github.com/quotalens/quotalens/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on configuration, storage, the cache backend and
provider connectivity.

The connectivity check polls the rate-limit endpoint, which is not counted
against the local quota.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		log := observability.CLILogger
		identity := GetAppIdentity()

		log.Info("=== " + identity.BinaryName + " doctor ===")
		log.Info("")

		const total = 5
		ok := true
		step := func(n int, label string) string {
			return fmt.Sprintf("[%d/%d] %s...", n, total, label)
		}

		// 1: configuration
		cfg, err := loadConfig(ctx)
		if err != nil {
			log.Error(step(1, "Loading configuration")+" ❌", zap.Error(err))
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration is invalid", errwrap.WrapInvalidInput(ctx, err, "config load failed"))
			return
		}
		log.Info(step(1, "Loading configuration")+" ✅ "+configSource(), zap.String("config_file", configSource()))

		// 2: API key
		if config.ResolveAPIKey("", cfg) == "" {
			log.Warn(step(2, "Checking API key") + " ⚠️  not set (use --api-key, QUOTALENS_API_KEY or api.key)")
			ok = false
		} else {
			log.Info(step(2, "Checking API key") + " ✅ set")
		}

		// 3: store
		if db, err := openStore(ctx, cfg); err != nil {
			log.Warn(step(3, "Checking store")+" ⚠️  "+storeLocation(cfg), zap.Error(err))
			ok = false
		} else {
			polls, _ := db.ListQuotaPolls(ctx, 1)
			last := "no polls recorded"
			if len(polls) > 0 {
				last = "last poll " + polls[0].PolledAt.Format("2006-01-02T15:04:05Z07:00")
			}
			version, _ := db.Version(ctx)
			log.Info(step(3, "Checking store")+fmt.Sprintf(" ✅ %s (schema v%d, %s)", db.Location(), version, last),
				zap.String("store", db.Location()),
				zap.Int("schema_version", version))
			_ = db.Close()
		}

		// 4: cache backend
		if msg, err := checkCacheBackend(ctx, cfg); err != nil {
			log.Warn(step(4, "Checking response cache")+" ⚠️  "+msg, zap.Error(err))
			ok = false
		} else {
			log.Info(step(4, "Checking response cache") + " ✅ " + msg)
		}

		// 5: provider connectivity
		s, err := openSession(ctx, sessionOptions{skipInit: true, noCache: true})
		if err != nil {
			log.Error(step(5, "Polling provider rate limit")+" ❌", zap.Error(err))
			ok = false
		} else {
			if _, err := s.client.InitializeQuota(ctx); err != nil {
				log.Warn(step(5, "Polling provider rate limit")+" ⚠️  "+s.client.BaseURL(), zap.Error(err))
				ok = false
			} else {
				month, _ := s.client.QuotaStatus().Window(quota.WindowMonth)
				log.Info(step(5, "Polling provider rate limit")+fmt.Sprintf(" ✅ MONTH %d/%d remaining", month.Remaining, month.Max),
					zap.Int("month_remaining", month.Remaining))
			}
			_ = s.Close()
		}

		log.Info("")
		if ok {
			log.Info("✅ All checks passed")
			return
		}
		log.Warn("⚠️  Some checks need attention")
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func configSource() string {
	if used := strings.TrimSpace(viper.ConfigFileUsed()); used != "" {
		return used
	}
	return "(defaults and environment)"
}

func storeLocation(cfg *config.Config) string {
	if raw := strings.TrimSpace(cfg.Store.URL); raw != "" {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Scheme + "://" + u.Host + " (remote)"
		}
		return "(remote)"
	}
	path := cfg.Store.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path + " (not created yet)"
	}
	return path
}

func checkCacheBackend(ctx context.Context, cfg *config.Config) (string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Driver)) {
	case config.CacheDriverNone:
		return "disabled", nil
	case config.CacheDriverRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.Cache.RedisURL, Prefix: cfg.Cache.RedisPrefix})
		if err != nil {
			return "redis unreachable", err
		}
		_ = rc.Close()
		return "redis (ttl " + cfg.Cache.TTL.String() + ")", nil
	default:
		return "store (ttl " + cfg.Cache.TTL.String() + ")", nil
	}
}
