package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/config"
	"github.com/quotalens/quotalens/internal/core/quota"
	"github.com/quotalens/quotalens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information. Secrets are never printed.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info(fmt.Sprintf("  Platform:   %s/%s", runtime.GOOS, runtime.GOARCH))
		log.Info("")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		keyState := "(not set)"
		if config.ResolveAPIKey("", cfg) != "" {
			keyState = "(set)"
		}

		log.Info("API:")
		log.Info("  Base URL:       "+cfg.API.BaseURL, zap.String("base_url", cfg.API.BaseURL))
		log.Info("  API Key:        " + keyState)
		log.Info("  Timeout:        " + cfg.API.Timeout.String())
		log.Info("  Retry Backoff:  " + cfg.API.RetryBackoff.String())
		log.Info("  Min Interval:   " + cfg.API.MinInterval.String())
		log.Info(fmt.Sprintf("  Init On Start:  %t", cfg.API.InitOnStart))
		log.Info("")

		limits := cfg.QuotaLimits()
		log.Info("Default Quota:")
		for _, w := range quota.Windows {
			log.Info(fmt.Sprintf("  %-8s %d", w.String()+":", limits.Get(w)))
		}
		log.Info("")

		log.Info("Storage:")
		log.Info("  Store:          "+storeLocation(cfg), zap.String("store", storeLocation(cfg)))
		log.Info(fmt.Sprintf("  Poll Retention: %d", cfg.Store.PollRetention))
		log.Info("  Cache Driver:   " + cfg.Cache.Driver)
		log.Info("  Cache TTL:      " + cfg.Cache.TTL.String())
		log.Info("  Config File:    " + configSource())
		log.Info("")

		log.Info("Server:")
		log.Info(fmt.Sprintf("  Listen:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		log.Info(fmt.Sprintf("  Metrics:        %t", cfg.Metrics.Enabled))
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
