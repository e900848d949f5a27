package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	errwrap "github.com/quotalens/quotalens/internal/errors"
	"github.com/quotalens/quotalens/internal/metrics"
	"github.com/quotalens/quotalens/internal/observability"
	"github.com/quotalens/quotalens/internal/server"
	"github.com/quotalens/quotalens/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// quotaHealthChecker reports unhealthy while a DAY or MONTH window is spent
// and degraded while only a shorter window is. A spent window whose reset time
// has passed counts as refilled; a window with no ceiling never refills.
type quotaHealthChecker struct {
	service handlers.QuotaService
	// clock overrides time.Now for tests.
	clock func() time.Time
}

func (q quotaHealthChecker) CheckHealth(ctx context.Context) error {
	now := time.Now().UTC()
	if q.clock != nil {
		now = q.clock()
	}

	var short error
	for _, w := range q.service.QuotaStatus().Windows {
		if w.Max > 0 && (w.Remaining > 0 || !now.Before(w.ResetAt)) {
			continue
		}
		err := errwrap.NewQuotaExhaustedError(w.Window.String() + " quota exhausted")
		if w.Window.Duration() >= 24*time.Hour {
			return err
		}
		if short == nil {
			short = handlers.Degraded(err)
		}
	}
	return short
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP status server",
	Long: `Start the HTTP status server with graceful shutdown support.

Endpoints:
  GET  /v1/quota          tracked quota per window (no provider call)
  POST /v1/quota/refresh  re-poll the provider (counts against the quota)
  GET  /health[/live|/ready|/startup], /version, /metrics

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config file re-read`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := GetAppIdentity()
		namespace := identity.ConfigName

		if err := observability.InitServerLogger(observability.ServerLogOptions{
			Service:   identity.BinaryName,
			Level:     viper.GetString("logging.level"),
			Profile:   viper.GetString("logging.profile"),
			Namespace: namespace,
		}); err != nil {
			return errwrap.WrapInvalidInput(cmd.Context(), err, "server logger initialization failed")
		}

		s, err := openSession(cmd.Context(), sessionOptions{})
		if err != nil {
			return err
		}
		defer s.Close() // nolint:errcheck // best-effort cleanup

		if !cmd.Flags().Changed("host") && s.cfg.Server.Host != "" {
			serverHost = s.cfg.Server.Host
		}
		if !cmd.Flags().Changed("port") && s.cfg.Server.Port != 0 {
			serverPort = s.cfg.Server.Port
		}

		metricsEnabled := s.cfg.Metrics.Enabled
		if metricsEnabled {
			if err := observability.InitMetrics(identity.BinaryName); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
			metrics.ObserveQuota(s.client.QuotaStatus())
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("version", versionInfo.Version),
			zap.String("host", serverHost),
			zap.Int("port", serverPort),
			zap.String("api_base_url", s.client.BaseURL()),
			zap.Bool("quota_initialized", s.client.QuotaStatus().Initialized),
			zap.Bool("metrics", metricsEnabled))

		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("quota", quotaHealthChecker{service: s.client})
		if s.store != nil {
			hm.RegisterChecker("store", handlers.PingChecker(s.store))
		}
		handlers.SetAppIdentity(identity)
		handlers.SetProviderBaseURL(s.client.BaseURL())

		srv := server.New(serverHost, serverPort,
			server.WithTimeouts(s.cfg.Server),
			server.WithQuotaService(s.client),
			server.WithMetrics(metricsEnabled),
		)

		shutdownTimeout := s.cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: the server stops first, the logger flushes last.
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: re-reading config file")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapInvalidInput(ctx, err, "config reload failed")
			}

			// The running client keeps its settings; quota state is not reset.
			observability.ServerLogger.Info("Configuration reloaded; restart to apply client settings",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", serverHost),
				zap.Int("port", serverPort))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
