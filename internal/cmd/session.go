package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/config"
	"github.com/quotalens/quotalens/internal/core/cache"
	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/quota"
	"github.com/quotalens/quotalens/internal/core/store"
	"github.com/quotalens/quotalens/internal/observability"
)

// sessionOptions tune how a command's client is built.
type sessionOptions struct {
	// noCache bypasses the response cache for reads and writes.
	noCache bool
	// skipInit suppresses the initialization poll even when api.init_on_start is set.
	skipInit bool
}

// session bundles the loaded config, the optional store and cache backends and
// the quota-tracked client for one command invocation.
type session struct {
	cfg    *config.Config
	store  *store.Store
	redis  *cache.RedisCache
	client *client.Client
	logger *logging.Logger
}

// openSession loads config, opens the store and cache backend and builds the
// client. A store or cache backend that cannot be opened is logged and skipped;
// the client still works without them.
func openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: observability.Logger()}

	if db, err := openStore(ctx, cfg); err != nil {
		s.warn("Store unavailable; response cache and poll history disabled", err)
	} else {
		s.store = db
	}

	clientOpts := client.Options{
		BaseURL:      cfg.API.BaseURL,
		APIKey:       config.ResolveAPIKey("", cfg),
		Timeout:      cfg.API.Timeout,
		RetryBackoff: cfg.API.RetryBackoff,
		MinInterval:  cfg.API.MinInterval,
		CacheTTL:     cfg.Cache.TTL,
		Tracker:      quota.NewTracker(cfg.QuotaLimits(), nil),
		Logger:       s.logger,
	}
	if s.store != nil {
		clientOpts.Polls = s.store
	}

	if opts.noCache {
		clientOpts.CacheTTL = -1
	} else {
		clientOpts.Cache = s.responseCache(ctx)
	}

	c, err := client.New(clientOpts)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.client = c

	if cfg.API.InitOnStart && !opts.skipInit {
		// Failure is already logged by the client; the tracker keeps its defaults.
		_, _ = c.InitializeQuota(ctx)
	}

	return s, nil
}

func (s *session) responseCache(ctx context.Context) client.ResponseCache {
	switch strings.ToLower(strings.TrimSpace(s.cfg.Cache.Driver)) {
	case config.CacheDriverNone:
		return nil
	case config.CacheDriverRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			URL:    s.cfg.Cache.RedisURL,
			Prefix: s.cfg.Cache.RedisPrefix,
		})
		if err != nil {
			s.warn("Redis cache unavailable; continuing without response cache", err)
			return nil
		}
		s.redis = rc
		return rc
	default:
		if s.store == nil {
			return nil
		}
		return s.store
	}
}

// Close releases the store and cache connections.
func (s *session) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

func (s *session) warn(msg string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, zap.Error(err))
	}
}
