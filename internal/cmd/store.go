package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/config"
	"github.com/quotalens/quotalens/internal/core/store"
	"github.com/quotalens/quotalens/internal/observability"
)

// openStore opens the configured store, brings its schema up to date and trims
// the quota poll history to the configured retention.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	pruned, err := db.PruneQuotaPolls(ctx, cfg.Store.PollRetention)
	if log := observability.Logger(); log != nil {
		switch {
		case err != nil:
			log.Warn("Quota poll pruning failed", zap.String("store", db.Location()), zap.Error(err))
		case pruned > 0:
			log.Debug("Pruned quota poll history",
				zap.Int64("deleted", pruned),
				zap.Int("retention", cfg.Store.PollRetention))
		}
	}

	return db, nil
}
