package store

import (
	"context"
	"errors"
	"fmt"
)

// migrations are applied in order; the schema version is the number applied,
// recorded in PRAGMA user_version. Append only.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS response_cache (
			cache_key TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			query TEXT NOT NULL DEFAULT '',
			status_code INTEGER NOT NULL,
			header TEXT,
			body BLOB NOT NULL,
			fetched_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_response_cache_expires ON response_cache(expires_at)`,
	},
	{
		`CREATE TABLE IF NOT EXISTS quota_polls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			polled_at INTEGER NOT NULL,
			source TEXT NOT NULL,
			base_url TEXT NOT NULL DEFAULT '',
			counters TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quota_polls_polled ON quota_polls(polled_at)`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_response_cache_endpoint ON response_cache(endpoint)`,
	},
}

// SchemaVersion is the version Migrate brings a database to.
var SchemaVersion = len(migrations)

// Migrate applies every migration newer than the database's recorded version.
// A database written by a newer binary is refused.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	current, err := s.Version(ctx)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("store schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for version := current; version < SchemaVersion; version++ {
		for _, stmt := range migrations[version] {
			if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("store migration %d failed: %w", version+1, err)
			}
		}
		// PRAGMA does not take bind parameters.
		if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			return fmt.Errorf("record store schema version %d: %w", version+1, err)
		}
	}
	return nil
}

// Version reports the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	var version int
	if err := s.DB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read store schema version: %w", err)
	}
	return version, nil
}
