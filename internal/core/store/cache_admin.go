package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CacheEntry describes a cached response without its body.
type CacheEntry struct {
	Key        string    `json:"key"`
	Endpoint   string    `json:"endpoint"`
	Query      string    `json:"query,omitempty"`
	StatusCode int       `json:"status_code"`
	Size       int       `json:"size"`
	FetchedAt  time.Time `json:"fetched_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// CacheQuery selects cache rows for admin commands.
type CacheQuery struct {
	All      bool
	Endpoint string
	Prefix   string
}

func (q CacheQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Endpoint) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --endpoint, or --prefix")
}

func (q CacheQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if endpoint := strings.TrimSpace(q.Endpoint); endpoint != "" {
		return "WHERE endpoint = ?", []any{endpoint}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE endpoint LIKE ?", []any{prefix + "%"}, nil
}

func (s *Store) ListCachedResponses(ctx context.Context, q CacheQuery) ([]CacheEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT cache_key, endpoint, query, status_code, length(body), fetched_at, expires_at
		FROM response_cache
		%s
		ORDER BY endpoint, cache_key
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list cached responses: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []CacheEntry{}
	for rows.Next() {
		var (
			entry     CacheEntry
			fetchedAt int64
			expiresAt int64
		)
		if err := rows.Scan(&entry.Key, &entry.Endpoint, &entry.Query, &entry.StatusCode, &entry.Size, &fetchedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan cached responses: %w", err)
		}
		entry.FetchedAt = time.Unix(fetchedAt, 0).UTC()
		entry.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cached responses: %w", err)
	}

	return entries, nil
}

func (s *Store) CountCachedResponses(ctx context.Context, q CacheQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM response_cache
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count cached responses: %w", err)
	}
	return count, nil
}

func (s *Store) ResetCachedResponses(ctx context.Context, q CacheQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM response_cache
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset cached responses: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset cached responses: %w", err)
	}
	return affected, nil
}
