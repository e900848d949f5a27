package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quotalens/quotalens/internal/core"
)

// GetResponse returns a cached provider response if it is still valid.
// A miss returns nil, nil.
func (s *Store) GetResponse(ctx context.Context, key string) (*core.CachedResponse, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	var (
		endpoint   string
		query      string
		statusCode int
		headerJSON sql.NullString
		body       []byte
		fetchedAt  int64
		expiresAt  int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT endpoint, query, status_code, header, body, fetched_at, expires_at
		FROM response_cache
		WHERE cache_key = ? AND expires_at > ?
	`, key, time.Now().UTC().Unix())

	if err := row.Scan(&endpoint, &query, &statusCode, &headerJSON, &body, &fetchedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached response: %w", err)
	}

	var header http.Header
	if headerJSON.Valid && headerJSON.String != "" {
		if err := json.Unmarshal([]byte(headerJSON.String), &header); err != nil {
			return nil, fmt.Errorf("decode cached response: %w", err)
		}
	}

	return &core.CachedResponse{
		Key:        key,
		Endpoint:   endpoint,
		Query:      query,
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
		FetchedAt:  time.Unix(fetchedAt, 0).UTC(),
		ExpiresAt:  time.Unix(expiresAt, 0).UTC(),
	}, nil
}

// SetResponse stores a provider response with a TTL counted from its fetch time.
func (s *Store) SetResponse(ctx context.Context, entry *core.CachedResponse, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 || entry == nil {
		return nil
	}

	key := strings.TrimSpace(entry.Key)
	if key == "" {
		return errors.New("cache key is required")
	}

	headerJSON, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}

	fetched := entry.FetchedAt.UTC()
	if fetched.IsZero() {
		fetched = time.Now().UTC()
	}
	expires := fetched.Add(ttl)

	body := entry.Body
	if body == nil {
		body = []byte{}
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO response_cache (cache_key, endpoint, query, status_code, header, body, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			endpoint = excluded.endpoint,
			query = excluded.query,
			status_code = excluded.status_code,
			header = excluded.header,
			body = excluded.body,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, key, entry.Endpoint, entry.Query, entry.StatusCode, string(headerJSON), body, fetched.Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}

	return nil
}

// PurgeExpiredResponses deletes cache rows past their expiry.
func (s *Store) PurgeExpiredResponses(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM response_cache WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge cached responses: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cached responses: %w", err)
	}
	return affected, nil
}
