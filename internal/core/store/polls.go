package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quotalens/quotalens/internal/core"
)

const defaultPollHistoryLimit = 20

// RecordQuotaPoll appends a provider rate-limit snapshot to the poll history.
func (s *Store) RecordQuotaPoll(ctx context.Context, poll *core.QuotaPoll) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if poll == nil {
		return errors.New("quota poll is required")
	}

	counters := poll.Counters
	if counters == nil {
		counters = []core.PollCounter{}
	}
	payload, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("encode quota poll: %w", err)
	}

	polledAt := poll.PolledAt.UTC()
	if polledAt.IsZero() {
		polledAt = time.Now().UTC()
	}
	source := poll.Source
	if source == "" {
		source = core.PollSourceRefresh
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO quota_polls (polled_at, source, base_url, counters)
		VALUES (?, ?, ?, ?)
	`, polledAt.UnixMilli(), string(source), poll.BaseURL, string(payload))
	if err != nil {
		return fmt.Errorf("store quota poll: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		poll.ID = id
	}
	return nil
}

// ListQuotaPolls returns the most recent polls, newest first. A limit of zero
// or less selects the default.
func (s *Store) ListQuotaPolls(ctx context.Context, limit int) ([]core.QuotaPoll, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = defaultPollHistoryLimit
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, polled_at, source, base_url, counters
		FROM quota_polls
		ORDER BY polled_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list quota polls: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	polls := []core.QuotaPoll{}
	for rows.Next() {
		var (
			poll         core.QuotaPoll
			polledAt     int64
			source       string
			countersJSON string
		)
		if err := rows.Scan(&poll.ID, &polledAt, &source, &poll.BaseURL, &countersJSON); err != nil {
			return nil, fmt.Errorf("scan quota polls: %w", err)
		}
		poll.PolledAt = time.UnixMilli(polledAt).UTC()
		poll.Source = core.PollSource(source)
		if err := json.Unmarshal([]byte(countersJSON), &poll.Counters); err != nil {
			return nil, fmt.Errorf("decode quota poll %d: %w", poll.ID, err)
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quota polls: %w", err)
	}

	return polls, nil
}

// PruneQuotaPolls deletes all but the newest keep polls. A keep of zero or
// less leaves the history untouched.
func (s *Store) PruneQuotaPolls(ctx context.Context, keep int) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if keep <= 0 {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM quota_polls
		WHERE id NOT IN (
			SELECT id FROM quota_polls
			ORDER BY polled_at DESC, id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune quota polls: %w", err)
	}
	return result.RowsAffected()
}
