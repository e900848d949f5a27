//go:build cgo

package store

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotalens/quotalens/internal/config"
	"github.com/quotalens/quotalens/internal/core"
	"github.com/quotalens/quotalens/internal/core/client"
)

var (
	_ client.ResponseCache = (*Store)(nil)
	_ client.PollRecorder  = (*Store)(nil)
)

func openMigrated(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.True(t, store.Local())
	require.Equal(t, ":memory:", store.Location())
	require.NoError(t, store.PingContext(ctx))

	version, err := store.Version(ctx)
	require.NoError(t, err)
	require.Zero(t, version)

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))
	version, err = store.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, SchemaVersion, version)
	require.NoError(t, store.Close())
}

func TestMigrateRefusesNewerSchema(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	_, err := store.DB.ExecContext(ctx, "PRAGMA user_version = 999")
	require.NoError(t, err)
	require.ErrorContains(t, store.Migrate(ctx), "newer than supported")
}

func TestOpenLocalStoreConfiguresSQLite(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StoreConfig{Path: filepath.Join(t.TempDir(), "nested", "quotalens.db")})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.Equal(t, 1, store.DB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode))
	require.Contains(t, journalMode, "wal")

	var busyTimeout int
	require.NoError(t, store.DB.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busyTimeout))
	require.Equal(t, localBusyTimeoutMillis, busyTimeout)
}

func TestResponseCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	miss, err := store.GetResponse(ctx, "/spot/v1/latest/tick?market=coinbase")
	require.NoError(t, err)
	require.Nil(t, miss)

	entry := &core.CachedResponse{
		Key:        "/spot/v1/latest/tick?market=coinbase",
		Endpoint:   "/spot/v1/latest/tick",
		Query:      "market=coinbase",
		StatusCode: http.StatusOK,
		Header:     http.Header{"X-Ratelimit-Remaining": []string{"19"}},
		Body:       []byte(`{"Data":{}}`),
		FetchedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SetResponse(ctx, entry, time.Minute))

	got, err := store.GetResponse(ctx, entry.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, entry.Endpoint, got.Endpoint)
	require.Equal(t, entry.Query, got.Query)
	require.Equal(t, http.StatusOK, got.StatusCode)
	require.Equal(t, "19", got.Header.Get("X-Ratelimit-Remaining"))
	require.Equal(t, entry.Body, got.Body)
	require.True(t, got.ExpiresAt.After(got.FetchedAt))

	entry.Body = []byte(`{"Data":{"v":2}}`)
	require.NoError(t, store.SetResponse(ctx, entry, time.Minute))
	got, err = store.GetResponse(ctx, entry.Key)
	require.NoError(t, err)
	require.Equal(t, entry.Body, got.Body)
}

func TestResponseCacheExpiry(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	entry := &core.CachedResponse{
		Key:        "/index/cc/v1/latest/tick?market=cadli",
		Endpoint:   "/index/cc/v1/latest/tick",
		StatusCode: http.StatusOK,
		Body:       []byte(`{}`),
		FetchedAt:  time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, store.SetResponse(ctx, entry, time.Minute))

	got, err := store.GetResponse(ctx, entry.Key)
	require.NoError(t, err)
	require.Nil(t, got)

	purged, err := store.PurgeExpiredResponses(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)
}

func TestResponseCacheIgnoresZeroTTL(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	require.NoError(t, store.SetResponse(ctx, &core.CachedResponse{Key: "k", Endpoint: "/x"}, 0))
	count, err := store.CountCachedResponses(ctx, CacheQuery{All: true})
	require.NoError(t, err)
	require.Zero(t, count)

	require.Error(t, store.SetResponse(ctx, &core.CachedResponse{Endpoint: "/x"}, time.Minute))
}

func TestCacheAdmin(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	for _, entry := range []core.CachedResponse{
		{Key: "/spot/v1/latest/tick?a=1", Endpoint: "/spot/v1/latest/tick", Query: "a=1"},
		{Key: "/spot/v1/latest/tick?a=2", Endpoint: "/spot/v1/latest/tick", Query: "a=2"},
		{Key: "/spot/v1/historical/days?a=1", Endpoint: "/spot/v1/historical/days", Query: "a=1"},
		{Key: "/index/cc/v1/latest/tick?a=1", Endpoint: "/index/cc/v1/latest/tick", Query: "a=1"},
	} {
		entry := entry
		entry.StatusCode = http.StatusOK
		entry.Body = []byte(`{"Data":[]}`)
		require.NoError(t, store.SetResponse(ctx, &entry, time.Minute))
	}

	require.Error(t, CacheQuery{}.Validate())

	all, err := store.ListCachedResponses(ctx, CacheQuery{All: true})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "/index/cc/v1/latest/tick", all[0].Endpoint)
	require.Equal(t, len(`{"Data":[]}`), all[0].Size)
	require.False(t, all[0].Expired(time.Now()))

	count, err := store.CountCachedResponses(ctx, CacheQuery{Endpoint: "/spot/v1/latest/tick"})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = store.CountCachedResponses(ctx, CacheQuery{Prefix: "/spot/"})
	require.NoError(t, err)
	require.Equal(t, 3, count)

	removed, err := store.ResetCachedResponses(ctx, CacheQuery{Prefix: "/spot/"})
	require.NoError(t, err)
	require.Equal(t, int64(3), removed)

	remaining, err := store.ListCachedResponses(ctx, CacheQuery{All: true})
	require.NoError(t, err)
	require.Len(t, remaining, 1)

	_, err = store.ResetCachedResponses(ctx, CacheQuery{})
	require.Error(t, err)
}

func TestQuotaPollHistory(t *testing.T) {
	ctx := context.Background()
	store := openMigrated(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		poll := &core.QuotaPoll{
			PolledAt: base.Add(time.Duration(i) * time.Minute),
			Source:   core.PollSourceRefresh,
			BaseURL:  "https://data-api.coindesk.com",
			Counters: []core.PollCounter{
				{Window: "MONTH", Max: 11000, Remaining: 11000 - i, CallsMade: i},
			},
		}
		if i == 0 {
			poll.Source = core.PollSourceInit
		}
		require.NoError(t, store.RecordQuotaPoll(ctx, poll))
		require.NotZero(t, poll.ID)
	}

	polls, err := store.ListQuotaPolls(ctx, 2)
	require.NoError(t, err)
	require.Len(t, polls, 2)
	require.True(t, polls[0].PolledAt.Equal(base.Add(2*time.Minute)))
	counter, ok := polls[0].Counter("MONTH")
	require.True(t, ok)
	require.Equal(t, 10998, counter.Remaining)
	require.Equal(t, 2, counter.CallsMade)

	polls, err = store.ListQuotaPolls(ctx, 0)
	require.NoError(t, err)
	require.Len(t, polls, 3)
	require.Equal(t, core.PollSourceInit, polls[2].Source)

	require.Error(t, store.RecordQuotaPoll(ctx, nil))

	deleted, err := store.PruneQuotaPolls(ctx, 0)
	require.NoError(t, err)
	require.Zero(t, deleted)

	deleted, err = store.PruneQuotaPolls(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	polls, err = store.ListQuotaPolls(ctx, 0)
	require.NoError(t, err)
	require.Len(t, polls, 1)
	require.True(t, polls[0].PolledAt.Equal(base.Add(2*time.Minute)))
}
