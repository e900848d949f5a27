package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quotalens/quotalens/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		cfg  config.StoreConfig
		want string
	}{
		{"remote url gets token", config.StoreConfig{URL: "libsql://quota.turso.io", AuthToken: "t0k"}, "libsql://quota.turso.io?authToken=t0k"},
		{"remote url keeps query", config.StoreConfig{URL: "libsql://quota.turso.io?tls=1", AuthToken: "t0k"}, "libsql://quota.turso.io?authToken=t0k&tls=1"},
		{"remote url wins over path", config.StoreConfig{URL: "libsql://quota.turso.io", Path: "ignored.db"}, "libsql://quota.turso.io"},
		{"file prefix kept", config.StoreConfig{Path: "file:" + filepath.Join(dir, "a", "quotalens.db")}, "file:" + filepath.Join(dir, "a", "quotalens.db")},
		{"bare path prefixed", config.StoreConfig{Path: filepath.Join(dir, "b", "quotalens.db")}, "file:" + filepath.Join(dir, "b", "quotalens.db")},
		{"memory", config.StoreConfig{Path: ":memory:"}, ":memory:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dsn, err := buildLibsqlDSN(tc.cfg)
			require.NoError(t, err)
			require.Equal(t, tc.want, dsn)
		})
	}

	require.DirExists(t, filepath.Join(dir, "a"))
	require.DirExists(t, filepath.Join(dir, "b"))

	_, err := buildLibsqlDSN(config.StoreConfig{})
	require.Error(t, err)
}

func TestIsLocalDSN(t *testing.T) {
	require.True(t, isLocalDSN(":memory:"))
	require.True(t, isLocalDSN("file:/tmp/quotalens.db"))
	require.False(t, isLocalDSN("libsql://quota.turso.io?authToken=x"))
}

func TestRedactDSN(t *testing.T) {
	require.Equal(t, "file:/tmp/quotalens.db", redactDSN("file:/tmp/quotalens.db"))
	require.Equal(t, "libsql://quota.turso.io?authToken=REDACTED", redactDSN("libsql://quota.turso.io?authToken=secret"))
	require.Equal(t, "https://quota.example.test/db", redactDSN("https://user:pw@quota.example.test/db"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.ErrorContains(t, err, "unsupported store driver")
}
