package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/quotalens/quotalens/internal/config"
)

const (
	driverLibsql = "libsql"
	memoryDSN    = ":memory:"

	localBusyTimeoutMillis = 5000
)

// Store is the libsql database behind the response cache and the quota poll
// history. A local file is shared by CLI runs and the server process.
type Store struct {
	DB       *sql.DB
	driver   string
	location string
	local    bool
}

// Open connects to the store described by cfg: a remote libsql URL when one is
// set, otherwise a local file (created on demand) or :memory:.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	dsn, err := buildLibsqlDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}

	s := &Store{DB: db, driver: driver, local: isLocalDSN(dsn), location: redactDSN(dsn)}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store %s: %w", s.location, err)
	}
	if s.local {
		if err := configureLocal(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// PingContext reports whether the database still answers.
func (s *Store) PingContext(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	return s.DB.PingContext(ctx)
}

func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Location describes where the data lives, with credentials removed.
func (s *Store) Location() string {
	if s == nil {
		return ""
	}
	return s.location
}

// Local reports whether the store is a local file or in-memory database.
func (s *Store) Local() bool {
	return s != nil && s.local
}

func buildLibsqlDSN(cfg config.StoreConfig) (string, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		return withAuthToken(raw, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return "", errors.New("store path or url is required")
	case path == memoryDSN, strings.HasPrefix(path, "libsql:"):
		return path, nil
	case strings.HasPrefix(path, "file:"):
		local, err := filePathOf(path)
		if err != nil {
			return "", err
		}
		return path, ensureStoreDir(local)
	default:
		return "file:" + filepath.Clean(path), ensureStoreDir(path)
	}
}

func isLocalDSN(dsn string) bool {
	return dsn == memoryDSN || strings.HasPrefix(dsn, "file:")
}

// configureLocal keeps a single writer connection and turns on WAL with a busy
// timeout so a CLI run and a running server can share one file.
func configureLocal(ctx context.Context, db *sql.DB) error {
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", localBusyTimeoutMillis),
	} {
		var value string
		if err := db.QueryRowContext(ctx, pragma).Scan(&value); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("configure local store (%s): %w", pragma, err)
		}
	}
	return nil
}

func withAuthToken(dsn, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

// redactDSN strips the auth token and any userinfo from a remote DSN.
func redactDSN(dsn string) string {
	if isLocalDSN(dsn) {
		return dsn
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "(unparseable store url)"
	}
	parsed.User = nil
	query := parsed.Query()
	if query.Has("authToken") {
		query.Set("authToken", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func filePathOf(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}
	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	if strings.TrimSpace(path) == "" || path == memoryDSN {
		return nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
