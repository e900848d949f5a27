package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/quotalens/quotalens/internal/config"
	"github.com/quotalens/quotalens/internal/core/cache"
	"github.com/quotalens/quotalens/internal/core/store"
	"github.com/quotalens/quotalens/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached API responses",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached responses in the store",
	RunE:  runCacheList,
}

var cacheResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete cached responses",
	Long: `Delete cached responses from the configured cache backend.

Select entries with --all, --endpoint (store backend only) or --prefix.
--all requires --yes unless --dry-run is given.`,
	RunE: runCacheReset,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired responses from the store",
	RunE:  runCachePurge,
}

func init() {
	cacheListCmd.Flags().String("endpoint", "", "List a single endpoint (exact match)")
	cacheListCmd.Flags().String("prefix", "", "List endpoints with matching prefix")

	cacheResetCmd.Flags().Bool("all", false, "Reset all cached responses")
	cacheResetCmd.Flags().String("endpoint", "", "Reset a single endpoint (exact match)")
	cacheResetCmd.Flags().String("prefix", "", "Reset endpoints with matching prefix")
	cacheResetCmd.Flags().Bool("yes", false, "Confirm destructive reset")
	cacheResetCmd.Flags().Bool("dry-run", false, "Show what would be deleted")

	for _, c := range []*cobra.Command{cacheListCmd, cacheResetCmd, cachePurgeCmd} {
		addOutputFlags(c)
		cacheCmd.AddCommand(c)
	}
	rootCmd.AddCommand(cacheCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	query, err := cacheQueryFromFlags(cmd)
	if err != nil {
		return err
	}
	if !query.All && query.Endpoint == "" && query.Prefix == "" {
		query.All = true
	}

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	entries, err := db.ListCachedResponses(cmd.Context(), query)
	if err != nil {
		return err
	}
	return writeOutput(cmd, "cache.list", func(f output.Formatter) (string, error) {
		return f.FormatCacheEntries(entries)
	})
}

func runCacheReset(cmd *cobra.Command, args []string) error {
	query, err := cacheQueryFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := query.Validate(); err != nil {
		return err
	}
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	if query.All && !yes && !dryRun {
		return errors.New("--all requires --yes (or use --dry-run)")
	}

	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	var result cacheResetResult
	if strings.EqualFold(cfg.Cache.Driver, config.CacheDriverRedis) {
		result, err = resetRedisCache(cmd, cfg, query, dryRun)
	} else {
		result, err = resetStoreCache(cmd, cfg, query, dryRun)
	}
	if err != nil {
		return err
	}

	return writeRendered(cmd, "cache.reset", result.render)
}

func resetStoreCache(cmd *cobra.Command, cfg *config.Config, query store.CacheQuery, dryRun bool) (cacheResetResult, error) {
	result := cacheResetResult{Backend: config.CacheDriverStore, DryRun: dryRun}

	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return result, err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	matched, err := db.CountCachedResponses(cmd.Context(), query)
	if err != nil {
		return result, err
	}
	result.Matched = int64(matched)
	if dryRun {
		return result, nil
	}

	result.Deleted, err = db.ResetCachedResponses(cmd.Context(), query)
	return result, err
}

func resetRedisCache(cmd *cobra.Command, cfg *config.Config, query store.CacheQuery, dryRun bool) (cacheResetResult, error) {
	result := cacheResetResult{Backend: config.CacheDriverRedis, DryRun: dryRun, Matched: -1}
	if query.Endpoint != "" {
		return result, errors.New("--endpoint is not supported for the redis cache; use --prefix")
	}
	if dryRun {
		return result, nil
	}

	rc, err := cache.NewRedisCache(cmd.Context(), cache.RedisConfig{
		URL:    cfg.Cache.RedisURL,
		Prefix: cfg.Cache.RedisPrefix,
	})
	if err != nil {
		return result, err
	}
	defer rc.Close() // nolint:errcheck // best-effort cleanup

	result.Deleted, err = rc.Clear(cmd.Context(), query.Prefix)
	result.Matched = result.Deleted
	return result, err
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	deleted, err := db.PurgeExpiredResponses(cmd.Context())
	if err != nil {
		return err
	}

	result := cacheResetResult{Backend: config.CacheDriverStore, Matched: deleted, Deleted: deleted}
	return writeRendered(cmd, "cache.purge", result.render)
}

func cacheQueryFromFlags(cmd *cobra.Command) (store.CacheQuery, error) {
	var query store.CacheQuery
	if cmd.Flags().Lookup("all") != nil {
		all, err := cmd.Flags().GetBool("all")
		if err != nil {
			return query, err
		}
		query.All = all
	}
	endpoint, err := cmd.Flags().GetString("endpoint")
	if err != nil {
		return query, err
	}
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return query, err
	}
	query.Endpoint = strings.TrimSpace(endpoint)
	query.Prefix = strings.TrimSpace(prefix)
	return query, nil
}

// cacheResetResult reports a reset or purge. Matched is -1 when the backend
// cannot count ahead of deleting.
type cacheResetResult struct {
	Backend string `json:"backend"`
	Matched int64  `json:"matched"`
	Deleted int64  `json:"deleted"`
	DryRun  bool   `json:"dry_run"`
}

func (r cacheResetResult) render(format output.Format) (string, error) {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}

	lines := []string{"Response Cache (" + r.Backend + ")", ""}
	switch {
	case r.DryRun && r.Matched < 0:
		lines = append(lines, "Dry run: this backend cannot count entries before deleting")
	case r.DryRun:
		lines = append(lines, fmt.Sprintf("Would delete %d cached response(s)", r.Matched))
	default:
		lines = append(lines, fmt.Sprintf("Deleted %d/%d cached response(s)", r.Deleted, r.Matched))
	}
	return ascii.DrawBox(strings.Join(lines, "\n"), 0), nil
}
