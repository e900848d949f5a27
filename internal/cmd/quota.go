package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/output"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect the tracked API quota",
}

var quotaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show remaining calls per window",
	Long: `Show remaining calls per window.

The status is seeded from the provider's rate-limit endpoint (unless
api.init_on_start is false or --offline is set) and costs no quota.`,
	RunE: runQuotaStatus,
}

var quotaRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-poll the provider's rate-limit endpoint",
	Long: `Re-poll the provider's rate-limit endpoint and reseed every window.

Unlike the start-up poll, a refresh counts against the quota.`,
	RunE: runQuotaRefresh,
}

var quotaHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded quota polls",
	RunE:  runQuotaHistory,
}

func init() {
	quotaStatusCmd.Flags().Bool("offline", false, "Skip the provider poll and show configured defaults")
	quotaHistoryCmd.Flags().Int("limit", 20, "Maximum number of polls to list")

	for _, c := range []*cobra.Command{quotaStatusCmd, quotaRefreshCmd, quotaHistoryCmd} {
		addOutputFlags(c)
		quotaCmd.AddCommand(c)
	}
	rootCmd.AddCommand(quotaCmd)
}

func runQuotaStatus(cmd *cobra.Command, args []string) error {
	offline, err := cmd.Flags().GetBool("offline")
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), sessionOptions{skipInit: offline})
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck // best-effort cleanup

	status := s.client.QuotaStatus()
	return writeOutput(cmd, "quota.status", func(f output.Formatter) (string, error) {
		return f.FormatQuotaStatus(status)
	})
}

func runQuotaRefresh(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), sessionOptions{skipInit: true, noCache: true})
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck // best-effort cleanup

	resp, err := s.client.RefreshQuota(cmd.Context())
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debug("Quota refreshed", zap.Int("status", resp.StatusCode), zap.Int("attempts", resp.Attempts))
	}

	status := s.client.QuotaStatus()
	return writeOutput(cmd, "quota.refresh", func(f output.Formatter) (string, error) {
		return f.FormatQuotaStatus(status)
	})
}

func runQuotaHistory(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
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

	polls, err := db.ListQuotaPolls(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return writeOutput(cmd, "quota.history", func(f output.Formatter) (string, error) {
		return f.FormatPolls(polls)
	})
}
