package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/output"
)

var priceCmd = &cobra.Command{
	Use:   "price <instrument...>",
	Short: "Show the latest index value for instruments",
	Long: `Show the latest index value for one or more instruments.

All instruments are fetched in a single call.

Example:
  quotalens price BTC-USD ETH-USD --market cadli`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)

	priceCmd.Flags().String("market", client.DefaultIndexMarket, "Index market")
	priceCmd.Flags().Bool("no-cache", false, "Skip the response cache")
	addOutputFlags(priceCmd)
}

func runPrice(cmd *cobra.Command, args []string) error {
	market, err := cmd.Flags().GetString("market")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	instruments := make([]string, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part = strings.TrimSpace(part); part != "" {
				instruments = append(instruments, part)
			}
		}
	}

	s, err := openSession(cmd.Context(), sessionOptions{noCache: noCache})
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck // best-effort cleanup

	ticks, resp, err := s.client.LatestTick(cmd.Context(), market, instruments...)
	if err != nil {
		return err
	}
	if s.logger != nil && resp != nil {
		s.logger.Debug("Fetched latest ticks",
			zap.Int("instruments", len(ticks)),
			zap.Bool("from_cache", resp.FromCache))
	}

	return writeOutput(cmd, "price."+market, func(f output.Formatter) (string, error) {
		return f.FormatTicks(ticks)
	})
}
