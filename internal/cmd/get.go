package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quotalens/quotalens/internal/output"
)

var getCmd = &cobra.Command{
	Use:   "get <endpoint>",
	Short: "Call an API endpoint through the quota tracker",
	Long: `Call an API endpoint through the quota tracker.

The call is refused locally when any window has no calls left. Successful
responses are cached for cache.ttl; cached reads cost no quota.

Example:
  quotalens get /spot/v1/latest/tick --param market=coinbase --param instruments=BTC-USD`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().StringArrayP("param", "p", nil, "Query parameter as key=value (repeatable)")
	getCmd.Flags().Bool("no-cache", false, "Skip the response cache")
	addOutputFlags(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	rawParams, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return err
	}
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), sessionOptions{noCache: noCache})
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck // best-effort cleanup

	resp, callErr := s.client.Get(cmd.Context(), args[0], params)
	if resp == nil {
		return callErr
	}

	if err := writeOutput(cmd, responseName(args[0]), func(f output.Formatter) (string, error) {
		return f.FormatResponse(resp)
	}); err != nil {
		return err
	}
	return callErr
}

// parseParams turns key=value pairs into query values. Repeated keys are kept
// in order.
func parseParams(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		values.Add(key, strings.TrimSpace(value))
	}
	return values, nil
}

func responseName(endpoint string) string {
	name := strings.Trim(strings.ReplaceAll(endpoint, "/", "."), ".")
	if name == "" {
		return "response"
	}
	return name
}
