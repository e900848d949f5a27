package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quotalens/quotalens/internal/core/engine"
	"github.com/quotalens/quotalens/internal/observability"
	"github.com/quotalens/quotalens/internal/output"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe a set of endpoints and summarize their responses",
	Long: `Probe a set of endpoints in order and report status, data shape and
provider messages for each.

Without --plan the built-in spot-market plan is used. Plan files are YAML:

  name: my-plan
  vars:
    market: kraken
  endpoints:
    - name: markets
      path: /spot/v1/markets
      params:
        market: "{market}"

Every uncached call counts against the quota; the report shows how many
MONTH calls the run used.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().String("plan", "", "Plan file (default: probe.plan from config, then the built-in spot plan)")
	probeCmd.Flags().String("market", "", "Override the plan's market variable")
	probeCmd.Flags().StringSlice("instruments", nil, "Override the plan's instruments variable")
	probeCmd.Flags().Bool("no-cache", false, "Skip the response cache")
	addOutputFlags(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	planPath, err := cmd.Flags().GetString("plan")
	if err != nil {
		return err
	}
	market, err := cmd.Flags().GetString("market")
	if err != nil {
		return err
	}
	instruments, err := cmd.Flags().GetStringSlice("instruments")
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

	if strings.TrimSpace(planPath) == "" {
		planPath = s.cfg.Probe.Plan
	}
	plan, err := resolvePlan(planPath)
	if err != nil {
		return err
	}
	plan = plan.WithVars(map[string]string{
		engine.VarMarket:      market,
		engine.VarInstruments: strings.Join(instruments, ","),
	})

	runner := &engine.Runner{Client: s.client, Logger: observability.Logger()}
	report, runErr := runner.Run(cmd.Context(), plan)
	if report == nil {
		return runErr
	}

	if err := writeOutput(cmd, "probe."+plan.Name, func(f output.Formatter) (string, error) {
		return f.FormatProbeReport(report)
	}); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if report.Total > 0 && report.Succeeded == 0 {
		return errors.New("no endpoint in the plan succeeded")
	}
	return nil
}

func resolvePlan(path string) (engine.Plan, error) {
	if strings.TrimSpace(path) == "" {
		return engine.DefaultSpotPlan(), nil
	}
	return engine.LoadPlan(path)
}
