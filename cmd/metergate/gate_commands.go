package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"metergate/internal/gate"
	"metergate/internal/pipeline"
)

func newBaselineCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Show the production baseline metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.registryClient()
			if err != nil {
				return err
			}

			baseline, err := client.FetchProduction(cmd.Context(), cfg.Registry.ModelName)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, struct {
					Model   string         `json:"model"`
					Exists  bool           `json:"exists"`
					Metrics gate.MetricSet `json:"metrics,omitempty"`
				}{cfg.Registry.ModelName, baseline.Exists, baseline.Metrics})
			}

			out := cmd.OutOrStdout()
			if !baseline.Exists {
				fmt.Fprintf(out, "No production baseline exists for %s; the next run bootstraps\n", cfg.Registry.ModelName)
				return nil
			}
			fmt.Fprintf(out, "Production baseline for %s:\n", cfg.Registry.ModelName)
			for _, name := range baseline.Metrics.Names() {
				fmt.Fprintf(out, "  %s = %.4f\n", name, baseline.Metrics[name])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the baseline as JSON")
	return cmd
}

func newDecideCommand(ctx *commandContext) *cobra.Command {
	var metricsPath string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Compare a metrics file against the production baseline",
		Long: `Read candidate metrics from a JSON file (the trainer's metrics output),
fetch the production baseline, and print the promotion decision without
training or promoting anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.registryClient()
			if err != nil {
				return err
			}

			metrics, err := pipeline.ReadMetricsFile(metricsPath)
			if err != nil {
				return err
			}
			baseline, err := client.FetchProduction(cmd.Context(), cfg.Registry.ModelName)
			if err != nil {
				return err
			}

			decision, err := gate.Decide(metrics, baseline, cfg.Gate.TrackedMetrics)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, decision)
			}
			renderDecision(cmd, decision)
			return nil
		},
	}

	cmd.Flags().StringVarP(&metricsPath, "metrics", "m", "", "Path to the candidate metrics JSON file")
	_ = cmd.MarkFlagRequired("metrics")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the decision as JSON")
	return cmd
}

func renderDecision(cmd *cobra.Command, decision gate.Decision) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Promote:   %s\n", yesNo(decision.ShouldPromote))
	fmt.Fprintf(out, "Bootstrap: %s\n", yesNo(decision.Bootstrap))

	if len(decision.Results) > 0 {
		rows := make([][]string, 0, len(decision.Results))
		for _, result := range decision.Results {
			verdict := "improved"
			if !result.Improved {
				verdict = "blocked"
			}
			rows = append(rows, []string{
				result.Name,
				fmt.Sprintf("%.4f", result.New),
				fmt.Sprintf("%.4f", result.Baseline),
				fmt.Sprintf("%+.4f", result.Delta),
				verdict,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Metric", "New", "Baseline", "Delta", "Verdict"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
	}
	fmt.Fprintf(out, "Justification: %s\n", decision.Justification)
}

func newPromoteCommand(ctx *commandContext) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote a model version to production",
		Long: `Transition a registered model version to the Production stage, archiving
whatever held it before. Without --version the latest registered version is
promoted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.registryClient()
			if err != nil {
				return err
			}

			target := strings.TrimSpace(version)
			if target == "" {
				latest, err := client.LatestVersion(cmd.Context(), cfg.Registry.ModelName)
				if err != nil {
					return err
				}
				target = latest
			}

			if err := client.Promote(cmd.Context(), cfg.Registry.ModelName, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Promoted %s version %s to production\n", cfg.Registry.ModelName, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Model version to promote (defaults to the latest)")
	return cmd
}
