package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"metergate/internal/notifications"
	"metergate/internal/pipeline"
	"metergate/internal/provenance"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var seed int64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one quality-gated training run",
		Long: `Run the full pipeline: merge incoming samples into the dataset, validate
integrity, split deterministically, train, compare against the production
baseline, and record the promotion decision.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			client, err := ctx.registryClient()
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *provenance.Store) error {
				trainer := pipeline.NewExecTrainer(cfg.Trainer, logger)
				runner, err := pipeline.NewRunner(cfg, store, client, trainer, notifications.NewService(cfg), logger)
				if err != nil {
					return err
				}

				result, err := runner.Execute(cmd.Context(), seed)
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, result.Decision)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s completed\n", result.Run.RunID)
				fmt.Fprintf(out, "Samples: %d (train %d / val %d / test %d)\n",
					result.Run.SampleCount, result.Run.TrainCount, result.Run.ValCount, result.Run.TestCount)
				fmt.Fprintf(out, "Promote: %s\n", yesNo(result.Decision.ShouldPromote))
				if result.Run.PromotedVersion != "" {
					fmt.Fprintf(out, "Promoted version: %s\n", result.Run.PromotedVersion)
				}
				fmt.Fprintf(out, "Justification: %s\n", result.Decision.Justification)
				fmt.Fprintf(out, "Decision artifact: %s\n", result.DecisionPath)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the deterministic split shuffle")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the decision as JSON")
	return cmd
}
