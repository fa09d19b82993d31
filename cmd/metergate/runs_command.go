package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"metergate/internal/provenance"
)

type runView struct {
	RunID           string    `json:"run_id"`
	Model           string    `json:"model"`
	Status          string    `json:"status"`
	Seed            int64     `json:"seed"`
	SnapshotDigest  string    `json:"snapshot_digest,omitempty"`
	SampleCount     int       `json:"sample_count"`
	TrainCount      int       `json:"train_count"`
	ValCount        int       `json:"val_count"`
	TestCount       int       `json:"test_count"`
	ShouldPromote   bool      `json:"should_promote"`
	Bootstrap       bool      `json:"bootstrap"`
	PromotedVersion string    `json:"promoted_version,omitempty"`
	Justification   string    `json:"justification,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newRunView(run *provenance.Run) runView {
	return runView{
		RunID:           run.RunID,
		Model:           run.Model,
		Status:          string(run.Status),
		Seed:            run.Seed,
		SnapshotDigest:  run.SnapshotDigest,
		SampleCount:     run.SampleCount,
		TrainCount:      run.TrainCount,
		ValCount:        run.ValCount,
		TestCount:       run.TestCount,
		ShouldPromote:   run.ShouldPromote,
		Bootstrap:       run.Bootstrap,
		PromotedVersion: run.PromotedVersion,
		Justification:   run.Justification,
		ErrorMessage:    run.ErrorMessage,
		UpdatedAt:       run.UpdatedAt,
	}
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var model string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := model
			if filter == "" {
				filter = cfg.Registry.ModelName
			}

			return ctx.withStore(func(store *provenance.Store) error {
				runs, err := store.List(cmd.Context(), filter, limit)
				if err != nil {
					return err
				}

				if jsonOut {
					views := make([]runView, 0, len(runs))
					for _, run := range runs {
						views = append(views, newRunView(run))
					}
					return writeJSON(cmd, views)
				}

				if len(runs) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded for %s\n", filter)
					return nil
				}

				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.RunID),
						string(run.Status),
						fmt.Sprintf("%d", run.SampleCount),
						fmt.Sprintf("%d/%d/%d", run.TrainCount, run.ValCount, run.TestCount),
						yesNo(run.ShouldPromote),
						run.PromotedVersion,
						run.UpdatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Run", "Status", "Samples", "Split", "Promote", "Version", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model name (defaults to the configured model)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit runs as JSON")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
