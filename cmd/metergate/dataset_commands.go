package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"metergate/internal/config"
	"metergate/internal/dataset"
	"metergate/internal/split"
)

// loadMergedSnapshot materializes the dataset the next run would train on:
// the durable dataset plus any pending incoming batch, incoming winning ID
// conflicts. Nothing is moved or written; this is the read-only preview used
// by the merge, validate, and split commands.
func loadMergedSnapshot(cfg *config.Config) (dataset.Snapshot, int, int, error) {
	existingSamples, err := loadDirIfPresent(cfg.Paths.DatasetDir)
	if err != nil {
		return dataset.Snapshot{}, 0, 0, err
	}
	existing, err := dataset.NewSnapshot(existingSamples)
	if err != nil {
		return dataset.Snapshot{}, 0, 0, err
	}

	incoming, err := loadDirIfPresent(cfg.Paths.IncomingDir)
	if err != nil {
		return dataset.Snapshot{}, 0, 0, err
	}
	if len(incoming) == 0 {
		return existing, existing.Len(), 0, nil
	}

	merged, err := dataset.Merge(existing, incoming)
	if err != nil {
		return dataset.Snapshot{}, 0, 0, err
	}
	return merged, existing.Len(), len(incoming), nil
}

func loadDirIfPresent(root string) ([]dataset.Sample, error) {
	for _, sub := range []string{"images", "masks"} {
		if _, err := os.Stat(filepath.Join(root, sub)); os.IsNotExist(err) {
			return nil, nil
		}
	}
	return dataset.LoadDir(root)
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Preview the merge of incoming samples into the dataset",
		Long: `Show what the dataset would look like after merging the incoming batch.
Files are not moved; a pipeline run performs the durable merge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			merged, existing, incoming, err := loadMergedSnapshot(cfg)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, struct {
					Existing int      `json:"existing"`
					Incoming int      `json:"incoming"`
					Merged   int      `json:"merged"`
					Digest   string   `json:"snapshot_digest"`
					IDs      []string `json:"sample_ids"`
				}{existing, incoming, merged.Len(), merged.Digest(), merged.IDs()})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Existing samples: %d\n", existing)
			fmt.Fprintf(out, "Incoming samples: %d\n", incoming)
			fmt.Fprintf(out, "Merged samples:   %d\n", merged.Len())
			fmt.Fprintf(out, "Snapshot digest:  %s\n", merged.Digest())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the merge preview as JSON")
	return cmd
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check dataset integrity without training",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			snapshot, _, _, err := loadMergedSnapshot(cfg)
			if err != nil {
				return err
			}

			report := dataset.Validate(snapshot, dataset.ValidateOptions{
				ExpectedWidth:       cfg.Dataset.ExpectedWidth,
				ExpectedHeight:      cfg.Dataset.ExpectedHeight,
				EnforceDimensions:   cfg.Dataset.EnforceDimensions,
				MinForegroundPixels: cfg.Dataset.MinForegroundPixels,
			})

			if jsonOut {
				if err := writeJSON(cmd, validationView(report)); err != nil {
					return err
				}
			} else {
				renderValidationReport(cmd, report)
			}

			if !report.OK() {
				return fmt.Errorf("%d integrity violations across %d samples",
					len(report.Violations), len(report.SampleIDs()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the validation report as JSON")
	return cmd
}

type violationRow struct {
	SampleID string `json:"sample_id"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail"`
}

type validationReportView struct {
	OK          bool           `json:"ok"`
	SampleCount int            `json:"sample_count"`
	Resolution  string         `json:"resolution"`
	MedianPct   float64        `json:"median_coverage_pct"`
	StdDevPct   float64        `json:"stddev_coverage_pct"`
	Violations  []violationRow `json:"violations,omitempty"`
}

func validationView(report dataset.Report) validationReportView {
	view := validationReportView{
		OK:          report.OK(),
		SampleCount: report.Statistics.SampleCount,
		Resolution:  report.Statistics.Resolution,
		MedianPct:   report.Statistics.MedianCoveragePct,
		StdDevPct:   report.Statistics.StdDevCoveragePct,
	}
	for _, violation := range report.Violations {
		view.Violations = append(view.Violations, violationRow{
			SampleID: violation.SampleID,
			Kind:     string(violation.Kind),
			Detail:   violation.Detail,
		})
	}
	return view
}

func renderValidationReport(cmd *cobra.Command, report dataset.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Samples:    %d\n", report.Statistics.SampleCount)
	fmt.Fprintf(out, "Resolution: %s\n", report.Statistics.Resolution)
	fmt.Fprintf(out, "Coverage:   median %.2f%%, stddev %.2f%%\n",
		report.Statistics.MedianCoveragePct, report.Statistics.StdDevCoveragePct)

	if report.OK() {
		fmt.Fprintln(out, "Dataset is structurally sound")
		return
	}

	rows := make([][]string, 0, len(report.Violations))
	for _, violation := range report.Violations {
		rows = append(rows, []string{violation.SampleID, string(violation.Kind), violation.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Sample", "Violation", "Detail"}, rows, nil))
}

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var seed int64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Preview the deterministic train/val/test split",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			snapshot, _, _, err := loadMergedSnapshot(cfg)
			if err != nil {
				return err
			}

			assignment, err := split.Assign(snapshot, seed, cfg.Ratios())
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, struct {
					Seed   int64    `json:"seed"`
					Digest string   `json:"snapshot_digest"`
					Train  []string `json:"train"`
					Val    []string `json:"val"`
					Test   []string `json:"test"`
				}{seed, snapshot.Digest(), assignment.Train, assignment.Val, assignment.Test})
			}

			train, val, test := assignment.Sizes()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Seed:            %d\n", seed)
			fmt.Fprintf(out, "Snapshot digest: %s\n", snapshot.Digest())
			fmt.Fprintf(out, "Train/Val/Test:  %d/%d/%d\n", train, val, test)
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the deterministic split shuffle")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the full assignment as JSON")
	return cmd
}
