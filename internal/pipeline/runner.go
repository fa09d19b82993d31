package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"metergate/internal/config"
	"metergate/internal/dataset"
	"metergate/internal/fileutil"
	"metergate/internal/gate"
	"metergate/internal/logging"
	"metergate/internal/notifications"
	"metergate/internal/preflight"
	"metergate/internal/provenance"
	"metergate/internal/registry"
	"metergate/internal/runlock"
	"metergate/internal/services"
	"metergate/internal/split"
)

// Runner executes one complete pipeline run: merge incoming samples into the
// dataset, validate it, split it, train, compare against the production
// baseline, decide, and record the outcome.
type Runner struct {
	cfg      *config.Config
	store    *provenance.Store
	registry registry.Client
	trainer  Trainer
	notifier notifications.Service
	logger   *slog.Logger
}

// RunResult is everything a caller can inspect after Execute returns.
type RunResult struct {
	Run          *provenance.Run
	Report       dataset.Report
	Assignment   split.Assignment
	Decision     *gate.Decision
	ManifestPath string
	DecisionPath string
}

// NewRunner constructs a runner with initialized dependencies.
func NewRunner(cfg *config.Config, store *provenance.Store, client registry.Client, trainer Trainer, notifier notifications.Service, logger *slog.Logger) (*Runner, error) {
	if cfg == nil || store == nil || client == nil || trainer == nil {
		return nil, errors.New("runner requires config, store, registry client, and trainer")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Runner{
		cfg:      cfg,
		store:    store,
		registry: client,
		trainer:  trainer,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

type baselineResult struct {
	baseline gate.Baseline
	err      error
}

// Execute runs the pipeline once with the given split seed. It holds the
// host-wide run lock for its entire duration; a second concurrent Execute on
// the same host fails fast with runlock.ErrAlreadyLocked.
func (r *Runner) Execute(ctx context.Context, seed int64) (*RunResult, error) {
	lock := runlock.New(r.cfg.LockPath())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	if checks := preflight.RunAll(ctx, r.cfg, r.registry); !preflight.AllPassed(checks) {
		err := services.Wrap(services.ErrConfiguration, "preflight", "checks", describeFailures(checks), nil)
		_ = r.notifier.NotifyError(ctx, err, "preflight")
		return nil, err
	}

	runID := uuid.NewString()
	model := r.cfg.Registry.ModelName
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithModel(ctx, model)
	logger := logging.WithContext(ctx, r.logger)

	snapshot, err := r.assembleSnapshot(logger)
	if err != nil {
		_ = r.notifier.NotifyError(ctx, err, "dataset merge")
		return nil, err
	}

	run, err := r.store.Begin(ctx, runID, model, seed)
	if err != nil {
		return nil, services.Wrap(nil, "provenance", "begin", "record run start", err)
	}
	result := &RunResult{Run: run}

	logger.Info("pipeline run started",
		logging.Int("samples", snapshot.Len()),
		logging.Int64("seed", seed),
		logging.String(logging.FieldEventType, "run_started"))
	_ = r.notifier.NotifyRunStarted(ctx, runID, snapshot.Len())

	report := dataset.Validate(snapshot, dataset.ValidateOptions{
		ExpectedWidth:       r.cfg.Dataset.ExpectedWidth,
		ExpectedHeight:      r.cfg.Dataset.ExpectedHeight,
		EnforceDimensions:   r.cfg.Dataset.EnforceDimensions,
		MinForegroundPixels: r.cfg.Dataset.MinForegroundPixels,
	})
	result.Report = report
	if !report.OK() {
		detail := fmt.Sprintf("%d integrity violations in samples %s",
			len(report.Violations), dataset.SummarizeIDs(report.SampleIDs(), 10))
		err := services.Wrap(services.ErrValidation, "validation", "integrity", detail, nil)
		_ = r.notifier.NotifyValidationFailed(ctx, runID, len(report.Violations))
		return result, r.fail(ctx, run, err)
	}
	logger.Info("dataset validated",
		logging.String("resolution", report.Statistics.Resolution),
		logging.Float64("median_coverage_pct", report.Statistics.MedianCoveragePct))

	// Incoming samples join the durable dataset only once they validated as
	// part of the merged whole.
	snapshot, err = r.adoptIncoming(snapshot, logger)
	if err != nil {
		return result, r.fail(ctx, run, err)
	}

	assignment, err := split.Assign(snapshot, seed, r.cfg.Ratios())
	if err != nil {
		err = services.Wrap(services.ErrValidation, "split", "assign", "partition dataset", err)
		return result, r.fail(ctx, run, err)
	}
	result.Assignment = assignment

	run.SnapshotDigest = snapshot.Digest()
	run.SampleCount = snapshot.Len()
	run.TrainCount, run.ValCount, run.TestCount = assignment.Sizes()
	if err := r.store.Update(ctx, run); err != nil {
		return result, services.Wrap(nil, "provenance", "update", "record split", err)
	}

	runDir := filepath.Join(r.cfg.Paths.ArtifactsDir, "runs", runID)
	manifestPath := filepath.Join(runDir, "split.json")
	manifest := NewManifest(runID, run.SnapshotDigest, r.cfg.Paths.DatasetDir, assignment)
	if err := writeJSONFile(manifestPath, manifest); err != nil {
		err = services.Wrap(services.ErrConfiguration, "split", "manifest", "write split manifest", err)
		return result, r.fail(ctx, run, err)
	}
	result.ManifestPath = manifestPath
	logger.Info("split assigned",
		logging.Int("train", run.TrainCount),
		logging.Int("val", run.ValCount),
		logging.Int("test", run.TestCount),
		logging.String("manifest", manifestPath))

	// The baseline fetch overlaps training: both can take a while and
	// neither depends on the other. A fetch failure only matters once the
	// decision needs the baseline.
	baselineCh := make(chan baselineResult, 1)
	go func() {
		baseline, fetchErr := r.registry.FetchProduction(ctx, model)
		baselineCh <- baselineResult{baseline: baseline, err: fetchErr}
	}()

	metrics, err := r.trainer.Train(ctx, TrainRequest{
		RunID:        runID,
		Seed:         seed,
		DatasetDir:   r.cfg.Paths.DatasetDir,
		ManifestPath: manifestPath,
	})
	if err != nil {
		return result, r.fail(ctx, run, err)
	}
	_ = r.notifier.NotifyTrainingCompleted(ctx, runID, metrics)

	fetched := <-baselineCh
	if fetched.err != nil {
		return result, r.fail(ctx, run, fetched.err)
	}

	decision, err := gate.Decide(metrics, fetched.baseline, r.cfg.Gate.TrackedMetrics)
	if err != nil {
		err = services.Wrap(services.ErrValidation, "gate", "decide", "compare against baseline", err)
		return result, r.fail(ctx, run, err)
	}
	result.Decision = &decision

	decisionPath := filepath.Join(runDir, "decision.json")
	if err := writeJSONFile(decisionPath, decision); err != nil {
		err = services.Wrap(services.ErrConfiguration, "gate", "artifact", "write decision artifact", err)
		return result, r.fail(ctx, run, err)
	}
	result.DecisionPath = decisionPath

	run.NewMetricsJSON = mustMarshal(metrics)
	if fetched.baseline.Exists {
		run.BaselineJSON = mustMarshal(fetched.baseline.Metrics)
	}
	run.ShouldPromote = decision.ShouldPromote
	run.Bootstrap = decision.Bootstrap
	run.Justification = decision.Justification

	if decision.ShouldPromote && r.cfg.Gate.AutoPromote {
		version, promoteErr := r.promote(ctx, model)
		if promoteErr != nil {
			return result, r.fail(ctx, run, promoteErr)
		}
		run.PromotedVersion = version
		logger.Info("model promoted",
			logging.String("version", version),
			logging.String(logging.FieldEventType, "model_promoted"))
	}

	run.Status = provenance.StatusCompleted
	if err := r.store.Update(ctx, run); err != nil {
		return result, services.Wrap(nil, "provenance", "update", "record decision", err)
	}
	_ = r.notifier.NotifyPromotionDecision(ctx, runID, &decision)

	logger.Info("pipeline run completed",
		logging.Bool("should_promote", decision.ShouldPromote),
		logging.Bool("bootstrap", decision.Bootstrap),
		logging.String(logging.FieldEventType, "run_completed"))
	return result, nil
}

// assembleSnapshot loads the durable dataset and any incoming batch and
// merges them. Incoming samples win ID conflicts: a re-submitted sample is a
// correction of its annotation.
func (r *Runner) assembleSnapshot(logger *slog.Logger) (dataset.Snapshot, error) {
	existingSamples, err := loadIfPresent(r.cfg.Paths.DatasetDir)
	if err != nil {
		return dataset.Snapshot{}, services.Wrap(services.ErrValidation, "merge", "load", "load dataset directory", err)
	}
	existing, err := dataset.NewSnapshot(existingSamples)
	if err != nil {
		return dataset.Snapshot{}, services.Wrap(services.ErrValidation, "merge", "load", "dataset directory inconsistent", err)
	}

	incoming, err := loadIfPresent(r.cfg.Paths.IncomingDir)
	if err != nil {
		return dataset.Snapshot{}, services.Wrap(services.ErrValidation, "merge", "load", "load incoming directory", err)
	}

	if len(incoming) == 0 {
		if existing.Len() == 0 {
			return dataset.Snapshot{}, services.Wrap(services.ErrValidation, "merge", "load", "no samples in dataset or incoming directories", nil)
		}
		logger.Info("no incoming samples, training on existing dataset",
			logging.Int("samples", existing.Len()))
		return existing, nil
	}

	merged, err := dataset.Merge(existing, incoming)
	if err != nil {
		return dataset.Snapshot{}, services.Wrap(services.ErrValidation, "merge", "merge", "merge incoming samples", err)
	}
	logger.Info("incoming samples merged",
		logging.Int("existing", existing.Len()),
		logging.Int("incoming", len(incoming)),
		logging.Int("merged", merged.Len()))
	return merged, nil
}

// adoptIncoming moves validated incoming files into the durable dataset
// directory and returns the snapshot with refs rewritten to their new homes.
// A replaced sample's old files are removed first, extension change included.
func (r *Runner) adoptIncoming(snapshot dataset.Snapshot, logger *slog.Logger) (dataset.Snapshot, error) {
	imageDir := filepath.Join(r.cfg.Paths.DatasetDir, "images")
	maskDir := filepath.Join(r.cfg.Paths.DatasetDir, "masks")
	incomingRoot := r.cfg.Paths.IncomingDir

	adopted := 0
	samples := append([]dataset.Sample(nil), snapshot.Samples()...)
	for i, sample := range samples {
		if !strings.HasPrefix(sample.ImageRef, incomingRoot+string(filepath.Separator)) {
			continue
		}
		if adopted == 0 {
			for _, dir := range []string{imageDir, maskDir} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return dataset.Snapshot{}, services.Wrap(services.ErrConfiguration, "merge", "adopt", "ensure dataset directories", err)
				}
			}
		}

		removeStemFiles(imageDir, sample.ID)
		removeStemFiles(maskDir, sample.ID)

		newImage := filepath.Join(imageDir, filepath.Base(sample.ImageRef))
		newMask := filepath.Join(maskDir, filepath.Base(sample.MaskRef))
		if err := fileutil.MoveFile(sample.ImageRef, newImage); err != nil {
			return dataset.Snapshot{}, services.Wrap(services.ErrConfiguration, "merge", "adopt", fmt.Sprintf("adopt image for sample %s", sample.ID), err)
		}
		if err := fileutil.MoveFile(sample.MaskRef, newMask); err != nil {
			return dataset.Snapshot{}, services.Wrap(services.ErrConfiguration, "merge", "adopt", fmt.Sprintf("adopt mask for sample %s", sample.ID), err)
		}
		samples[i].ImageRef = newImage
		samples[i].MaskRef = newMask
		adopted++
	}

	if adopted == 0 {
		return snapshot, nil
	}
	logger.Info("incoming samples adopted into dataset", logging.Int("adopted", adopted))
	return dataset.NewSnapshot(samples)
}

func (r *Runner) promote(ctx context.Context, model string) (string, error) {
	version, err := r.registry.LatestVersion(ctx, model)
	if err != nil {
		return "", err
	}
	if err := r.registry.Promote(ctx, model, version); err != nil {
		return "", err
	}
	return version, nil
}

// fail records the terminal failure state on the run and notifies, then
// returns err unchanged so the caller sees the original classification.
func (r *Runner) fail(ctx context.Context, run *provenance.Run, err error) error {
	run.Status = services.FailureStatus(err)
	run.ErrorMessage = err.Error()
	if updateErr := r.store.Update(ctx, run); updateErr != nil {
		r.logger.Error("record run failure", logging.Error(updateErr))
	}
	if run.Status == provenance.StatusFailed {
		_ = r.notifier.NotifyError(ctx, err, "pipeline run")
	}
	return err
}

// loadIfPresent loads samples from root, treating a missing images/ or
// masks/ directory as an empty sample set rather than an error.
func loadIfPresent(root string) ([]dataset.Sample, error) {
	for _, sub := range []string{"images", "masks"} {
		if _, err := os.Stat(filepath.Join(root, sub)); os.IsNotExist(err) {
			return nil, nil
		}
	}
	return dataset.LoadDir(root)
}

func removeStemFiles(dir, stem string) {
	for _, ext := range []string{".jpg", ".png"} {
		_ = os.Remove(filepath.Join(dir, stem+ext))
	}
}

func describeFailures(results []preflight.Result) string {
	var failed []string
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	return "preflight failed: " + strings.Join(failed, "; ")
}

func mustMarshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
