package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"metergate/internal/config"
	"metergate/internal/gate"
	"metergate/internal/pipeline"
	"metergate/internal/provenance"
	"metergate/internal/registry"
	"metergate/internal/services"
	"metergate/internal/split"
	"metergate/internal/testsupport"
)

type fakeTrainer struct {
	metrics  gate.MetricSet
	err      error
	requests []pipeline.TrainRequest
}

func (f *fakeTrainer) Train(_ context.Context, req pipeline.TrainRequest) (gate.MetricSet, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.metrics.Clone(), nil
}

type fakeRegistry struct {
	mu       sync.Mutex
	baseline gate.Baseline
	fetchErr error
	latest   string
	promoted []string
}

func (f *fakeRegistry) Ping(context.Context) error { return nil }

func (f *fakeRegistry) FetchProduction(context.Context, string) (gate.Baseline, error) {
	return f.baseline, f.fetchErr
}

func (f *fakeRegistry) LatestVersion(context.Context, string) (string, error) {
	return f.latest, nil
}

func (f *fakeRegistry) Promote(_ context.Context, model, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promoted = append(f.promoted, model+"@"+version)
	return nil
}

var _ registry.Client = (*fakeRegistry)(nil)

const (
	testDim        = 64
	testForeground = 200
)

func newPipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Dataset.ExpectedWidth = testDim
	cfg.Dataset.ExpectedHeight = testDim
	cfg.Preflight.MinFreeGiB = 0
	return cfg
}

func writeSamplePair(t *testing.T, root, id string) {
	t.Helper()
	testsupport.WriteImage(t, filepath.Join(root, "images", id+".jpg"), testDim, testDim)
	testsupport.WriteBinaryMask(t, filepath.Join(root, "masks", id+".png"), testDim, testDim, testForeground)
}

func seedDataset(t *testing.T, root string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		writeSamplePair(t, root, fmt.Sprintf("meter_%03d", i))
	}
}

func newRunner(t *testing.T, cfg *config.Config, client registry.Client, trainer pipeline.Trainer) (*pipeline.Runner, *provenance.Store) {
	t.Helper()
	store, err := provenance.Open(cfg.StorePath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	runner, err := pipeline.NewRunner(cfg, store, client, trainer, nil, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner, store
}

func TestExecuteBootstrapPromotes(t *testing.T) {
	cfg := newPipelineConfig(t)
	cfg.Gate.AutoPromote = true
	seedDataset(t, cfg.Paths.DatasetDir, 10)

	reg := &fakeRegistry{baseline: gate.NoBaseline, latest: "1"}
	trainer := &fakeTrainer{metrics: gate.MetricSet{"dice": 0.91, "iou": 0.85}}
	runner, store := newRunner(t, cfg, reg, trainer)

	result, err := runner.Execute(context.Background(), 42)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Decision == nil || !result.Decision.Bootstrap || !result.Decision.ShouldPromote {
		t.Fatalf("expected bootstrap promotion, got %+v", result.Decision)
	}
	if len(reg.promoted) != 1 || reg.promoted[0] != cfg.Registry.ModelName+"@1" {
		t.Fatalf("expected auto-promotion of version 1, got %v", reg.promoted)
	}

	run, err := store.GetByRunID(context.Background(), result.Run.RunID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if run.Status != provenance.StatusCompleted {
		t.Fatalf("unexpected status: %s", run.Status)
	}
	if !run.Bootstrap || !run.ShouldPromote || run.PromotedVersion != "1" {
		t.Fatalf("run record incomplete: %+v", run)
	}
	if run.SampleCount != 10 || run.TrainCount != 8 || run.ValCount != 1 || run.TestCount != 1 {
		t.Fatalf("unexpected split record: %d %d/%d/%d", run.SampleCount, run.TrainCount, run.ValCount, run.TestCount)
	}
	if run.SnapshotDigest == "" {
		t.Fatal("expected composition digest recorded")
	}

	for _, path := range []string{result.ManifestPath, result.DecisionPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}
	if len(trainer.requests) != 1 {
		t.Fatalf("expected one training invocation, got %d", len(trainer.requests))
	}
	if trainer.requests[0].ManifestPath != result.ManifestPath {
		t.Fatalf("trainer received wrong manifest: %s", trainer.requests[0].ManifestPath)
	}
}

func TestExecuteRejectsRegression(t *testing.T) {
	cfg := newPipelineConfig(t)
	cfg.Gate.AutoPromote = true
	seedDataset(t, cfg.Paths.DatasetDir, 10)

	reg := &fakeRegistry{
		baseline: gate.WithBaseline(gate.MetricSet{"dice": 0.9275, "iou": 0.8865}),
		latest:   "4",
	}
	trainer := &fakeTrainer{metrics: gate.MetricSet{"dice": 0.93, "iou": 0.88}}
	runner, store := newRunner(t, cfg, reg, trainer)

	result, err := runner.Execute(context.Background(), 42)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Decision.ShouldPromote {
		t.Fatal("regressed iou must block promotion")
	}
	if len(reg.promoted) != 0 {
		t.Fatalf("no promotion expected, got %v", reg.promoted)
	}

	run, err := store.GetByRunID(context.Background(), result.Run.RunID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if run.Status != provenance.StatusCompleted || run.ShouldPromote {
		t.Fatalf("rejection is still a completed run: %+v", run)
	}
}

func TestExecuteValidationFailureStopsBeforeTraining(t *testing.T) {
	cfg := newPipelineConfig(t)
	seedDataset(t, cfg.Paths.DatasetDir, 5)
	// One near-empty mask below the foreground floor.
	testsupport.WriteImage(t, filepath.Join(cfg.Paths.DatasetDir, "images", "meter_bad.jpg"), testDim, testDim)
	testsupport.WriteBinaryMask(t, filepath.Join(cfg.Paths.DatasetDir, "masks", "meter_bad.png"), testDim, testDim, 2)

	trainer := &fakeTrainer{metrics: gate.MetricSet{"dice": 0.9, "iou": 0.8}}
	runner, store := newRunner(t, cfg, &fakeRegistry{}, trainer)

	result, err := runner.Execute(context.Background(), 42)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(trainer.requests) != 0 {
		t.Fatal("training must not start on a broken dataset")
	}
	if result == nil || result.Report.OK() {
		t.Fatal("expected violations in the result report")
	}

	run, err := store.GetByRunID(context.Background(), result.Run.RunID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if run.Status != provenance.StatusReview {
		t.Fatalf("validation failures park in review, got %s", run.Status)
	}
	if run.ErrorMessage == "" {
		t.Fatal("expected the offending samples recorded on the run")
	}
}

func TestExecuteAdoptsIncomingSamples(t *testing.T) {
	cfg := newPipelineConfig(t)
	seedDataset(t, cfg.Paths.DatasetDir, 4)
	// Two new samples plus a correction for meter_002.
	writeSamplePair(t, cfg.Paths.IncomingDir, "meter_101")
	writeSamplePair(t, cfg.Paths.IncomingDir, "meter_102")
	writeSamplePair(t, cfg.Paths.IncomingDir, "meter_002")

	trainer := &fakeTrainer{metrics: gate.MetricSet{"dice": 0.9, "iou": 0.8}}
	runner, store := newRunner(t, cfg, &fakeRegistry{latest: "1"}, trainer)

	result, err := runner.Execute(context.Background(), 42)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	run, err := store.GetByRunID(context.Background(), result.Run.RunID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if run.SampleCount != 6 {
		t.Fatalf("expected 6 samples after merge (4 existing + 2 new + 1 replaced), got %d", run.SampleCount)
	}

	for _, id := range []string{"meter_101", "meter_102", "meter_002"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.DatasetDir, "images", id+".jpg")); err != nil {
			t.Fatalf("expected adopted image for %s: %v", id, err)
		}
		if _, err := os.Stat(filepath.Join(cfg.Paths.IncomingDir, "images", id+".jpg")); !os.IsNotExist(err) {
			t.Fatalf("expected incoming image for %s to be gone, stat err: %v", id, err)
		}
	}
}

func TestExecuteFailsWhenRegistryUnreachable(t *testing.T) {
	cfg := newPipelineConfig(t)
	seedDataset(t, cfg.Paths.DatasetDir, 10)

	reg := &fakeRegistry{
		fetchErr: services.Wrap(services.ErrTransient, "registry", "get-latest-versions", "connection refused", nil),
	}
	trainer := &fakeTrainer{metrics: gate.MetricSet{"dice": 0.9, "iou": 0.8}}
	runner, store := newRunner(t, cfg, reg, trainer)

	result, err := runner.Execute(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error for unreachable registry")
	}
	if !services.Retryable(err) {
		t.Fatalf("registry outage must stay retryable, got %v", err)
	}

	run, getErr := store.GetByRunID(context.Background(), result.Run.RunID)
	if getErr != nil {
		t.Fatalf("load run: %v", getErr)
	}
	if run.Status != provenance.StatusFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
}

func TestExecuteDeterministicAcrossRuns(t *testing.T) {
	cfg := newPipelineConfig(t)
	seedDataset(t, cfg.Paths.DatasetDir, 12)

	trainer := &fakeTrainer{metrics: gate.MetricSet{"dice": 0.9, "iou": 0.8}}
	runner, _ := newRunner(t, cfg, &fakeRegistry{latest: "1"}, trainer)

	first, err := runner.Execute(context.Background(), 7)
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	second, err := runner.Execute(context.Background(), 7)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}

	if first.Run.SnapshotDigest != second.Run.SnapshotDigest {
		t.Fatal("same dataset must produce the same composition digest")
	}
	assertSameAssignment(t, first.Assignment, second.Assignment)
}

func assertSameAssignment(t *testing.T, a, b split.Assignment) {
	t.Helper()
	for name, pair := range map[string][2][]string{
		"train": {a.Train, b.Train},
		"val":   {a.Val, b.Val},
		"test":  {a.Test, b.Test},
	} {
		got, want := pair[0], pair[1]
		if len(got) != len(want) {
			t.Fatalf("%s sizes differ: %d vs %d", name, len(got), len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("%s diverges at %d: %s vs %s", name, i, got[i], want[i])
			}
		}
	}
}
