package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"metergate/internal/gate"
	"metergate/internal/preflight"
	"metergate/internal/registry"
	"metergate/internal/testsupport"
)

type fakeRegistry struct {
	pingErr error
}

func (f *fakeRegistry) Ping(context.Context) error { return f.pingErr }

func (f *fakeRegistry) FetchProduction(context.Context, string) (gate.Baseline, error) {
	return gate.NoBaseline, nil
}

func (f *fakeRegistry) LatestVersion(context.Context, string) (string, error) { return "", nil }

func (f *fakeRegistry) Promote(context.Context, string, string) error { return nil }

var _ registry.Client = (*fakeRegistry)(nil)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Dataset directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for %s: %s", dir, result.Detail)
	}

	missing := preflight.CheckDirectoryAccess("Dataset directory", filepath.Join(dir, "absent"))
	if missing.Passed {
		t.Fatal("expected failure for missing directory")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	notDir := preflight.CheckDirectoryAccess("Dataset directory", file)
	if notDir.Passed {
		t.Fatal("expected failure for non-directory path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := preflight.CheckDiskSpace("Free disk space", t.TempDir(), 0)
	if !result.Passed {
		t.Fatalf("expected pass with zero threshold: %s", result.Detail)
	}

	// An absurd threshold should always fail.
	huge := preflight.CheckDiskSpace("Free disk space", t.TempDir(), 1<<20)
	if huge.Passed {
		t.Fatalf("expected failure for impossible threshold: %s", huge.Detail)
	}
}

func TestCheckTrainerCommand(t *testing.T) {
	found := preflight.CheckTrainerCommand("Trainer command", "sh")
	if !found.Passed {
		t.Fatalf("expected sh to resolve: %s", found.Detail)
	}

	missing := preflight.CheckTrainerCommand("Trainer command", "definitely-not-a-real-binary")
	if missing.Passed {
		t.Fatal("expected failure for missing binary")
	}
}

func TestRunAllCollectsResults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Trainer.Command = "sh"

	results := preflight.RunAll(context.Background(), cfg, &fakeRegistry{})
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if !preflight.AllPassed(results) {
		for _, r := range results {
			t.Logf("%s: passed=%v detail=%s", r.Name, r.Passed, r.Detail)
		}
		t.Fatal("expected all checks to pass")
	}
}

func TestRunAllSkipsRegistryWithoutClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Trainer.Command = ""

	results := preflight.RunAll(context.Background(), cfg, nil)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
}
