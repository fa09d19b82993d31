package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"metergate/internal/config"
	"metergate/internal/testsupport"
)

type cliTestEnv struct {
	cfg        config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DatasetDir = filepath.Join(base, "dataset")
	cfg.Paths.IncomingDir = filepath.Join(base, "incoming")
	cfg.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Trainer.MetricsPath = filepath.Join(base, "artifacts", "metrics.json")
	cfg.Dataset.ExpectedWidth = 64
	cfg.Dataset.ExpectedHeight = 64

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, &cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func seedCLISamples(t *testing.T, root string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		testsupport.WriteImage(t, filepath.Join(root, "images", id+".jpg"), 64, 64)
		testsupport.WriteBinaryMask(t, filepath.Join(root, "masks", id+".png"), 64, 64, 200)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, []string{"version"}, "")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "metergate "+appVersion)
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error without --overwrite on existing file")
	}
}

func TestConfigShow(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, "[gate]")
}

func TestMergeCommandPreview(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCLISamples(t, env.cfg.Paths.DatasetDir, "meter_001", "meter_002")
	seedCLISamples(t, env.cfg.Paths.IncomingDir, "meter_003")

	out, err := runCLI(t, []string{"merge"}, env.configPath)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	requireContains(t, out, "Existing samples: 2")
	requireContains(t, out, "Incoming samples: 1")
	requireContains(t, out, "Merged samples:   3")

	// Preview must not move anything.
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.IncomingDir, "images", "meter_003.jpg")); err != nil {
		t.Fatalf("merge preview moved incoming files: %v", err)
	}
}

func TestValidateCommandCleanDataset(t *testing.T) {
	env := setupCLITestEnv(t)
	seedCLISamples(t, env.cfg.Paths.DatasetDir, "meter_001", "meter_002", "meter_003")

	out, err := runCLI(t, []string{"validate"}, env.configPath)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	requireContains(t, out, "structurally sound")
}

func TestValidateCommandReportsViolations(t *testing.T) {
	env := setupCLISamplesWithBadMask(t)

	out, err := runCLI(t, []string{"validate"}, env.configPath)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	requireContains(t, out, "meter_bad")
	requireContains(t, out, "empty_mask")
}

func setupCLISamplesWithBadMask(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupCLITestEnv(t)
	seedCLISamples(t, env.cfg.Paths.DatasetDir, "meter_001", "meter_002")
	testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.DatasetDir, "images", "meter_bad.jpg"), 64, 64)
	testsupport.WriteBinaryMask(t, filepath.Join(env.cfg.Paths.DatasetDir, "masks", "meter_bad.png"), 64, 64, 2)
	return env
}

func TestSplitCommandPreview(t *testing.T) {
	env := setupCLITestEnv(t)
	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, string(rune('a'+i))+"_meter")
	}
	seedCLISamples(t, env.cfg.Paths.DatasetDir, ids...)

	out, err := runCLI(t, []string{"split", "--seed", "7"}, env.configPath)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	requireContains(t, out, "Train/Val/Test:  8/1/1")

	again, err := runCLI(t, []string{"split", "--seed", "7"}, env.configPath)
	if err != nil {
		t.Fatalf("split again: %v", err)
	}
	if out != again {
		t.Fatal("same seed must produce identical split output")
	}
}

func TestRunsCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}
