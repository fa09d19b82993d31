package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"metergate/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "metergate.log")
	logger, err := New(Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("pipeline run recorded", String(FieldRunID, "run-1"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "run-1") {
		t.Fatalf("expected run id in log output, got %q", string(data))
	}
}

func TestWithContextStampsFields(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-7")
	ctx = services.WithStage(ctx, "decide")

	fields := ContextFields(ctx)
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		keys[f.Key] = true
	}
	if !keys[FieldRunID] || !keys[FieldStage] {
		t.Fatalf("expected run id and stage fields, got %v", keys)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), 0) {
		t.Fatal("noop logger must not be enabled")
	}
}
