package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"metergate/internal/split"
)

// Manifest is the split artifact handed to the training job. It pins the
// exact sample-to-subset assignment so the job cannot re-split differently,
// and carries the composition digest so a stored run can be audited against
// the dataset that produced it.
type Manifest struct {
	RunID          string   `json:"run_id"`
	Seed           int64    `json:"seed"`
	SnapshotDigest string   `json:"snapshot_digest"`
	DatasetDir     string   `json:"dataset_dir"`
	Train          []string `json:"train"`
	Val            []string `json:"val"`
	Test           []string `json:"test"`
}

// NewManifest builds the manifest for one run.
func NewManifest(runID string, digest, datasetDir string, assignment split.Assignment) Manifest {
	return Manifest{
		RunID:          runID,
		Seed:           assignment.Seed,
		SnapshotDigest: digest,
		DatasetDir:     datasetDir,
		Train:          assignment.Train,
		Val:            assignment.Val,
		Test:           assignment.Test,
	}
}

// writeJSONFile marshals v with indentation and writes it atomically enough
// for single-writer artifacts: temp file in the same directory, then rename.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure artifact directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("create artifact temp file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}
