package preflight

import (
	"context"

	"metergate/internal/config"
	"metergate/internal/registry"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The registry client may be nil, in which case the registry check is skipped.
func RunAll(ctx context.Context, cfg *config.Config, client registry.Client) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Dataset directory", cfg.Paths.DatasetDir))
	if cfg.Paths.IncomingDir != "" {
		results = append(results, CheckDirectoryAccess("Incoming directory", cfg.Paths.IncomingDir))
	}
	results = append(results, CheckDirectoryAccess("Artifacts directory", cfg.Paths.ArtifactsDir))
	results = append(results, CheckDiskSpace("Free disk space", cfg.Paths.ArtifactsDir, cfg.Preflight.MinFreeGiB))

	if cfg.Trainer.Command != "" {
		results = append(results, CheckTrainerCommand("Trainer command", cfg.Trainer.Command))
	}

	if client != nil {
		results = append(results, CheckRegistry(ctx, client, cfg.Registry.TrackingURI))
	}

	return results
}

// AllPassed reports whether every check in results succeeded.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
