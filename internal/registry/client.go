// Package registry talks to the model registry that holds the production
// baseline.
//
// The pipeline depends only on the small Client interface; the MLflow REST
// implementation lives alongside it. Absence of a production version (the
// first-ever run for a model) is a normal answer, not an error, and is kept
// strictly distinct from an unreachable registry: conflating the two would
// let a broken connection masquerade as a first run and promote a possibly
// worse model.
package registry

import (
	"context"

	"metergate/internal/gate"
)

// Client is the registry capability the pipeline needs.
type Client interface {
	// Ping verifies the registry is reachable.
	Ping(ctx context.Context) error
	// FetchProduction returns the current production version's metrics for
	// the named model. Baseline.Exists is false when no version has ever
	// been promoted; an unreachable registry is a transient error.
	FetchProduction(ctx context.Context, model string) (gate.Baseline, error)
	// LatestVersion returns the highest registered version of the model,
	// typically the one the training job just logged.
	LatestVersion(ctx context.Context, model string) (string, error)
	// Promote transitions the given version to production, archiving any
	// previously promoted versions.
	Promote(ctx context.Context, model, version string) error
}
