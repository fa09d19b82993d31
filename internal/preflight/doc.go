// Package preflight provides readiness checks for external services
// and filesystem paths that metergate depends on.
//
// These checks run in two contexts:
//   - The pipeline runner calls RunAll before starting a training run.
//     If any check fails, the run aborts before hours of GPU time are wasted.
//   - The CLI "metergate preflight" command prints the same results so
//     operators can verify an environment without launching a run.
//
// The registry check is the important one: an unreachable MLflow server must
// stop the run up front, because it cannot be told apart from a missing
// baseline at decision time.
package preflight
