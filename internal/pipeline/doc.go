// Package pipeline orchestrates one quality-gated training run end to end.
//
// Key responsibilities:
//   - Merge incoming samples into the durable dataset (last write wins per
//     sample ID) and adopt their files once validation passes.
//   - Validate the merged snapshot and hard-stop on any integrity violation.
//   - Split deterministically and hand the manifest to the injected Trainer.
//   - Fetch the production baseline concurrently with training and decide
//     promotion through the gate.
//   - Record every run in the provenance store and emit notifications.
//
// The runner holds the host-wide run lock for the whole run and performs no
// internal retries: transient failures are tagged services.ErrTransient and
// retry policy belongs to whatever invoked the run.
package pipeline
