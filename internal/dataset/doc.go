// Package dataset models the water-meter training corpus and owns the merge
// and integrity rules that gate every training run.
//
// A Sample pairs one meter image with its binary segmentation mask, keyed by
// the shared filename stem. Merge combines the committed snapshot with newly
// contributed samples under last-write-wins semantics so mislabeled samples
// can be corrected by re-submitting under the same ID. Validate inspects the
// merged snapshot for structural problems (non-binary masks, dimension
// mismatches, degenerate masks) and reports every violation at once so a
// contributor can fix a batch in one pass.
//
// The package is pure over in-memory samples; reading image files from disk
// lives in the loader, which callers invoke explicitly.
package dataset
