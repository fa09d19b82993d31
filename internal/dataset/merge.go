package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrEmptyMerge is returned when there are no new samples to merge.
	ErrEmptyMerge = errors.New("empty merge")
	// ErrMalformedSample is returned when a new sample is missing its image
	// or mask reference.
	ErrMalformedSample = errors.New("malformed sample")
)

// Merge combines the committed snapshot with newly contributed samples into
// one consistent working set.
//
// Samples are keyed by ID. A new sample that shares an ID with an existing
// one replaces it (last-write-wins), which is how mislabeled historical
// samples get corrected: re-submit under the same ID. The result contains the
// union of IDs, each exactly once, in ascending ID order.
//
// Incoming must be non-empty; a run with nothing new to train on is a caller
// mistake, not a no-op. Merge performs no I/O.
func Merge(existing Snapshot, incoming []Sample) (Snapshot, error) {
	if len(incoming) == 0 {
		if existing.Len() == 0 {
			return Snapshot{}, fmt.Errorf("%w: no existing snapshot and no new samples", ErrEmptyMerge)
		}
		return Snapshot{}, fmt.Errorf("%w: no new samples to merge", ErrEmptyMerge)
	}

	if err := checkWellFormed(incoming); err != nil {
		return Snapshot{}, err
	}

	merged := make(map[string]Sample, existing.Len()+len(incoming))
	for _, sample := range existing.Samples() {
		merged[sample.ID] = sample
	}
	// The new set is applied after the existing set; later entries overwrite
	// earlier ones, including duplicates within incoming itself.
	for _, sample := range incoming {
		merged[sample.ID] = sample
	}

	samples := make([]Sample, 0, len(merged))
	for _, sample := range merged {
		samples = append(samples, sample)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })
	return Snapshot{samples: samples}, nil
}

func checkWellFormed(incoming []Sample) error {
	var bad []string
	for _, sample := range incoming {
		switch {
		case strings.TrimSpace(sample.ID) == "":
			bad = append(bad, "(blank id)")
		case strings.TrimSpace(sample.ImageRef) == "":
			bad = append(bad, sample.ID+" (missing image)")
		case strings.TrimSpace(sample.MaskRef) == "":
			bad = append(bad, sample.ID+" (missing mask)")
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s", ErrMalformedSample, SummarizeIDs(bad, 10))
	}
	return nil
}
