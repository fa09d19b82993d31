package dataset

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ValidateOptions configures the integrity checks.
type ValidateOptions struct {
	// ExpectedWidth/ExpectedHeight pin every sample to one resolution.
	// Ignored unless EnforceDimensions is set.
	ExpectedWidth     int
	ExpectedHeight    int
	EnforceDimensions bool
	// MinForegroundPixels rejects effectively-empty masks.
	MinForegroundPixels int
}

// ViolationKind classifies an integrity violation.
type ViolationKind string

const (
	// ViolationNonBinaryMask: the mask does not hold exactly two distinct
	// pixel values.
	ViolationNonBinaryMask ViolationKind = "non_binary_mask"
	// ViolationDimensionMismatch: image and mask resolutions differ.
	ViolationDimensionMismatch ViolationKind = "dimension_mismatch"
	// ViolationUnexpectedDimensions: the pair does not match the configured
	// resolution.
	ViolationUnexpectedDimensions ViolationKind = "unexpected_dimensions"
	// ViolationEmptyMask: foreground pixel count below the configured floor.
	ViolationEmptyMask ViolationKind = "empty_mask"
)

// Violation names one structural problem with one sample.
type Violation struct {
	SampleID string
	Kind     ViolationKind
	Detail   string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s: %s", v.SampleID, v.Kind, v.Detail)
}

// Statistics summarizes the snapshot when validation passes, mirroring the
// data-QA report humans review: the dominant resolution and the spread of
// mask foreground coverage.
type Statistics struct {
	SampleCount       int
	Resolution        string
	MedianCoveragePct float64
	StdDevCoveragePct float64
}

// Report lists every violation found in a snapshot, not just the first, so a
// contributor can fix a whole batch from one run.
type Report struct {
	Violations []Violation
	Statistics Statistics
}

// OK reports whether the snapshot is structurally sound for training.
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// SampleIDs returns the distinct IDs with at least one violation, ascending.
func (r Report) SampleIDs() []string {
	seen := make(map[string]struct{}, len(r.Violations))
	for _, v := range r.Violations {
		seen[v.SampleID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the structural invariants of a merged snapshot. It mutates
// nothing and always inspects every sample. An empty report guarantees the
// snapshot is sound for training; a non-empty report is a hard stop for the
// pipeline, never a prompt to skip the offending samples.
func Validate(snapshot Snapshot, opts ValidateOptions) Report {
	var report Report
	coverages := make([]float64, 0, snapshot.Len())

	for _, sample := range snapshot.Samples() {
		if !sample.Mask.Binary() {
			report.Violations = append(report.Violations, Violation{
				SampleID: sample.ID,
				Kind:     ViolationNonBinaryMask,
				Detail:   fmt.Sprintf("mask has %d distinct pixel values, want exactly 2", len(sample.Mask.DistinctValues)),
			})
		}
		if sample.Width != sample.Mask.Width || sample.Height != sample.Mask.Height {
			report.Violations = append(report.Violations, Violation{
				SampleID: sample.ID,
				Kind:     ViolationDimensionMismatch,
				Detail: fmt.Sprintf("image is %dx%d, mask is %dx%d",
					sample.Width, sample.Height, sample.Mask.Width, sample.Mask.Height),
			})
		}
		if opts.EnforceDimensions && (sample.Width != opts.ExpectedWidth || sample.Height != opts.ExpectedHeight) {
			report.Violations = append(report.Violations, Violation{
				SampleID: sample.ID,
				Kind:     ViolationUnexpectedDimensions,
				Detail: fmt.Sprintf("image is %dx%d, want %dx%d",
					sample.Width, sample.Height, opts.ExpectedWidth, opts.ExpectedHeight),
			})
		}
		if sample.Mask.ForegroundPixels < opts.MinForegroundPixels {
			report.Violations = append(report.Violations, Violation{
				SampleID: sample.ID,
				Kind:     ViolationEmptyMask,
				Detail: fmt.Sprintf("mask has %d foreground pixels, want at least %d",
					sample.Mask.ForegroundPixels, opts.MinForegroundPixels),
			})
		}
		coverages = append(coverages, sample.Mask.CoveragePercent())
	}

	report.Statistics = computeStatistics(snapshot, coverages)
	return report
}

func computeStatistics(snapshot Snapshot, coverages []float64) Statistics {
	stats := Statistics{SampleCount: snapshot.Len()}
	if snapshot.Len() == 0 {
		return stats
	}

	stats.Resolution = dominantResolution(snapshot)

	sort.Float64s(coverages)
	stats.MedianCoveragePct = stat.Quantile(0.5, stat.Empirical, coverages, nil)
	if len(coverages) > 1 {
		stats.StdDevCoveragePct = stat.StdDev(coverages, nil)
	}
	return stats
}

func dominantResolution(snapshot Snapshot) string {
	counts := make(map[string]int)
	for _, sample := range snapshot.Samples() {
		counts[fmt.Sprintf("%dx%d", sample.Width, sample.Height)]++
	}
	best, bestCount := "", 0
	for res, count := range counts {
		if count > bestCount || (count == bestCount && res < best) {
			best, bestCount = res, count
		}
	}
	if len(counts) > 1 {
		return best + " (mixed)"
	}
	return best
}
