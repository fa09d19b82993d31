package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ForegroundThreshold is the grayscale value above which a mask pixel counts
// as foreground. Matches the training pipeline, which thresholds masks at 127
// to absorb JPEG compression artifacts.
const ForegroundThreshold = 127

// MaskSummary captures what integrity validation needs from a decoded mask
// without retaining the pixel buffer.
type MaskSummary struct {
	Width  int
	Height int
	// DistinctValues holds the distinct grayscale values observed in the
	// mask, ascending, capped at DistinctValueCap.
	DistinctValues []uint8
	// ForegroundPixels counts pixels at or above ForegroundThreshold.
	ForegroundPixels int
}

// DistinctValueCap bounds how many distinct mask values a summary records.
// Two is legal; anything beyond the cap is already a violation, so exact
// counts past it carry no extra information.
const DistinctValueCap = 16

// Binary reports whether the mask holds exactly two distinct pixel values.
func (m MaskSummary) Binary() bool {
	return len(m.DistinctValues) == 2
}

// CoveragePercent returns the foreground share of the mask area in percent.
func (m MaskSummary) CoveragePercent() float64 {
	area := m.Width * m.Height
	if area == 0 {
		return 0
	}
	return float64(m.ForegroundPixels) / float64(area) * 100
}

// Sample is one image/mask pair. The ID is the filename stem shared by both
// files; image and mask may use different extensions.
type Sample struct {
	ID       string
	ImageRef string
	MaskRef  string
	Width    int
	Height   int
	Mask     MaskSummary
}

// Snapshot is an ordered, ID-unique collection of samples representing one
// complete dataset ready for splitting. Order is always ascending by ID so
// downstream digests and splits never depend on discovery order.
type Snapshot struct {
	samples []Sample
}

// NewSnapshot builds a snapshot from samples, sorting by ID. Duplicate IDs
// are a programming error at this layer; Merge is the only sanctioned way to
// combine sample sets, so NewSnapshot rejects them.
func NewSnapshot(samples []Sample) (Snapshot, error) {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return Snapshot{}, fmt.Errorf("duplicate sample id %q", sorted[i].ID)
		}
	}
	return Snapshot{samples: sorted}, nil
}

// Len returns the number of samples in the snapshot.
func (s Snapshot) Len() int {
	return len(s.samples)
}

// Samples returns the samples in ID order. Callers must not mutate the
// returned slice.
func (s Snapshot) Samples() []Sample {
	return s.samples
}

// IDs returns the sample IDs in ascending order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.samples))
	for i, sample := range s.samples {
		ids[i] = sample.ID
	}
	return ids
}

// Lookup returns the sample with the given ID.
func (s Snapshot) Lookup(id string) (Sample, bool) {
	i := sort.Search(len(s.samples), func(i int) bool { return s.samples[i].ID >= id })
	if i < len(s.samples) && s.samples[i].ID == id {
		return s.samples[i], true
	}
	return Sample{}, false
}

// Digest returns a stable hex digest of the snapshot composition: the sorted
// sample IDs with their image and mask references. Two snapshots with the
// same digest were built from the same sample set, which is what makes a
// run-over-run metric comparison auditable.
func (s Snapshot) Digest() string {
	h := sha256.New()
	for _, sample := range s.samples {
		fmt.Fprintf(h, "%s\x00%s\x00%s\n", sample.ID, sample.ImageRef, sample.MaskRef)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SummarizeIDs renders up to limit IDs for error messages, eliding the rest.
func SummarizeIDs(ids []string, limit int) string {
	if limit <= 0 || len(ids) <= limit {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s, and %d more", strings.Join(ids[:limit], ", "), len(ids)-limit)
}
