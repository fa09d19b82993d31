// Package split partitions a dataset snapshot into train/validation/test
// subsets deterministically.
//
// The assignment is a pure function of (snapshot composition, seed, ratios):
// sample IDs are sorted lexicographically to erase discovery order, shuffled
// with a generator seeded by the caller, and sliced into three contiguous
// ranges. The CI pipeline re-runs the split inside a fresh container on every
// run; any nondeterminism here would leak samples between train and test
// across runs and silently invalidate the quality-gate comparison.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"metergate/internal/dataset"
)

var (
	// ErrInsufficientData is returned when the snapshot cannot form three
	// non-empty subsets.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidRatio is returned when ratios are negative or do not sum to 1.
	ErrInvalidRatio = errors.New("invalid ratio")
)

const ratioTolerance = 1e-6

// Subset names one of the three partitions.
type Subset string

const (
	Train      Subset = "train"
	Validation Subset = "val"
	Test       Subset = "test"
)

// Assignment maps every sample ID in the snapshot to exactly one subset.
type Assignment struct {
	Seed   int64
	Train  []string
	Val    []string
	Test   []string
	subset map[string]Subset
}

// Subset returns the partition the given sample landed in.
func (a Assignment) Subset(id string) (Subset, bool) {
	s, ok := a.subset[id]
	return s, ok
}

// Sizes returns the train, val, and test sizes.
func (a Assignment) Sizes() (int, int, int) {
	return len(a.Train), len(a.Val), len(a.Test)
}

// Assign partitions the snapshot. Ratios are train, val, test and must sum to
// 1.0 within 1e-6. Train and val sizes round down; test takes the remainder.
//
// For identical (composition, seed, ratios) the output is byte-for-byte
// identical across processes and machines: rand.Shuffle over a sorted ID list
// with a fixed-seed source is specified by the math/rand contract and does
// not vary by platform.
func Assign(snapshot dataset.Snapshot, seed int64, ratios [3]float64) (Assignment, error) {
	if err := checkRatios(ratios); err != nil {
		return Assignment{}, err
	}
	if snapshot.Len() < 3 {
		return Assignment{}, fmt.Errorf("%w: %d samples cannot form three non-empty splits", ErrInsufficientData, snapshot.Len())
	}

	ids := snapshot.IDs()
	sort.Strings(ids)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	total := len(ids)
	trainEnd := int(float64(total) * ratios[0])
	valEnd := trainEnd + int(float64(total)*ratios[1])
	// Ratios near zero can still floor a subset to nothing; every subset must
	// hold at least one sample for the metric comparison to mean anything.
	if trainEnd == 0 || valEnd == trainEnd || valEnd == total {
		return Assignment{}, fmt.Errorf("%w: ratios %v leave an empty subset for %d samples", ErrInsufficientData, ratios, total)
	}

	assignment := Assignment{
		Seed:   seed,
		Train:  append([]string(nil), ids[:trainEnd]...),
		Val:    append([]string(nil), ids[trainEnd:valEnd]...),
		Test:   append([]string(nil), ids[valEnd:]...),
		subset: make(map[string]Subset, total),
	}
	for _, id := range assignment.Train {
		assignment.subset[id] = Train
	}
	for _, id := range assignment.Val {
		assignment.subset[id] = Validation
	}
	for _, id := range assignment.Test {
		assignment.subset[id] = Test
	}
	return assignment, nil
}

func checkRatios(ratios [3]float64) error {
	for _, r := range ratios {
		if r < 0 {
			return fmt.Errorf("%w: negative component in %v", ErrInvalidRatio, ratios)
		}
	}
	sum := ratios[0] + ratios[1] + ratios[2]
	if math.Abs(sum-1.0) > ratioTolerance {
		return fmt.Errorf("%w: ratios %v sum to %.6f, want 1.0", ErrInvalidRatio, ratios, sum)
	}
	return nil
}

// DefaultRatios is the standard 80/10/10 partition.
var DefaultRatios = [3]float64{0.8, 0.1, 0.1}
