// Package testsupport provides shared fixtures for metergate tests: valid
// sample builders, on-disk image/mask writers, and ready-to-use configs.
package testsupport

import (
	"fmt"

	"metergate/internal/dataset"
)

// NewSample returns a structurally valid 512x512 sample with a binary mask
// and a comfortable foreground count.
func NewSample(id string) dataset.Sample {
	return dataset.Sample{
		ID:       id,
		ImageRef: fmt.Sprintf("images/%s.jpg", id),
		MaskRef:  fmt.Sprintf("masks/%s.png", id),
		Width:    512,
		Height:   512,
		Mask: dataset.MaskSummary{
			Width:            512,
			Height:           512,
			DistinctValues:   []uint8{0, 255},
			ForegroundPixels: 4096,
		},
	}
}

// NewSamples returns n valid samples with IDs id_1..id_n.
func NewSamples(n int) []dataset.Sample {
	samples := make([]dataset.Sample, 0, n)
	for i := 1; i <= n; i++ {
		samples = append(samples, NewSample(fmt.Sprintf("id_%d", i)))
	}
	return samples
}

// NewSnapshot builds a snapshot from valid samples, panicking on the
// impossible duplicate case so test setup stays terse.
func NewSnapshot(samples ...dataset.Sample) dataset.Snapshot {
	snapshot, err := dataset.NewSnapshot(samples)
	if err != nil {
		panic(err)
	}
	return snapshot
}
