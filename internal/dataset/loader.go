package dataset

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDir materializes samples from a directory holding an images/ and a
// masks/ subdirectory. Images and masks pair by filename stem; extensions may
// differ (.jpg image with a .png mask is common). Only .jpg and .png files
// are considered.
//
// Every stem must appear on both sides. Unpaired files are reported together
// as one ErrMalformedSample so a contributor sees the whole problem at once.
func LoadDir(root string) ([]Sample, error) {
	imageDir := filepath.Join(root, "images")
	maskDir := filepath.Join(root, "masks")

	imagesByStem, err := indexDir(imageDir)
	if err != nil {
		return nil, err
	}
	masksByStem, err := indexDir(maskDir)
	if err != nil {
		return nil, err
	}

	var unpaired []string
	for stem := range imagesByStem {
		if _, ok := masksByStem[stem]; !ok {
			unpaired = append(unpaired, stem+" (missing mask)")
		}
	}
	for stem := range masksByStem {
		if _, ok := imagesByStem[stem]; !ok {
			unpaired = append(unpaired, stem+" (missing image)")
		}
	}
	if len(unpaired) > 0 {
		sort.Strings(unpaired)
		return nil, fmt.Errorf("%w: %s", ErrMalformedSample, SummarizeIDs(unpaired, 10))
	}

	stems := make([]string, 0, len(imagesByStem))
	for stem := range imagesByStem {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	samples := make([]Sample, 0, len(stems))
	for _, stem := range stems {
		imagePath := filepath.Join(imageDir, imagesByStem[stem])
		maskPath := filepath.Join(maskDir, masksByStem[stem])

		width, height, err := decodeDimensions(imagePath)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", stem, err)
		}
		summary, err := decodeMask(maskPath)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", stem, err)
		}

		samples = append(samples, Sample{
			ID:       stem,
			ImageRef: imagePath,
			MaskRef:  maskPath,
			Width:    width,
			Height:   height,
			Mask:     summary,
		})
	}
	return samples, nil
}

func indexDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sample directory: %w", err)
	}
	byStem := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".jpg" && ext != ".png" {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		// Same stem with both extensions: keep the lexicographically first
		// for a stable pick; the duplicate is almost certainly a mistake the
		// validator's dimension checks will surface.
		if existing, ok := byStem[stem]; ok && existing <= name {
			continue
		}
		byStem[stem] = name
	}
	return byStem, nil
}

func decodeDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image %s: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, nil
}

func decodeMask(path string) (MaskSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return MaskSummary{}, fmt.Errorf("open mask: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return MaskSummary{}, fmt.Errorf("decode mask %s: %w", filepath.Base(path), err)
	}

	bounds := img.Bounds()
	summary := MaskSummary{Width: bounds.Dx(), Height: bounds.Dy()}

	var distinct [256]bool
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			distinct[gray] = true
			if gray >= ForegroundThreshold {
				summary.ForegroundPixels++
			}
		}
	}
	for value := 0; value < len(distinct); value++ {
		if !distinct[value] {
			continue
		}
		if len(summary.DistinctValues) == DistinctValueCap {
			break
		}
		summary.DistinctValues = append(summary.DistinctValues, uint8(value))
	}
	return summary, nil
}
