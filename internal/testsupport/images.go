package testsupport

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// WriteImage writes a gray JPEG or PNG (by extension) of the given size.
func WriteImage(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	encode(t, path, img)
}

// WriteBinaryMask writes a PNG mask holding exactly {0, 255} with the
// requested number of foreground pixels, filled row-major from the origin.
func WriteBinaryMask(t *testing.T, path string, width, height, foreground int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := 0; i < foreground && i < len(img.Pix); i++ {
		img.Pix[i] = 255
	}
	encode(t, path, img)
}

// WriteMaskValues writes a PNG mask cycling through the provided grayscale
// values, for non-binary and single-value cases.
func WriteMaskValues(t *testing.T, path string, width, height int, values []uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = values[i%len(values)]
	}
	encode(t, path, img)
}

func encode(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("ensure directory for %s: %v", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer file.Close()

	switch filepath.Ext(path) {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 100})
	default:
		t.Fatalf("unsupported extension in %s", path)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}
