package pipeline

import (
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"
)

// ImageSize reads the pixel dimensions of a rendered page image without
// decoding the full image. Used to backfill page dimensions when the OCR
// response omits them.
func ImageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
