// Package visualization renders 2D summary maps of the detection results
// as grayscale images for quick inspection without a plotting stack.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

// RenderMap converts an nlat x nlon map into a 16-bit grayscale image,
// normalized between the finite minimum and maximum of the data. Latitude
// rows are flipped so the first row of values (southernmost) ends up at the
// bottom of the image. NaN cells render black.
func RenderMap(values []float64, nlat, nlon int) image.Image {
	min := math.Inf(1)
	max := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	img := image.NewGray16(image.Rect(0, 0, nlon, nlat))
	scale := max - min
	for j := 0; j < nlat; j++ {
		for k := 0; k < nlon; k++ {
			v := values[j*nlon+k]
			var level float64
			if !math.IsNaN(v) && scale > 0 {
				level = (v - min) / scale
			}
			img.SetGray16(k, nlat-1-j, color.Gray16{Y: uint16(level * 65535.0)})
		}
	}
	return img
}

// SaveMapPNG renders a map and writes it as a PNG file, creating the
// directory if needed.
func SaveMapPNG(path string, values []float64, nlat, nlon int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create map directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create map file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, RenderMap(values, nlat, nlon)); err != nil {
		return fmt.Errorf("failed to encode map image: %w", err)
	}
	return nil
}
