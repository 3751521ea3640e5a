package filters

import (
	"math"
	"testing"

	"climedge/pkg/dataset"
)

// TestGaussianConstantField verifies that smoothing preserves a constant
// field exactly: the kernels are normalized and the boundaries reflective
func TestGaussianConstantField(t *testing.T) {
	grid := testGrid(12, 6, 6, false)
	f := dataset.NewField(grid)
	for i := range f.Data {
		f.Data[i] = -2.25
	}

	out := Gaussian(f, 2, 2*grid.LatStep(), 2*grid.LonStep())

	for i, v := range out.Data {
		if math.Abs(v-(-2.25)) > 1e-9 {
			t.Fatalf("Expected constant -2.25 at %d, got %g", i, v)
		}
	}
}

// TestGaussianDoesNotModifyInput verifies that smoothing returns a fresh
// field and leaves the input untouched
func TestGaussianDoesNotModifyInput(t *testing.T) {
	grid := testGrid(8, 4, 4, false)
	f := dataset.NewField(grid)
	for i := range f.Data {
		f.Data[i] = float64(i % 7)
	}
	orig := append([]float64(nil), f.Data...)

	out := Gaussian(f, 2, grid.LatStep(), grid.LonStep())

	if &out.Data[0] == &f.Data[0] {
		t.Fatalf("Expected a fresh output buffer")
	}
	for i := range orig {
		if f.Data[i] != orig[i] {
			t.Fatalf("Input modified at %d: %g became %g", i, orig[i], f.Data[i])
		}
	}
}

// TestGaussianMaskedCellsDoNotLeak verifies the normalized convolution: a
// wild value hidden behind the mask must not contaminate its neighbors
func TestGaussianMaskedCellsDoNotLeak(t *testing.T) {
	grid := testGrid(8, 6, 6, false)
	f := dataset.NewField(grid)
	f.Mask = make([]bool, len(f.Data))
	for i := range f.Data {
		f.Data[i] = 2
	}
	hole := f.Index(4, 3, 3)
	f.Data[hole] = 1e9
	f.Mask[hole] = true

	out := Gaussian(f, 2, 2*grid.LatStep(), 2*grid.LonStep())

	for i, v := range out.Data {
		if i == hole {
			continue
		}
		if math.Abs(v-2) > 1e-9 {
			t.Fatalf("Masked value leaked into cell %d: got %g", i, v)
		}
	}
	if out.Mask == nil || !out.Mask[hole] {
		t.Errorf("Expected the mask to be preserved on the output")
	}
}

// TestGaussianZeroSigma verifies that non-positive sigmas skip the
// corresponding axis entirely
func TestGaussianZeroSigma(t *testing.T) {
	grid := testGrid(6, 4, 4, false)
	f := dataset.NewField(grid)
	for i := range f.Data {
		f.Data[i] = float64(i)
	}

	out := Gaussian(f, 0, 0, 0)

	for i := range f.Data {
		if out.Data[i] != f.Data[i] {
			t.Fatalf("Expected unchanged data at %d, got %g", i, out.Data[i])
		}
	}
}
