package filters

import (
	"math"
	"testing"

	"climedge/pkg/dataset"
)

// TestTaperMaskedArea verifies the two extrapolation phases along a single
// line: the margin carries the boundary value in at full strength, the
// blend decays it linearly to zero, and cells beyond stay zero
func TestTaperMaskedArea(t *testing.T) {
	grid := testGrid(1, 1, 10, false)
	f := dataset.NewField(grid)
	f.Mask = make([]bool, len(f.Data))
	for k := 0; k < 10; k++ {
		if k < 5 {
			f.Data[k] = 4
		} else {
			f.Data[k] = 123 // overwritten by the taper
			f.Mask[k] = true
		}
	}

	TaperMaskedArea(f, [3]int{0, 0, 2}, 2)

	// Margin steps fill k=5,6 at full strength; the two blend steps write
	// factors 0.5 and 0 into k=7,8; k=9 is never reached.
	expected := []float64{4, 4, 4, 4, 4, 4, 4, 2, 0, 0}
	for k, want := range expected {
		if math.Abs(f.Data[k]-want) > 1e-12 {
			t.Errorf("Expected data[%d]=%g, got %g", k, want, f.Data[k])
		}
	}

	// The mask itself is untouched.
	for k := 5; k < 10; k++ {
		if !f.Mask[k] {
			t.Errorf("Expected mask[%d] preserved", k)
		}
	}
}

// TestTaperMaskedAreaNoMask verifies that unmasked fields pass through
// unchanged
func TestTaperMaskedAreaNoMask(t *testing.T) {
	grid := testGrid(2, 2, 2, false)
	f := dataset.NewField(grid)
	for i := range f.Data {
		f.Data[i] = float64(i)
	}
	orig := append([]float64(nil), f.Data...)

	TaperMaskedArea(f, [3]int{0, 5, 5}, 50)

	for i := range orig {
		if f.Data[i] != orig[i] {
			t.Fatalf("Expected unchanged data at %d, got %g", i, f.Data[i])
		}
	}
}

// TestTaperMaskedAreaAxisRestriction verifies that extrapolation only runs
// along axes with a positive margin
func TestTaperMaskedAreaAxisRestriction(t *testing.T) {
	grid := testGrid(1, 3, 3, false)
	f := dataset.NewField(grid)
	f.Mask = make([]bool, len(f.Data))

	// Valid column at j=0, masked elsewhere. With a lat-only margin the
	// masked rows fill from above; lon neighbors are never probed.
	for k := 0; k < 3; k++ {
		f.Data[f.Index(0, 0, k)] = float64(k + 1)
	}
	for j := 1; j < 3; j++ {
		for k := 0; k < 3; k++ {
			f.Mask[f.Index(0, j, k)] = true
		}
	}

	TaperMaskedArea(f, [3]int{0, 2, 0}, 0)

	for k := 0; k < 3; k++ {
		want := float64(k + 1)
		if got := f.At(0, 1, k); math.Abs(got-want) > 1e-12 {
			t.Errorf("Expected data[0,1,%d]=%g carried from the lat neighbor, got %g", k, want, got)
		}
		if got := f.At(0, 2, k); math.Abs(got-want) > 1e-12 {
			t.Errorf("Expected data[0,2,%d]=%g carried from the lat neighbor, got %g", k, want, got)
		}
	}
}
