package canny

import (
	"testing"

	"climedge/pkg/dataset"
)

// lineGradient builds a 1x1xN gradient field with the given magnitudes
// along the lon axis, plus an all-true candidate mask.
func lineGradient(mags []float64, periodic bool) (*dataset.GradientField, *dataset.EdgeMask) {
	grid := testGrid(1, 1, len(mags), periodic)
	g := dataset.NewGradientField(grid)
	cand := dataset.NewEdgeMask(grid)
	for i, m := range mags {
		g.Norm[i] = 1 / m
		cand.Set[i] = true
	}
	return g, cand
}

// TestDoubleThreshold verifies hysteresis growth: weak voxels join the mask
// only through a chain of weak neighbors reaching a strong voxel
func TestDoubleThreshold(t *testing.T) {
	mags := []float64{0.1, 3, 1, 0.5, 0.1, 0.1, 1, 0.1, 0.1, 0.1}
	g, cand := lineGradient(mags, false)

	out := DoubleThreshold(g, cand, 0.8, 2)

	// Index 1 is strong (3 > 2); index 2 is weak (1 > 0.8) and adjacent;
	// index 6 is weak but unreachable across the sub-threshold gap.
	if out.Count() != 2 {
		t.Fatalf("Expected 2 edge voxels, got %d", out.Count())
	}
	if !out.Set[1] || !out.Set[2] {
		t.Errorf("Expected voxels 1 and 2 in the mask, got %v", out.Set)
	}
	if out.Set[6] {
		t.Errorf("Expected disconnected weak voxel 6 to be excluded")
	}
}

// TestDoubleThresholdEqual verifies that equal thresholds reduce hysteresis
// to a plain magnitude threshold over the candidates
func TestDoubleThresholdEqual(t *testing.T) {
	mags := []float64{0.1, 3, 1, 0.5, 0.1, 0.1, 1, 0.1, 0.1, 0.1}
	g, cand := lineGradient(mags, false)

	out := DoubleThreshold(g, cand, 2, 2)

	for i, m := range mags {
		want := m > 2
		if out.Set[i] != want {
			t.Errorf("Expected voxel %d set=%v for magnitude %g, got %v", i, want, m, out.Set[i])
		}
	}
}

// TestDoubleThresholdCandidateGate verifies that non-candidate voxels never
// enter the mask regardless of magnitude
func TestDoubleThresholdCandidateGate(t *testing.T) {
	mags := []float64{0.1, 3, 1, 0.5, 0.1}
	g, cand := lineGradient(mags, false)
	for i := range cand.Set {
		cand.Set[i] = false
	}

	out := DoubleThreshold(g, cand, 0.8, 2)

	if out.Count() != 0 {
		t.Errorf("Expected empty mask without candidates, got %d voxels", out.Count())
	}
}

// TestDoubleThresholdUpperMonotonic verifies that raising the upper
// threshold never grows the mask
func TestDoubleThresholdUpperMonotonic(t *testing.T) {
	mags := []float64{0.1, 3, 1, 0.5, 0.1, 0.1, 1, 0.1, 0.1, 0.1}
	g, cand := lineGradient(mags, false)

	loose := DoubleThreshold(g, cand, 0.8, 2)
	tight := DoubleThreshold(g, cand, 0.8, 4)

	if tight.Count() > loose.Count() {
		t.Errorf("Mask grew from %d to %d when the upper threshold was raised",
			loose.Count(), tight.Count())
	}
	for i := range tight.Set {
		if tight.Set[i] && !loose.Set[i] {
			t.Errorf("Voxel %d appeared only under the tighter threshold", i)
		}
	}
	if tight.Count() != 0 {
		t.Errorf("Expected empty mask with upper threshold above every magnitude, got %d", tight.Count())
	}
}

// TestDoubleThresholdPeriodicLon verifies flood growth across the longitude
// seam on periodic grids
func TestDoubleThresholdPeriodicLon(t *testing.T) {
	mags := []float64{1, 0.1, 0.1, 0.1, 0.1, 3}
	g, cand := lineGradient(mags, true)

	out := DoubleThreshold(g, cand, 0.8, 2)

	// The strong voxel at k=5 reaches the weak voxel at k=0 by wrapping.
	if !out.Set[0] || !out.Set[5] {
		t.Errorf("Expected seam voxels 0 and 5 in the mask, got %v", out.Set)
	}
	if out.Count() != 2 {
		t.Errorf("Expected 2 edge voxels, got %d", out.Count())
	}
}

// TestTimeMarginAfterHysteresis verifies the margin ordering: a strong seed
// inside the time margin still ignites a weak chain, and the post-hoc
// margin only removes the voxels that actually sit inside it
func TestTimeMarginAfterHysteresis(t *testing.T) {
	grid := testGrid(8, 1, 1, false)
	g := dataset.NewGradientField(grid)
	cand := dataset.NewEdgeMask(grid)
	mags := []float64{0.1, 3, 1, 1, 1, 0.1, 0.1, 0.1}
	for i, m := range mags {
		g.Norm[i] = 1 / m
		cand.Set[i] = true
	}

	out := DoubleThreshold(g, cand, 0.8, 2)
	ApplyTimeMargin(out, 2)

	// The seed at t=1 falls inside the margin but its chain t=2..4 does
	// not; clearing the margin first would lose the whole chain.
	for ti := 0; ti < 8; ti++ {
		want := ti >= 2 && ti <= 4
		if out.At(ti, 0, 0) != want {
			t.Errorf("Expected mask at t=%d to be %v", ti, want)
		}
	}
}

// TestApplyTimeMargin verifies that the leading and trailing time planes
// are cleared
func TestApplyTimeMargin(t *testing.T) {
	grid := testGrid(6, 2, 2, false)
	mask := dataset.NewEdgeMask(grid)
	for i := range mask.Set {
		mask.Set[i] = true
	}

	ApplyTimeMargin(mask, 2)

	for ti := 0; ti < 6; ti++ {
		want := ti >= 2 && ti < 4
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				if mask.At(ti, j, k) != want {
					t.Errorf("Expected mask at t=%d to be %v", ti, want)
				}
			}
		}
	}
}

// TestApplyFieldMask verifies that voxels invalid in the input field are
// cleared from the edge mask
func TestApplyFieldMask(t *testing.T) {
	grid := testGrid(2, 2, 2, false)
	mask := dataset.NewEdgeMask(grid)
	for i := range mask.Set {
		mask.Set[i] = true
	}

	f := dataset.NewField(grid)
	f.Mask = make([]bool, len(f.Data))
	f.Mask[3] = true
	f.Mask[6] = true

	ApplyFieldMask(mask, f)

	if mask.Set[3] || mask.Set[6] {
		t.Errorf("Expected invalid voxels cleared from the mask")
	}
	if mask.Count() != 6 {
		t.Errorf("Expected 6 remaining voxels, got %d", mask.Count())
	}
}
