package filters

import "climedge/pkg/dataset"

// TaperMaskedArea prepares a masked field for convolution by writing a
// smooth decay into the masked region, preventing ringing at sharp mask
// boundaries.
//
// Values are extrapolated into the masked area by iterative neighbor
// averaging: for margin[a] steps along each axis a the boundary value is
// carried in at full strength, then over the next blend steps the carried
// value decays linearly to zero. Masked cells further in are set to zero.
// Valid cells and the mask itself are left untouched; extrapolation runs
// only along axes with a positive margin (all three when every margin is
// zero).
//
// The field is modified in place. Fields without a mask are a no-op.
func TaperMaskedArea(f *dataset.Field, margin [3]int, blend int) {
	if f.Mask == nil {
		return
	}
	grid := f.Grid
	nt, nlat, nlon := grid.Shape()

	maxMargin := 0
	enabled := [3]bool{}
	for a := 0; a < 3; a++ {
		if margin[a] > 0 {
			enabled[a] = true
			if margin[a] > maxMargin {
				maxMargin = margin[a]
			}
		}
	}
	if maxMargin == 0 && blend == 0 {
		return
	}
	if !enabled[0] && !enabled[1] && !enabled[2] {
		enabled = [3]bool{true, true, true}
	}

	reached := make([]bool, len(f.Data))
	for i := range f.Data {
		if f.Mask[i] {
			f.Data[i] = 0
		} else {
			reached[i] = true
		}
	}

	idx := func(t, j, k int) int { return (t*nlat+j)*nlon + k }

	// One dilation sweep: every unreached cell adjacent to a reached cell
	// along an active axis takes the mean of its reached neighbors, scaled
	// by factor. Returns how many cells were filled.
	sweep := func(active [3]bool, factor float64) int {
		type fill struct {
			at  int
			val float64
		}
		var fills []fill
		for t := 0; t < nt; t++ {
			for j := 0; j < nlat; j++ {
				for k := 0; k < nlon; k++ {
					at := idx(t, j, k)
					if reached[at] {
						continue
					}
					sum, n := 0.0, 0
					probe := func(tt, jj, kk int) {
						if tt < 0 || tt >= nt || jj < 0 || jj >= nlat {
							return
						}
						if kk < 0 || kk >= nlon {
							if !grid.PeriodicLon {
								return
							}
							kk = ((kk % nlon) + nlon) % nlon
						}
						if p := idx(tt, jj, kk); reached[p] {
							sum += f.Data[p]
							n++
						}
					}
					if active[0] {
						probe(t-1, j, k)
						probe(t+1, j, k)
					}
					if active[1] {
						probe(t, j-1, k)
						probe(t, j+1, k)
					}
					if active[2] {
						probe(t, j, k-1)
						probe(t, j, k+1)
					}
					if n > 0 {
						fills = append(fills, fill{at, factor * sum / float64(n)})
					}
				}
			}
		}
		for _, fl := range fills {
			f.Data[fl.at] = fl.val
			reached[fl.at] = true
		}
		return len(fills)
	}

	// Margin phase: carry boundary values in at full strength, each axis
	// for its own number of steps.
	for step := 1; step <= maxMargin; step++ {
		active := [3]bool{}
		any := false
		for a := 0; a < 3; a++ {
			if margin[a] >= step {
				active[a] = true
				any = true
			}
		}
		if !any {
			break
		}
		sweep(active, 1)
	}

	// Blend phase: linear decay to zero over blend further steps.
	for step := 1; step <= blend; step++ {
		factor := 1 - float64(step)/float64(blend)
		if sweep(enabled, factor) == 0 {
			break
		}
	}
}
