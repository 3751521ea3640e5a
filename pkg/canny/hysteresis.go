package canny

import "climedge/pkg/dataset"

// DoubleThreshold grows the final edge mask by dual-threshold hysteresis.
//
// The gradient field carries the physically weighted magnitudes; since its
// normalization channel holds 1/|g|, a voxel exceeds a magnitude threshold x
// exactly when Norm*x < 1. Strong voxels are candidates whose magnitude
// exceeds upper; weak voxels exceed lower. The output contains every weak
// voxel connected to a strong voxel through the full 26-neighborhood,
// transitively.
func DoubleThreshold(g *dataset.GradientField, candidates *dataset.EdgeMask, lower, upper float64) *dataset.EdgeMask {
	grid := g.Grid
	nt, nlat, nlon := grid.Shape()

	weak := make([]bool, len(g.Norm))
	out := dataset.NewEdgeMask(grid)
	var queue []int

	for i, cand := range candidates.Set {
		if !cand {
			continue
		}
		if g.Norm[i]*lower < 1 {
			weak[i] = true
		}
		if g.Norm[i]*upper < 1 {
			out.Set[i] = true
			queue = append(queue, i)
		}
	}

	// Flood fill from the strong seeds across weak voxels.
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		t := i / (nlat * nlon)
		j := (i / nlon) % nlat
		k := i % nlon

		for dt := -1; dt <= 1; dt++ {
			for dj := -1; dj <= 1; dj++ {
				for dk := -1; dk <= 1; dk++ {
					if dt == 0 && dj == 0 && dk == 0 {
						continue
					}
					tt, jj, kk := t+dt, j+dj, k+dk
					if tt < 0 || tt >= nt || jj < 0 || jj >= nlat {
						continue
					}
					if kk < 0 || kk >= nlon {
						if !grid.PeriodicLon {
							continue
						}
						kk = ((kk % nlon) + nlon) % nlon
					}
					n := (tt*nlat+jj)*nlon + kk
					if weak[n] && !out.Set[n] {
						out.Set[n] = true
						queue = append(queue, n)
					}
				}
			}
		}
	}
	return out
}

// ApplyTimeMargin clears the first and last margin time steps of the mask,
// suppressing artifacts at the series boundary.
func ApplyTimeMargin(mask *dataset.EdgeMask, margin int) {
	nt, nlat, nlon := mask.Grid.Shape()
	if margin <= 0 {
		return
	}
	plane := nlat * nlon
	for t := 0; t < nt; t++ {
		if t >= margin && t < nt-margin {
			continue
		}
		for i := t * plane; i < (t+1)*plane; i++ {
			mask.Set[i] = false
		}
	}
}

// ApplyFieldMask clears mask voxels that are invalid in the input field.
func ApplyFieldMask(mask *dataset.EdgeMask, f *dataset.Field) {
	if f.Mask == nil {
		return
	}
	for i, invalid := range f.Mask {
		if invalid {
			mask.Set[i] = false
		}
	}
}
