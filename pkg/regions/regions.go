// Package regions groups edge voxels into connected components under full
// 3D (26-) connectivity and filters out components below a minimum size.
package regions

import "climedge/pkg/dataset"

// Labeling is the result of connected-component labeling of an edge mask.
type Labeling struct {
	// Labels assigns a positive component label to every surviving edge
	// voxel and 0 elsewhere. Surviving components keep the label they were
	// assigned before size filtering; label values carry no meaning beyond
	// grouping.
	Labels []int

	// NumFeatures is the total number of components before size filtering.
	NumFeatures int

	// Kept lists the labels of components whose voxel count exceeds the
	// minimum size, in increasing order.
	Kept []int
}

// Label performs 26-connected component labeling of the mask. Components
// with a voxel count of minSize or fewer are zeroed out of the label field;
// larger ones survive with their original labels.
func Label(mask *dataset.EdgeMask, minSize int) *Labeling {
	grid := mask.Grid
	nt, nlat, nlon := grid.Shape()

	labels := make([]int, len(mask.Set))
	var sizes []int // sizes[l-1] is the voxel count of component l
	var queue []int

	next := 0
	for start, set := range mask.Set {
		if !set || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		size := 1
		queue = append(queue[:0], start)

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
						if mask.Set[n] && labels[n] == 0 {
							labels[n] = next
							size++
							queue = append(queue, n)
						}
					}
				}
			}
		}
		sizes = append(sizes, size)
	}

	out := &Labeling{Labels: labels, NumFeatures: next}
	keep := make([]bool, next+1)
	for l := 1; l <= next; l++ {
		if sizes[l-1] > minSize {
			keep[l] = true
			out.Kept = append(out.Kept, l)
		}
	}
	for i, l := range labels {
		if l != 0 && !keep[l] {
			labels[i] = 0
		}
	}
	return out
}

// MaxProjection reduces the label field to its column-wise maximum over
// time, for map display.
func (lb *Labeling) MaxProjection(grid *dataset.Grid) []float64 {
	nt, nlat, nlon := grid.Shape()
	out := make([]float64, nlat*nlon)
	for t := 0; t < nt; t++ {
		for c := 0; c < nlat*nlon; c++ {
			if v := float64(lb.Labels[t*nlat*nlon+c]); v > out[c] {
				out[c] = v
			}
		}
	}
	return out
}
