// Package canny implements the 3D edge-extraction kernels of the detection
// pipeline: directional non-maximum suppression (edge thinning) and
// dual-threshold hysteresis region growing. Both operate on owned flat
// buffers and are pure array-to-array transforms.
package canny

import (
	"math"

	"climedge/pkg/dataset"
)

// EdgeThinning performs 3D directional non-maximum suppression.
//
// The gradient field must be computed in pixel-space weighting so that the
// direction channels live in array-index space. A voxel survives when its
// gradient magnitude (1/Norm) is strictly greater than the magnitude
// interpolated trilinearly at one voxel step forward and backward along the
// gradient direction. Voxels whose samples fall outside the lattice are
// suppressed, as are voxels with a degenerate (zero) gradient.
func EdgeThinning(g *dataset.GradientField) *dataset.EdgeMask {
	grid := g.Grid
	nt, nlat, nlon := grid.Shape()
	mask := dataset.NewEdgeMask(grid)

	mag := make([]float64, len(g.Norm))
	for i := range g.Norm {
		mag[i] = 1 / g.Norm[i]
	}

	sample := func(t, j, k float64) (float64, bool) {
		return trilinear(mag, nt, nlat, nlon, t, j, k, grid.PeriodicLon)
	}

	for t := 0; t < nt; t++ {
		for j := 0; j < nlat; j++ {
			for k := 0; k < nlon; k++ {
				i := (t*nlat+j)*nlon + k
				dt, dj, dk := g.DT[i], g.DLat[i], g.DLon[i]
				if dt == 0 && dj == 0 && dk == 0 {
					continue
				}
				fwd, ok := sample(float64(t)+dt, float64(j)+dj, float64(k)+dk)
				if !ok {
					continue
				}
				bwd, ok := sample(float64(t)-dt, float64(j)-dj, float64(k)-dk)
				if !ok {
					continue
				}
				if mag[i] > fwd && mag[i] > bwd {
					mask.Set[i] = true
				}
			}
		}
	}
	return mask
}

// trilinear interpolates the flat (nt, nlat, nlon) buffer at fractional
// coordinates. An integer coordinate needs only its own lattice plane, so
// the last row along each axis stays samplable. Longitude wraps when
// periodic; any other out-of-range corner reports false.
func trilinear(data []float64, nt, nlat, nlon int, t, j, k float64, periodicLon bool) (float64, bool) {
	ti, tw, ok := corners(t, nt, false)
	if !ok {
		return 0, false
	}
	ji, jw, ok := corners(j, nlat, false)
	if !ok {
		return 0, false
	}
	ki, kw, ok := corners(k, nlon, periodicLon)
	if !ok {
		return 0, false
	}

	acc := 0.0
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for c := 0; c < 2; c++ {
				w := tw[a] * jw[b] * kw[c]
				if w == 0 {
					continue
				}
				acc += w * data[(ti[a]*nlat+ji[b])*nlon+ki[c]]
			}
		}
	}
	return acc, true
}

// corners resolves one axis of a sample point into its two interpolation
// indices and weights. The upper corner collapses onto the lower one when
// the coordinate is an exact lattice index.
func corners(x float64, n int, wraps bool) (idx [2]int, w [2]float64, ok bool) {
	lo := int(math.Floor(x))
	f := x - float64(lo)
	hi := lo + 1
	if f == 0 {
		hi = lo
	}
	if wraps {
		lo = ((lo % n) + n) % n
		hi = ((hi % n) + n) % n
	} else if lo < 0 || hi >= n {
		return idx, w, false
	}
	return [2]int{lo, hi}, [2]float64{1 - f, f}, true
}
