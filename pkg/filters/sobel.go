package filters

import (
	"math"

	"climedge/pkg/dataset"
)

// degenerateNorm is the normalization-channel value assigned where the
// gradient magnitude is exactly zero. It keeps the channel strictly
// positive and finite while making the implied magnitude 1/norm vanish.
const degenerateNorm = math.MaxFloat64

var smooth121 = []float64{0.25, 0.5, 0.25}

// Sobel computes the physically weighted 4-channel gradient of a field.
//
// The deltas express the physical spacing between finite-difference taps:
// deltaT in years, deltaLat and deltaLon in km. Each component is a central
// difference along its axis, smoothed with a [1 2 1]/4 stencil across the
// two orthogonal axes, scaled so that the component measures the change in
// field value over one delta step. The four channels are the unit gradient
// direction and the reciprocal magnitude (see dataset.GradientField).
func Sobel(f *dataset.Field, deltaT, deltaLat, deltaLon float64) *dataset.GradientField {
	grid := f.Grid
	factors := [3]float64{
		deltaT / grid.TimeStep(),
		deltaLat / grid.LatStep(),
		deltaLon / grid.LonStep(),
	}
	return sobel(f, factors)
}

// SobelPixel computes the gradient in array-index space: every axis uses a
// tap spacing of one pixel. The normalization channel is formed exactly as
// in the physical mode. This variant only drives the directional thinning
// step, which operates on voxel indices.
func SobelPixel(f *dataset.Field) *dataset.GradientField {
	return sobel(f, [3]float64{1, 1, 1})
}

func sobel(f *dataset.Field, factors [3]float64) *dataset.GradientField {
	grid := f.Grid
	nt, nlat, nlon := grid.Shape()
	out := dataset.NewGradientField(grid)

	channels := [3][]float64{out.DT, out.DLat, out.DLon}
	for a := AxisTime; a <= AxisLon; a++ {
		comp := channels[a]
		copy(comp, f.Data)

		// Smoothing stencil across the two orthogonal axes.
		for o := AxisTime; o <= AxisLon; o++ {
			if o == a {
				continue
			}
			b := reflect
			if o == AxisLon && grid.PeriodicLon {
				b = wrap
			}
			applyAxis(comp, nt, nlat, nlon, o, func(in, outLine []float64) {
				convolveLine(in, outLine, smooth121, b)
			})
		}

		// Central difference along the target axis.
		b := reflect
		if a == AxisLon && grid.PeriodicLon {
			b = wrap
		}
		factor := factors[a]
		applyAxis(comp, nt, nlat, nlon, a, func(in, outLine []float64) {
			for i := range in {
				outLine[i] = (lineAt(in, i+1, b) - lineAt(in, i-1, b)) / 2 * factor
			}
		})
	}

	// Normalize: channels become the unit direction, Norm the reciprocal
	// magnitude. Zero-gradient cells get direction 0 and a finite ceiling
	// so the channel stays strictly positive.
	for i := range out.Norm {
		mag := math.Sqrt(out.DT[i]*out.DT[i] + out.DLat[i]*out.DLat[i] + out.DLon[i]*out.DLon[i])
		if mag == 0 || math.IsNaN(mag) {
			out.DT[i], out.DLat[i], out.DLon[i] = 0, 0, 0
			out.Norm[i] = degenerateNorm
			continue
		}
		out.DT[i] /= mag
		out.DLat[i] /= mag
		out.DLon[i] /= mag
		out.Norm[i] = 1 / mag
	}
	return out
}
