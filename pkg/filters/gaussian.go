package filters

import (
	"math"

	"climedge/pkg/dataset"
)

// gaussianKernel builds a normalized Gaussian kernel with the given sigma in
// pixel units, truncated at 4 sigma.
func gaussianKernel(sigma float64) []float64 {
	r := int(math.Ceil(4 * sigma))
	if r < 1 {
		return []float64{1}
	}
	kernel := make([]float64, 2*r+1)
	sum := 0.0
	for o := -r; o <= r; o++ {
		v := math.Exp(-0.5 * float64(o) * float64(o) / (sigma * sigma))
		kernel[o+r] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// Gaussian smooths a field with a separable Gaussian along each axis.
//
// The sigmas are physical scales (sigmaT in years, sigmaLat and sigmaLon in
// km) converted to pixel units through the grid spacings. Where the field
// carries a validity mask, normalized convolution is used: the masked data
// (holes filled with zero) and the validity indicator are smoothed with the
// same kernels and the ratio is taken, so masked cells do not leak into
// their neighbors. The mask itself is preserved on the output.
func Gaussian(f *dataset.Field, sigmaT, sigmaLat, sigmaLon float64) *dataset.Field {
	grid := f.Grid
	nt, nlat, nlon := grid.Shape()

	sigmas := [3]float64{
		sigmaT / grid.TimeStep(),
		sigmaLat / grid.LatStep(),
		sigmaLon / grid.LonStep(),
	}

	out := f.Clone()
	if f.Mask == nil {
		smoothInPlace(out.Data, nt, nlat, nlon, sigmas, grid.PeriodicLon)
		return out
	}

	// Normalized convolution: zero-fill the holes, smooth data and the
	// validity weight with identical kernels, then renormalize.
	weight := make([]float64, len(f.Data))
	for i := range f.Data {
		if f.Mask[i] {
			out.Data[i] = 0
		} else {
			weight[i] = 1
		}
	}
	smoothInPlace(out.Data, nt, nlat, nlon, sigmas, grid.PeriodicLon)
	smoothInPlace(weight, nt, nlat, nlon, sigmas, grid.PeriodicLon)

	for i := range out.Data {
		if weight[i] > 0 {
			out.Data[i] /= weight[i]
		} else {
			out.Data[i] = 0
		}
	}
	return out
}

func smoothInPlace(data []float64, nt, nlat, nlon int, sigmas [3]float64, periodicLon bool) {
	for axis := AxisTime; axis <= AxisLon; axis++ {
		if sigmas[axis] <= 0 {
			continue
		}
		kernel := gaussianKernel(sigmas[axis])
		if len(kernel) == 1 {
			continue
		}
		b := reflect
		if axis == AxisLon && periodicLon {
			b = wrap
		}
		applyAxis(data, nt, nlat, nlon, axis, func(in, out []float64) {
			convolveLine(in, out, kernel, b)
		})
	}
}
