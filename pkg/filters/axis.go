// Package filters implements the smoothing and gradient stages of the
// detection pipeline: a mask-aware separable Gaussian filter, a taper
// pre-pass that decays data to zero near mask boundaries, and the weighted
// 3D Sobel gradient operator.
package filters

import (
	"runtime"
	"sync"
)

// Axis identifies one of the three lattice axes.
type Axis int

const (
	AxisTime Axis = iota
	AxisLat
	AxisLon
)

// boundary selects the extension used past the ends of a line.
type boundary int

const (
	reflect boundary = iota
	wrap
)

// lineAt reads the sample at position i of a line, extending past the ends
// according to the boundary mode.
func lineAt(line []float64, i int, b boundary) float64 {
	n := len(line)
	switch {
	case i >= 0 && i < n:
		return line[i]
	case b == wrap:
		return line[((i%n)+n)%n]
	default:
		// Reflect about the edge samples: f(-1) == f(0), f(n) == f(n-1).
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - 1 - i
		}
		if i < 0 {
			i = 0
		}
		return line[i]
	}
}

// applyAxis runs op over every 1D line of data along the given axis of a
// lattice with dims (nt, nlat, nlon). op receives the gathered line and a
// scratch output buffer of equal length; the output is scattered back into
// data. Lines are processed in parallel across all CPU cores.
func applyAxis(data []float64, nt, nlat, nlon int, axis Axis, op func(in, out []float64)) {
	var length, stride, nLines int
	switch axis {
	case AxisTime:
		length, stride = nt, nlat*nlon
		nLines = nlat * nlon
	case AxisLat:
		length, stride = nlat, nlon
		nLines = nt * nlon
	default:
		length, stride = nlon, 1
		nLines = nt * nlat
	}

	// lineStart returns the flat offset of the first sample of line l.
	lineStart := func(l int) int {
		switch axis {
		case AxisTime:
			return l
		case AxisLat:
			t := l / nlon
			k := l % nlon
			return t*nlat*nlon + k
		default:
			return l * nlon
		}
	}

	workers := runtime.NumCPU()
	if workers > nLines {
		workers = nLines
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	chunk := (nLines + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > nLines {
			hi = nLines
		}
		if lo >= hi {
			break
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			in := make([]float64, length)
			out := make([]float64, length)
			for l := lo; l < hi; l++ {
				base := lineStart(l)
				for i := 0; i < length; i++ {
					in[i] = data[base+i*stride]
				}
				op(in, out)
				for i := 0; i < length; i++ {
					data[base+i*stride] = out[i]
				}
			}
		}(lo, hi)
	}
	wg.Wait()
}

// convolveLine writes the convolution of in with the symmetric kernel into
// out. The kernel has radius (len(kernel)-1)/2 and kernel[r] is the center
// tap.
func convolveLine(in, out, kernel []float64, b boundary) {
	r := (len(kernel) - 1) / 2
	for i := range in {
		acc := 0.0
		for o := -r; o <= r; o++ {
			acc += kernel[o+r] * lineAt(in, i+o, b)
		}
		out[i] = acc
	}
}
