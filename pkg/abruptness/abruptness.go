// Package abruptness quantifies the discontinuity magnitude at detected
// edge voxels. For every edge voxel the time series of its grid column is
// split into a window before and after the candidate transition, a linear
// trend is fitted to each side, and the jump between the two regression
// intercepts is scored against the mean in-window variability.
package abruptness

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"

	"climedge/pkg/dataset"
)

// infiniteScore marks a discontinuity between two zero-variance windows
// with unequal means. Together with the display clamp this makes such
// voxels vanish from the projection; the combined behavior is intentional.
const infiniteScore = 9e99

// Params configures the windowed dual-regression estimator.
type Params struct {
	// CutoffLength is the number of samples excluded on each side of a
	// candidate transition before the regression windows begin.
	CutoffLength int

	// ChunkMaxLength caps the window length on each side, keeping the
	// samples nearest to the transition.
	ChunkMaxLength int

	// ChunkMinLength is the minimum usable window; voxels whose windows
	// fall short on either side score 0.
	ChunkMinLength int

	// Clamp zeroes projection values above this bound (and NaN) so
	// degenerate scores do not show on maps.
	Clamp float64
}

// chunk is one regression window: recentered time coordinates, values, the
// edge-mask samples covering the same span, and the invalid-cell flags of
// the input field (nil when the field carries no mask).
type chunk struct {
	years   []float64
	values  []float64
	edges   []bool
	invalid []bool
}

// Measure computes the per-voxel discontinuity score field and its
// column-wise maximum projection.
//
// years is the physical time coordinate per time step and data the original
// (unsmoothed) target field; its masked cells are excluded from the
// regression windows. Columns are processed in parallel; voxels
// closer than CutoffLength to a time boundary, and voxels whose windows end
// up shorter than ChunkMinLength after trimming, score 0.
func Measure(mask *dataset.EdgeMask, years []float64, data *dataset.Field, p Params) *dataset.AbruptnessField {
	grid := mask.Grid
	nt, nlat, nlon := grid.Shape()
	out := &dataset.AbruptnessField{
		Grid:       grid,
		Scores:     make([]float64, nt*nlat*nlon),
		Projection: make([]float64, nlat*nlon),
	}

	nCols := nlat * nlon
	workers := runtime.NumCPU()
	if workers > nCols {
		workers = nCols
	}

	var wg sync.WaitGroup
	colsPerWorker := (nCols + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * colsPerWorker
		hi := lo + colsPerWorker
		if hi > nCols {
			hi = nCols
		}
		if lo >= hi {
			break
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			series := make([]float64, nt)
			colMask := make([]bool, nt)
			var invalid []bool
			if data.Mask != nil {
				invalid = make([]bool, nt)
			}
			for col := lo; col < hi; col++ {
				for t := 0; t < nt; t++ {
					series[t] = data.Data[t*nCols+col]
					colMask[t] = mask.Set[t*nCols+col]
					if invalid != nil {
						invalid[t] = data.Mask[t*nCols+col]
					}
				}
				for t := 0; t < nt; t++ {
					if colMask[t] {
						out.Scores[t*nCols+col] = scoreVoxel(series, colMask, invalid, years, t, p)
					}
				}
			}
		}(lo, hi)
	}
	wg.Wait()

	for col := 0; col < nCols; col++ {
		max := 0.0
		for t := 0; t < nt; t++ {
			if v := out.Scores[t*nCols+col]; v > max {
				max = v
			}
		}
		if math.IsNaN(max) || max > p.Clamp {
			max = 0
		}
		out.Projection[col] = max
	}
	return out
}

// scoreVoxel evaluates the discontinuity score of one candidate transition
// at time index idx of a column. The order of the trimming steps is load
// bearing: cutoff removal, max-length trim, neighboring-edge contamination
// trim, then the minimum-length check. Samples marked invalid never enter
// the fits or the spread.
func scoreVoxel(series []float64, colMask, invalid []bool, years []float64, idx int, p Params) float64 {
	nt := len(series)
	if idx-p.CutoffLength < 0 || idx+p.CutoffLength+1 > nt {
		return 0
	}

	before := chunk{
		years:  recenter(years[:idx-p.CutoffLength], years[idx]),
		values: series[:idx-p.CutoffLength],
		edges:  colMask[:idx-p.CutoffLength],
	}
	after := chunk{
		years:  recenter(years[idx+p.CutoffLength+1:], years[idx]),
		values: series[idx+p.CutoffLength+1:],
		edges:  colMask[idx+p.CutoffLength+1:],
	}
	if invalid != nil {
		before.invalid = invalid[:idx-p.CutoffLength]
		after.invalid = invalid[idx+p.CutoffLength+1:]
	}

	// Keep at most ChunkMaxLength samples nearest the transition.
	if len(before.values) > p.ChunkMaxLength {
		start := len(before.values) - p.ChunkMaxLength
		before = before.slice(start, len(before.values))
	}
	if len(after.values) > p.ChunkMaxLength {
		after = after.slice(0, p.ChunkMaxLength)
	}

	// Other transitions inside a window contaminate the fit: cut the
	// window so it starts (or ends) CutoffLength samples past the nearest
	// other edge.
	if last := lastEdge(before.edges); last >= 0 {
		cut := last + p.CutoffLength
		if cut >= len(before.values) {
			before = chunk{}
		} else {
			before = before.slice(cut, len(before.values))
			before.edges = nil
		}
	}
	if first := firstEdge(after.edges); first >= 0 {
		cut := first - p.CutoffLength
		if cut < 0 {
			after = chunk{}
		} else {
			after = after.slice(0, cut)
			after.edges = nil
		}
	}

	beforeYears, beforeValues := before.validSamples()
	afterYears, afterValues := after.validSamples()

	if len(beforeValues) < p.ChunkMinLength || len(afterValues) < p.ChunkMinLength {
		return 0
	}

	interceptBefore, _ := stat.LinearRegression(beforeYears, beforeValues, nil, false)
	interceptAfter, _ := stat.LinearRegression(afterYears, afterValues, nil, false)

	meanStd := (stat.PopStdDev(beforeValues, nil) + stat.PopStdDev(afterValues, nil)) / 2
	if meanStd == 0 {
		if stat.Mean(beforeValues, nil) == stat.Mean(afterValues, nil) {
			return 0
		}
		return infiniteScore
	}
	return math.Abs(interceptBefore-interceptAfter) / meanStd
}

// slice narrows a chunk to the half-open sample range [lo, hi).
func (c chunk) slice(lo, hi int) chunk {
	out := chunk{years: c.years[lo:hi], values: c.values[lo:hi]}
	if c.edges != nil {
		out.edges = c.edges[lo:hi]
	}
	if c.invalid != nil {
		out.invalid = c.invalid[lo:hi]
	}
	return out
}

// validSamples strips invalid cells out of the window, keeping years and
// values aligned.
func (c chunk) validSamples() (years, values []float64) {
	if c.invalid == nil {
		return c.years, c.values
	}
	years = make([]float64, 0, len(c.values))
	values = make([]float64, 0, len(c.values))
	for i := range c.values {
		if c.invalid[i] {
			continue
		}
		years = append(years, c.years[i])
		values = append(values, c.values[i])
	}
	return years, values
}

func recenter(years []float64, origin float64) []float64 {
	out := make([]float64, len(years))
	for i, y := range years {
		out[i] = y - origin
	}
	return out
}

func lastEdge(mask []bool) int {
	for i := len(mask) - 1; i >= 0; i-- {
		if mask[i] {
			return i
		}
	}
	return -1
}

func firstEdge(mask []bool) int {
	for i, set := range mask {
		if set {
			return i
		}
	}
	return -1
}
