package abruptness

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"climedge/pkg/dataset"
)

// MaxTimeGradient reduces the physically weighted gradient to a per-column
// map of the largest absolute time-gradient anomaly among edge columns:
// max over time of |dT/Norm - column time mean|, multiplied by the
// column-wise maximum of the edge mask. NaN columns map to 0.
func MaxTimeGradient(g *dataset.GradientField, edges *dataset.EdgeMask) []float64 {
	nt, nlat, nlon := g.Grid.Shape()
	nCols := nlat * nlon
	out := make([]float64, nCols)

	tgrad := make([]float64, nt)
	for col := 0; col < nCols; col++ {
		for t := 0; t < nt; t++ {
			tgrad[t] = g.DT[t*nCols+col] / g.Norm[t*nCols+col]
		}
		mean := stat.Mean(tgrad, nil)

		hasEdge := false
		for t := 0; t < nt; t++ {
			if edges.Set[t*nCols+col] {
				hasEdge = true
				break
			}
		}
		if !hasEdge {
			continue
		}

		max := 0.0
		for t := 0; t < nt; t++ {
			if v := math.Abs(tgrad[t] - mean); v > max {
				max = v
			}
		}
		if math.IsNaN(max) {
			max = 0
		}
		out[col] = max
	}
	return out
}

// YearsOfMaxAbruptness maps every column to the year of its most abrupt
// transition: the time step whose 3D score equals the column's positive
// projected maximum. Columns without a positive maximum map to 0; should
// several time steps tie, their years accumulate (preserved quirk of the
// reference reduction).
func YearsOfMaxAbruptness(mask *dataset.EdgeMask, ab *dataset.AbruptnessField, years []float64) []float64 {
	nt, nlat, nlon := mask.Grid.Shape()
	nCols := nlat * nlon
	out := make([]float64, nCols)

	for col := 0; col < nCols; col++ {
		peak := ab.Projection[col]
		if peak <= 0 {
			continue
		}
		for t := 0; t < nt; t++ {
			i := t*nCols + col
			if mask.Set[i] && ab.Scores[i] == peak {
				out[col] += years[t]
			}
		}
	}
	return out
}

// EventCount reduces the edge mask to the number of edge voxels per column.
func EventCount(mask *dataset.EdgeMask) []float64 {
	nt, nlat, nlon := mask.Grid.Shape()
	nCols := nlat * nlon
	out := make([]float64, nCols)
	for t := 0; t < nt; t++ {
		for col := 0; col < nCols; col++ {
			if mask.Set[t*nCols+col] {
				out[col]++
			}
		}
	}
	return out
}

// EventCountSeries reduces the edge mask to the number of edge voxels per
// time step.
func EventCountSeries(mask *dataset.EdgeMask) []int {
	nt, nlat, nlon := mask.Grid.Shape()
	nCols := nlat * nlon
	out := make([]int, nt)
	for t := 0; t < nt; t++ {
		for col := 0; col < nCols; col++ {
			if mask.Set[t*nCols+col] {
				out[t]++
			}
		}
	}
	return out
}
