// Package dataset defines the gridded space-time data model shared by the
// detection pipeline: the Grid lattice description, scalar Fields over it,
// and the 4-channel gradient fields produced by the Sobel operator.
//
// All 3D arrays are stored as flat float64 buffers in (time, lat, lon)
// row-major order, indexed (t*nlat + j)*nlon + k.
package dataset

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// KmPerDegree is the great-circle distance of one degree of latitude on a
// sphere with the Earth's mean radius (6371 km).
const KmPerDegree = 2.0 * math.Pi * 6371.0 / 360.0

// Grid describes an immutable 3D lattice over (time, lat, lon).
//
// The grid is supplied by the data-ingestion side and is read-only to the
// detection pipeline. Area holds the relative cell area per (lat, lon) cell,
// normalized so that its mean is 1; it weights every spatial statistic so
// that polar cells do not dominate.
type Grid struct {
	// Dates holds one timestamp per time step, in increasing order.
	Dates []time.Time

	// Lat and Lon hold the cell-center coordinates in degrees.
	Lat []float64
	Lon []float64

	// Area is the nlat x nlon relative cell-area weight matrix.
	Area *mat.Dense

	// PeriodicLon marks the longitude axis as wrapping around the globe.
	// Convolutions and finite differences wrap instead of reflecting.
	PeriodicLon bool
}

// NewGrid builds a Grid from coordinate arrays. The relative cell areas are
// proportional to cos(lat), normalized to mean 1.
func NewGrid(dates []time.Time, lat, lon []float64, periodicLon bool) *Grid {
	nlat := len(lat)
	nlon := len(lon)

	area := mat.NewDense(nlat, nlon, nil)
	total := 0.0
	for j := 0; j < nlat; j++ {
		w := math.Cos(lat[j] * math.Pi / 180.0)
		if w < 0 {
			w = 0
		}
		for k := 0; k < nlon; k++ {
			area.Set(j, k, w)
			total += w
		}
	}
	if total > 0 {
		area.Scale(float64(nlat*nlon)/total, area)
	}

	return &Grid{
		Dates:       dates,
		Lat:         lat,
		Lon:         lon,
		Area:        area,
		PeriodicLon: periodicLon,
	}
}

// Shape returns the lattice dimensions (time, lat, lon).
func (g *Grid) Shape() (nt, nlat, nlon int) {
	return len(g.Dates), len(g.Lat), len(g.Lon)
}

// Years returns the decimal year of every time step, used as the physical
// time coordinate by the gradient operator and abruptness estimator.
func (g *Grid) Years() []float64 {
	years := make([]float64, len(g.Dates))
	for i, d := range g.Dates {
		start := time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(d.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
		frac := float64(d.Sub(start)) / float64(end.Sub(start))
		years[i] = float64(d.Year()) + frac
	}
	return years
}

// TimeStep returns the mean spacing between consecutive time steps in years.
func (g *Grid) TimeStep() float64 {
	years := g.Years()
	if len(years) < 2 {
		return 1.0
	}
	return (years[len(years)-1] - years[0]) / float64(len(years)-1)
}

// LatStep returns the mean latitude spacing in km.
func (g *Grid) LatStep() float64 {
	if len(g.Lat) < 2 {
		return KmPerDegree
	}
	return math.Abs(g.Lat[len(g.Lat)-1]-g.Lat[0]) / float64(len(g.Lat)-1) * KmPerDegree
}

// LonStep returns the mean longitude spacing in km at the equator.
func (g *Grid) LonStep() float64 {
	if len(g.Lon) < 2 {
		return KmPerDegree
	}
	return math.Abs(g.Lon[len(g.Lon)-1]-g.Lon[0]) / float64(len(g.Lon)-1) * KmPerDegree
}

// Field is a scalar value per lattice cell, optionally paired with a
// validity mask of the same shape (true = missing/invalid). Masked cells are
// excluded from every statistic downstream.
type Field struct {
	Grid *Grid

	// Data holds the values in (time, lat, lon) row-major order.
	Data []float64

	// Mask marks invalid cells; nil when every cell is valid.
	Mask []bool
}

// NewField allocates a zero-valued unmasked field over grid.
func NewField(grid *Grid) *Field {
	nt, nlat, nlon := grid.Shape()
	return &Field{Grid: grid, Data: make([]float64, nt*nlat*nlon)}
}

// Clone returns a deep copy of the field, sharing the grid.
func (f *Field) Clone() *Field {
	out := &Field{Grid: f.Grid, Data: make([]float64, len(f.Data))}
	copy(out.Data, f.Data)
	if f.Mask != nil {
		out.Mask = make([]bool, len(f.Mask))
		copy(out.Mask, f.Mask)
	}
	return out
}

// Index converts (t, j, k) lattice coordinates into a flat buffer offset.
func (f *Field) Index(t, j, k int) int {
	return (t*len(f.Grid.Lat)+j)*len(f.Grid.Lon) + k
}

// At returns the value at (t, j, k).
func (f *Field) At(t, j, k int) float64 {
	return f.Data[f.Index(t, j, k)]
}

// Masked reports whether the cell at flat offset idx is invalid.
func (f *Field) Masked(idx int) bool {
	return f.Mask != nil && f.Mask[idx]
}

// GradientField is the 4-channel output of the Sobel gradient operator.
//
// Channels 0-2 hold the unit gradient direction along (time, lat, lon);
// channel 3 holds the reciprocal gradient magnitude 1/|g|, strictly positive
// everywhere. The pipeline relies on the identities
//
//	DT[i]/Norm[i]  = df/dt
//	1/Norm[i]      = |g|
type GradientField struct {
	Grid *Grid

	// DT, DLat, DLon are the unit direction components.
	DT, DLat, DLon []float64

	// Norm is the reciprocal gradient magnitude channel.
	Norm []float64
}

// NewGradientField allocates a zeroed gradient field over grid.
func NewGradientField(grid *Grid) *GradientField {
	nt, nlat, nlon := grid.Shape()
	n := nt * nlat * nlon
	return &GradientField{
		Grid: grid,
		DT:   make([]float64, n),
		DLat: make([]float64, n),
		DLon: make([]float64, n),
		Norm: make([]float64, n),
	}
}

// EdgeMask is a boolean field marking detected edge voxels.
type EdgeMask struct {
	Grid *Grid
	Set  []bool
}

// NewEdgeMask allocates an all-false mask over grid.
func NewEdgeMask(grid *Grid) *EdgeMask {
	nt, nlat, nlon := grid.Shape()
	return &EdgeMask{Grid: grid, Set: make([]bool, nt*nlat*nlon)}
}

// Count returns the number of set voxels.
func (m *EdgeMask) Count() int {
	n := 0
	for _, v := range m.Set {
		if v {
			n++
		}
	}
	return n
}

// At reports whether the voxel at (t, j, k) is an edge.
func (m *EdgeMask) At(t, j, k int) bool {
	return m.Set[(t*len(m.Grid.Lat)+j)*len(m.Grid.Lon)+k]
}

// AbruptnessField holds the per-voxel discontinuity scores and their
// column-wise maximum projection over time.
type AbruptnessField struct {
	Grid *Grid

	// Scores is the full 3D score field, 0 at non-edge voxels.
	Scores []float64

	// Projection is the nlat x nlon maximum over time, with NaN and
	// values above the display clamp replaced by 0.
	Projection []float64
}
