// Package calibration derives the relative time/space/magnitude scales of a
// control run, encoding how much spatial change is equivalent to a unit of
// temporal change under the control run's natural variability. The
// resulting record supplies the anisotropy factor (gamma) applied to all
// gradient computations on the target dataset, and the hysteresis
// thresholds derived from the control-run gradient magnitudes.
package calibration

import (
	"fmt"
	"math"

	"climedge/pkg/dataset"
	"climedge/pkg/filters"
	"climedge/pkg/stats"
)

// Quartile selects one of the five entries of a quartile sequence.
type Quartile int

const (
	QuartileMin Quartile = iota
	Quartile1st
	QuartileMedian
	Quartile3rd
	QuartileMax
)

var quartileNames = []string{"min", "1st", "median", "3rd", "max"}

// ParseQuartile maps the user-facing quartile names onto indices.
func ParseQuartile(name string) (Quartile, error) {
	for i, n := range quartileNames {
		if n == name {
			return Quartile(i), nil
		}
	}
	return 0, fmt.Errorf("calibration: unknown quartile %q", name)
}

func (q Quartile) String() string {
	if q < 0 || int(q) >= len(quartileNames) {
		return fmt.Sprintf("Quartile(%d)", int(q))
	}
	return quartileNames[q]
}

// ThresholdRef names a reference value for hysteresis thresholds.
type ThresholdRef int

const (
	// PiControl3 references the 3rd quartile of the control-run
	// combined gradient magnitude.
	PiControl3 ThresholdRef = iota
	// PiControlMax references the control-run maximum.
	PiControlMax
)

// ParseThresholdRef maps the user-facing reference names onto values.
func ParseThresholdRef(name string) (ThresholdRef, error) {
	switch name {
	case "pi-control-3":
		return PiControl3, nil
	case "pi-control-max":
		return PiControlMax, nil
	}
	return 0, fmt.Errorf("calibration: unknown threshold reference %q", name)
}

// Record holds the per-quartile (min, 1st, median, 3rd, max) scales of a
// control run. Each sequence is non-decreasing. Gamma is dimensionless and
// satisfies Gamma[i] == sqrt(Time[i]^2 / Distance[i]^2) exactly. A record
// is created once per control dataset and immutable thereafter.
type Record struct {
	Time      stats.Quartiles
	Distance  stats.Quartiles
	Magnitude stats.Quartiles
	Gamma     stats.Quartiles
}

// Options configures the calibration pass.
type Options struct {
	// SigmaT and SigmaX are the Gaussian smoothing scales in years and km.
	SigmaT, SigmaX float64

	// DeltaT and DeltaX are the seed tap spacings of the gradient
	// operator, in years and km.
	DeltaT, DeltaX float64

	// Taper enables the mask-boundary taper pre-pass on masked fields.
	Taper       bool
	TaperMargin [3]int
	TaperBlend  int
}

// Calibrate computes the calibration record for a control-run field.
//
// The control field is smoothed, its physically weighted gradient is
// computed, and the per-cell squared time gradient, squared spatial
// gradient, and gradient magnitude are reduced to weighted
// quartiles using the grid's relative cell areas (broadcast across time) as
// weights. Masked cells are excluded.
func Calibrate(control *dataset.Field, opts Options) (*Record, error) {
	data := control
	if opts.Taper && control.Mask != nil {
		data = control.Clone()
		filters.TaperMaskedArea(data, opts.TaperMargin, opts.TaperBlend)
	}

	smooth := filters.Gaussian(data, opts.SigmaT, opts.SigmaX, opts.SigmaX)
	sb := filters.Sobel(smooth, opts.DeltaT, opts.DeltaX, opts.DeltaX)

	grid := control.Grid
	nt, nlat, nlon := grid.Shape()

	n := nt * nlat * nlon
	varT := make([]float64, 0, n)
	varX := make([]float64, 0, n)
	varM := make([]float64, 0, n)
	weights := make([]float64, 0, n)

	for t := 0; t < nt; t++ {
		for j := 0; j < nlat; j++ {
			for k := 0; k < nlon; k++ {
				i := (t*nlat+j)*nlon + k
				if smooth.Masked(i) {
					continue
				}
				gt := sb.DT[i] / sb.Norm[i]
				gy := sb.DLat[i] / sb.Norm[i]
				gx := sb.DLon[i] / sb.Norm[i]
				varT = append(varT, gt*gt)
				varX = append(varX, gy*gy+gx*gx)
				varM = append(varM, 1/sb.Norm[i])
				weights = append(weights, grid.Area.At(j, k))
			}
		}
	}

	ft, err := stats.WeightedQuartiles(varT, append([]float64(nil), weights...))
	if err != nil {
		return nil, fmt.Errorf("calibration: time ratio: %w", err)
	}
	fx, err := stats.WeightedQuartiles(varX, append([]float64(nil), weights...))
	if err != nil {
		return nil, fmt.Errorf("calibration: distance ratio: %w", err)
	}
	fm, err := stats.WeightedQuartiles(varM, weights)
	if err != nil {
		return nil, fmt.Errorf("calibration: magnitude: %w", err)
	}

	rec := &Record{Magnitude: fm}
	for i := 0; i < 5; i++ {
		rec.Time[i] = math.Sqrt(ft[i])
		rec.Distance[i] = math.Sqrt(fx[i])
		rec.Gamma[i] = math.Sqrt(ft[i] / fx[i])
	}
	return rec, nil
}

// MagnitudeQuartiles combines the time and distance quartiles into a single
// gradient-magnitude scale per quartile, using the gamma of the selected
// calibration quartile: mag[i] = sqrt((Distance[i]*gamma)^2 + Time[i]^2).
func (r *Record) MagnitudeQuartiles(q Quartile) stats.Quartiles {
	gamma := r.Gamma[q]
	var mag stats.Quartiles
	for i := 0; i < 5; i++ {
		d := r.Distance[i] * gamma
		mag[i] = math.Sqrt(d*d + r.Time[i]*r.Time[i])
	}
	return mag
}

// refValue picks the reference magnitude for a threshold reference.
func refValue(mag stats.Quartiles, ref ThresholdRef) float64 {
	if ref == PiControlMax {
		return mag[QuartileMax]
	}
	return mag[Quartile3rd]
}

// Thresholds derives the (lower, upper) hysteresis thresholds from the
// record: the chosen references are scaled by the user fractions. Both
// references may name the same quartile; the thresholds are then equal
// before scaling.
func (r *Record) Thresholds(q Quartile, lowerRef, upperRef ThresholdRef, fracLower, fracUpper float64) (lower, upper float64) {
	mag := r.MagnitudeQuartiles(q)
	return refValue(mag, lowerRef) * fracLower, refValue(mag, upperRef) * fracUpper
}
