// Package detection orchestrates the full calibration-detection-
// quantification pipeline: control-run calibration, smoothing, weighted
// gradients, directional thinning, hysteresis thresholding, region
// labeling, and abruptness scoring.
//
// The pipeline follows the stages of the edge detector:
//  1. Calibrate time/distance/magnitude scales on a control run.
//  2. Smooth the target field and compute its physically weighted gradient.
//  3. Abort when the maximum observed signal stays below the upper
//     threshold (nothing to detect).
//  4. Thin the gradient ridges in pixel space, grow the edge mask by
//     hysteresis, and zero the time margins.
//  5. Label regions and score abruptness at every edge voxel.
package detection

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"climedge/pkg/abruptness"
	"climedge/pkg/calibration"
	"climedge/pkg/canny"
	"climedge/pkg/dataset"
	"climedge/pkg/filters"
	"climedge/pkg/regions"
)

// DegenerateSignalError aborts a detection run whose strongest gradient
// magnitude stays below the upper hysteresis threshold: the run would
// produce an empty mask, which is reported as an error instead of silence.
type DegenerateSignalError struct {
	MaxSignal float64
	Upper     float64
}

func (e *DegenerateSignalError) Error() string {
	return fmt.Sprintf("detection: maximum signal %g below upper threshold %g, nothing to detect", e.MaxSignal, e.Upper)
}

// Options is the immutable configuration of a calibration + detection run.
type Options struct {
	// Quartile selects which calibration quartile feeds gamma and the
	// threshold derivation.
	Quartile calibration.Quartile

	// SigmaT and SigmaX are the Gaussian smoothing scales in years and km.
	SigmaT, SigmaX float64

	// SobelScale converts time into space for the gradient magnitude, in
	// km per year.
	SobelScale float64

	// Threshold references and their multiplicative fractions.
	LowerRef, UpperRef   calibration.ThresholdRef
	LowerFrac, UpperFrac float64

	// Taper enables the mask-boundary taper pre-pass on masked fields.
	Taper       bool
	TaperMargin [3]int
	TaperBlend  int

	// TimeMargin is the number of leading and trailing time steps cleared
	// from the edge mask.
	TimeMargin int

	// MinRegionSize drops connected components with this many voxels or
	// fewer.
	MinRegionSize int

	// Abruptness configures the discontinuity estimator.
	Abruptness abruptness.Params
}

// DefaultOptions returns the reference parameter set: 10 year / 200 km
// smoothing, 10 km/year sobel scale, 3rd-quartile calibration, thresholds
// at pi-control-3 and pi-control-max with fraction 1.
func DefaultOptions() Options {
	return Options{
		Quartile:    calibration.Quartile3rd,
		SigmaT:      10,
		SigmaX:      200,
		SobelScale:  10,
		LowerRef:    calibration.PiControl3,
		UpperRef:    calibration.PiControlMax,
		LowerFrac:   1,
		UpperFrac:   1,
		Taper:       true,
		TaperMargin: [3]int{0, 5, 5},
		TaperBlend:  50,
		TimeMargin:  10,
		Abruptness: abruptness.Params{
			CutoffLength:   2,
			ChunkMaxLength: 30,
			ChunkMinLength: 15,
			Clamp:          100,
		},
	}
}

// Result bundles everything the pipeline exposes to reporting.
type Result struct {
	Calibration *calibration.Record

	// Lower and Upper are the derived hysteresis thresholds.
	Lower, Upper float64

	// Sobel is the physically weighted gradient of the smoothed target.
	Sobel *dataset.GradientField

	// Edges is the detected edge mask.
	Edges *dataset.EdgeMask

	// Regions labels the mask's connected components.
	Regions *regions.Labeling

	// Abruptness holds the discontinuity scores and their projection.
	Abruptness *dataset.AbruptnessField

	// MaxTimeGradient, EventCount and YearsOfMaxAbruptness are per-column
	// (lat x lon) summary maps; EventCountSeries counts edge voxels per
	// time step.
	MaxTimeGradient      []float64
	EventCount           []float64
	EventCountSeries     []int
	YearsOfMaxAbruptness []float64
}

// Calibrate runs the calibration stage on a control field using the seed
// gradient spacings Delta t = 1 year, Delta x = SobelScale km.
func Calibrate(control *dataset.Field, opts Options) (*calibration.Record, error) {
	fmt.Println("Calibrating against control run...")
	return calibration.Calibrate(control, calibration.Options{
		SigmaT:      opts.SigmaT,
		SigmaX:      opts.SigmaX,
		DeltaT:      1,
		DeltaX:      opts.SobelScale,
		Taper:       opts.Taper,
		TaperMargin: opts.TaperMargin,
		TaperBlend:  opts.TaperBlend,
	})
}

// Detect runs the full detection pipeline on a target field with a
// previously computed calibration record.
func Detect(target *dataset.Field, rec *calibration.Record, opts Options) (*Result, error) {
	lower, upper := rec.Thresholds(opts.Quartile, opts.LowerRef, opts.UpperRef, opts.LowerFrac, opts.UpperFrac)
	gamma := rec.Gamma[opts.Quartile]
	fmt.Printf("Detection thresholds: lower=%g upper=%g (gamma=%g)\n", lower, upper, gamma)

	data := target
	if opts.Taper && target.Mask != nil {
		fmt.Println("Tapering masked area...")
		data = target.Clone()
		filters.TaperMaskedArea(data, opts.TaperMargin, opts.TaperBlend)
	}

	fmt.Println("Smoothing target field...")
	smooth := filters.Gaussian(data, opts.SigmaT, opts.SigmaX, opts.SigmaX)

	// Calibrated gradient weights: one year of time equals
	// SobelScale * gamma km of space.
	deltaX := opts.SobelScale * gamma
	fmt.Printf("Computing weighted gradient (delta_x=%g km)...\n", deltaX)
	sobel := filters.Sobel(smooth, 1, deltaX, deltaX)

	maxSignal := 1 / floats.Min(sobel.Norm)
	if maxSignal < upper {
		return nil, &DegenerateSignalError{MaxSignal: maxSignal, Upper: upper}
	}

	fmt.Println("Thinning gradient ridges...")
	pixel := filters.SobelPixel(smooth)
	// The thinning step walks pixel-space directions but ranks voxels by
	// their physical magnitudes.
	copy(pixel.Norm, sobel.Norm)
	candidates := canny.EdgeThinning(pixel)
	canny.ApplyFieldMask(candidates, target)

	// The time margin is applied after hysteresis: seeds inside the margin
	// may still ignite growth that extends past it.
	fmt.Println("Hysteresis thresholding...")
	edges := canny.DoubleThreshold(sobel, candidates, lower, upper)
	canny.ApplyFieldMask(edges, target)
	canny.ApplyTimeMargin(edges, opts.TimeMargin)

	fmt.Printf("Edge mask: %d voxels\n", edges.Count())

	fmt.Println("Labeling regions...")
	labeling := regions.Label(edges, opts.MinRegionSize)

	fmt.Println("Scoring abruptness...")
	years := target.Grid.Years()
	scores := abruptness.Measure(edges, years, target, opts.Abruptness)

	return &Result{
		Calibration:          rec,
		Lower:                lower,
		Upper:                upper,
		Sobel:                sobel,
		Edges:                edges,
		Regions:              labeling,
		Abruptness:           scores,
		MaxTimeGradient:      abruptness.MaxTimeGradient(sobel, edges),
		EventCount:           abruptness.EventCount(edges),
		EventCountSeries:     abruptness.EventCountSeries(edges),
		YearsOfMaxAbruptness: abruptness.YearsOfMaxAbruptness(edges, scores, years),
	}, nil
}
