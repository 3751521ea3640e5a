package calibration

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"climedge/pkg/dataset"
	"climedge/pkg/stats"
)

func testGrid(nt, nlat, nlon int) *dataset.Grid {
	dates := make([]time.Time, nt)
	for i := range dates {
		dates[i] = time.Date(1900+i, time.July, 1, 0, 0, 0, 0, time.UTC)
	}
	lat := make([]float64, nlat)
	for i := range lat {
		lat[i] = float64(i)
	}
	lon := make([]float64, nlon)
	for i := range lon {
		lon[i] = float64(i)
	}
	return dataset.NewGrid(dates, lat, lon, false)
}

func noiseField(grid *dataset.Grid, sigma float64, seed int64) *dataset.Field {
	f := dataset.NewField(grid)
	r := rand.New(rand.NewSource(seed))
	for i := range f.Data {
		f.Data[i] = r.NormFloat64() * sigma
	}
	return f
}

// TestCalibrateGammaIdentity verifies that the anisotropy factor satisfies
// Gamma[i]^2 * Distance[i]^2 == Time[i]^2 at every quartile
func TestCalibrateGammaIdentity(t *testing.T) {
	grid := testGrid(24, 6, 6)
	control := noiseField(grid, 1, 1)

	rec, err := Calibrate(control, Options{
		SigmaT: 2,
		SigmaX: 2 * grid.LatStep(),
		DeltaT: grid.TimeStep(),
		DeltaX: grid.LatStep(),
	})
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		lhs := rec.Gamma[i] * rec.Gamma[i] * rec.Distance[i] * rec.Distance[i]
		rhs := rec.Time[i] * rec.Time[i]
		if math.Abs(lhs-rhs) > 1e-9*math.Max(1, rhs) {
			t.Errorf("Gamma identity broken at quartile %d: %g != %g", i, lhs, rhs)
		}
	}
}

// TestCalibrateQuartilesNonDecreasing verifies that every calibrated scale
// sequence is non-decreasing and strictly positive above the minimum
func TestCalibrateQuartilesNonDecreasing(t *testing.T) {
	grid := testGrid(24, 6, 6)
	control := noiseField(grid, 0.5, 7)

	rec, err := Calibrate(control, Options{
		SigmaT: 2,
		SigmaX: 2 * grid.LatStep(),
		DeltaT: grid.TimeStep(),
		DeltaX: grid.LatStep(),
	})
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	sequences := map[string]stats.Quartiles{
		"time":      rec.Time,
		"distance":  rec.Distance,
		"magnitude": rec.Magnitude,
	}
	for name, seq := range sequences {
		for i := 1; i < 5; i++ {
			if seq[i] < seq[i-1] {
				t.Errorf("%s quartiles decrease at %d: %g then %g", name, i, seq[i-1], seq[i])
			}
		}
		if seq[4] <= 0 {
			t.Errorf("Expected positive %s maximum, got %g", name, seq[4])
		}
	}
}

// TestCalibrateMaskedCellsExcluded verifies that masked cells do not enter
// the calibration statistics: an extreme value behind the mask must not
// move the maximum magnitude
func TestCalibrateMaskedCellsExcluded(t *testing.T) {
	grid := testGrid(24, 6, 6)
	opts := Options{
		DeltaT: grid.TimeStep(),
		DeltaX: grid.LatStep(),
	}

	clean := noiseField(grid, 0.5, 11)
	recClean, err := Calibrate(clean, opts)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	dirty := clean.Clone()
	dirty.Mask = make([]bool, len(dirty.Data))
	hole := dirty.Index(12, 3, 3)
	dirty.Data[hole] = 1e6
	dirty.Mask[hole] = true
	recDirty, err := Calibrate(dirty, opts)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	// The spike still perturbs its unmasked neighbors through the
	// gradient stencil, but it must not blow the scale up by orders of
	// magnitude the way an unmasked 1e6 cell would.
	if recDirty.Magnitude[QuartileMax] > 100*recClean.Magnitude[QuartileMax] {
		t.Errorf("Masked spike dominated calibration: max magnitude %g vs clean %g",
			recDirty.Magnitude[QuartileMax], recClean.Magnitude[QuartileMax])
	}
}

// TestMagnitudeQuartiles verifies the combined magnitude formula on a
// hand-built record
func TestMagnitudeQuartiles(t *testing.T) {
	rec := &Record{}
	for i := 0; i < 5; i++ {
		rec.Time[i] = 3
		rec.Distance[i] = 4
		rec.Gamma[i] = 0.75
	}

	mag := rec.MagnitudeQuartiles(Quartile3rd)
	want := math.Sqrt(4*0.75*4*0.75 + 3*3) // sqrt(18)
	for i := 0; i < 5; i++ {
		if math.Abs(mag[i]-want) > 1e-12 {
			t.Errorf("Expected magnitude[%d]=%g, got %g", i, want, mag[i])
		}
	}
}

// TestThresholds verifies the reference selection and fraction scaling
func TestThresholds(t *testing.T) {
	rec := &Record{}
	for i := 0; i < 5; i++ {
		rec.Time[i] = 3
		rec.Distance[i] = 4
		rec.Gamma[i] = 0.75
	}

	mag := math.Sqrt(18)
	lower, upper := rec.Thresholds(Quartile3rd, PiControl3, PiControlMax, 0.5, 1)
	if math.Abs(lower-0.5*mag) > 1e-12 {
		t.Errorf("Expected lower threshold %g, got %g", 0.5*mag, lower)
	}
	if math.Abs(upper-mag) > 1e-12 {
		t.Errorf("Expected upper threshold %g, got %g", mag, upper)
	}
}

// TestParseQuartile verifies the quartile name parsing
func TestParseQuartile(t *testing.T) {
	cases := map[string]Quartile{
		"min":    QuartileMin,
		"1st":    Quartile1st,
		"median": QuartileMedian,
		"3rd":    Quartile3rd,
		"max":    QuartileMax,
	}
	for name, want := range cases {
		got, err := ParseQuartile(name)
		if err != nil {
			t.Errorf("ParseQuartile(%q) failed: %v", name, err)
		}
		if got != want {
			t.Errorf("Expected %q to parse to %v, got %v", name, want, got)
		}
	}
	if _, err := ParseQuartile("2nd"); err == nil {
		t.Errorf("Expected error for unknown quartile name")
	}
}

// TestParseThresholdRef verifies the threshold reference name parsing
func TestParseThresholdRef(t *testing.T) {
	if ref, err := ParseThresholdRef("pi-control-3"); err != nil || ref != PiControl3 {
		t.Errorf("Expected pi-control-3 to parse, got %v (%v)", ref, err)
	}
	if ref, err := ParseThresholdRef("pi-control-max"); err != nil || ref != PiControlMax {
		t.Errorf("Expected pi-control-max to parse, got %v (%v)", ref, err)
	}
	if _, err := ParseThresholdRef("median"); err == nil {
		t.Errorf("Expected error for unknown threshold reference")
	}
}
