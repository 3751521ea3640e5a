// Package models holds the on-disk lattice descriptors and run-summary
// types used by the climedge command.
package models

import (
	"encoding/binary"
	"fmt"
	"os"
)

// RawLattice describes a raw little-endian float64 lattice file in
// (time, lat, lon) row-major order, the exchange format between the
// detection pipeline and external tooling.
type RawLattice struct {
	Path string

	// NT, NLat, NLon are the expected lattice dimensions.
	NT, NLat, NLon int
}

// Size returns the expected number of values in the file.
func (r RawLattice) Size() int {
	return r.NT * r.NLat * r.NLon
}

// Load reads the lattice values, verifying the file length against the
// declared dimensions.
func (r RawLattice) Load() ([]float64, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lattice file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat lattice file: %w", err)
	}
	want := r.Size()
	if info.Size() != int64(want*8) {
		return nil, fmt.Errorf("lattice file %s holds %d bytes, expected %d (%dx%dx%d float64)",
			r.Path, info.Size(), want*8, r.NT, r.NLat, r.NLon)
	}

	data := make([]float64, want)
	if err := binary.Read(f, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("failed to read lattice data: %w", err)
	}
	return data, nil
}

// SaveRaw writes values as a raw little-endian float64 file.
func SaveRaw(path string, values []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, values); err != nil {
		return fmt.Errorf("failed to write output data: %w", err)
	}
	return nil
}

// RunSummary collects the headline statistics of a detection run for
// display and reporting.
type RunSummary struct {
	// Gamma is the calibrated anisotropy factor at the chosen quartile.
	Gamma float64

	// Lower and Upper are the derived hysteresis thresholds.
	Lower, Upper float64

	// EdgeVoxels is the size of the detected edge mask.
	EdgeVoxels int

	// Regions is the number of connected components above the minimum
	// size.
	Regions int

	// MaxAbruptness is the largest projected discontinuity score.
	MaxAbruptness float64

	// MaxTimeGradient is the largest time-gradient anomaly among edge
	// columns.
	MaxTimeGradient float64
}
