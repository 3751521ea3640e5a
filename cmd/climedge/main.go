package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"climedge/internal/models"
	"climedge/pkg/config"
	"climedge/pkg/dataset"
	"climedge/pkg/detection"
	"climedge/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "climedge.yaml", "Path to the YAML configuration file")
	targetFile := flag.String("target", "", "Raw float64 lattice file with the target data (overrides config)")
	controlFile := flag.String("control", "", "Raw float64 lattice file with the control data (overrides config)")
	outputDir := flag.String("output", "", "Output directory (overrides config)")
	writeConfig := flag.Bool("write-config", false, "Write a default configuration file to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *targetFile != "" {
		cfg.Input.TargetFile = *targetFile
	}
	if *controlFile != "" {
		cfg.Input.ControlFile = *controlFile
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if cfg.Input.TargetFile == "" || cfg.Input.ControlFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts, err := cfg.ToOptions()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	grid, err := cfg.BuildGrid()
	if err != nil {
		log.Fatalf("Invalid grid: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("CLIMEDGE: CALIBRATED EDGE DETECTION IN GRIDDED CLIMATE FIELDS")
	fmt.Println("================================")

	target, err := loadField(cfg, grid, cfg.Input.TargetFile)
	if err != nil {
		log.Fatalf("Failed to load target data: %v", err)
	}
	control, err := loadField(cfg, grid, cfg.Input.ControlFile)
	if err != nil {
		log.Fatalf("Failed to load control data: %v", err)
	}

	startTime := time.Now()

	rec, err := detection.Calibrate(control, opts)
	if err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}
	fmt.Printf("Calibration record:\n")
	fmt.Printf("  time:      %v\n", rec.Time)
	fmt.Printf("  distance:  %v\n", rec.Distance)
	fmt.Printf("  magnitude: %v\n", rec.Magnitude)
	fmt.Printf("  gamma:     %v\n", rec.Gamma)

	result, err := detection.Detect(target, rec, opts)
	var degenerate *detection.DegenerateSignalError
	if errors.As(err, &degenerate) {
		log.Fatalf("No detectable signal: %v", degenerate)
	}
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	summary := models.RunSummary{
		Gamma:           rec.Gamma[opts.Quartile],
		Lower:           result.Lower,
		Upper:           result.Upper,
		EdgeVoxels:      result.Edges.Count(),
		Regions:         len(result.Regions.Kept),
		MaxAbruptness:   maxOf(result.Abruptness.Projection),
		MaxTimeGradient: maxOf(result.MaxTimeGradient),
	}

	fmt.Printf("\nDetection completed in %.2f seconds\n\n", time.Since(startTime).Seconds())
	fmt.Printf("Run summary:\n")
	fmt.Printf("============\n")
	fmt.Printf("Gamma (anisotropy factor): %.6f\n", summary.Gamma)
	fmt.Printf("Thresholds: lower=%.6g upper=%.6g\n", summary.Lower, summary.Upper)
	fmt.Printf("Edge voxels: %d\n", summary.EdgeVoxels)
	fmt.Printf("Regions above minimum size: %d\n", summary.Regions)
	fmt.Printf("Max abruptness: %.3f\n", summary.MaxAbruptness)
	fmt.Printf("Max time gradient: %.6g\n", summary.MaxTimeGradient)

	if err := writeOutputs(cfg, grid, result); err != nil {
		log.Fatalf("Failed to write outputs: %v", err)
	}
	fmt.Printf("\nOutputs written to %s\n", cfg.Output.Dir)
}

// loadField reads a raw lattice file into a Field, deriving the validity
// mask from the configured fill value.
func loadField(cfg *config.Config, grid *dataset.Grid, path string) (*dataset.Field, error) {
	nt, nlat, nlon := grid.Shape()
	raw := models.RawLattice{Path: path, NT: nt, NLat: nlat, NLon: nlon}
	data, err := raw.Load()
	if err != nil {
		return nil, err
	}

	field := &dataset.Field{Grid: grid, Data: data}
	if cfg.Input.MaskValue != nil {
		fill := *cfg.Input.MaskValue
		mask := make([]bool, len(data))
		masked := false
		for i, v := range data {
			if v == fill {
				mask[i] = true
				masked = true
			}
		}
		if masked {
			field.Mask = mask
		}
	}
	return field, nil
}

// writeOutputs persists the result fields as raw lattices and renders the
// 2D summary maps.
func writeOutputs(cfg *config.Config, grid *dataset.Grid, result *detection.Result) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	_, nlat, nlon := grid.Shape()

	if cfg.Output.SaveFields {
		edges := make([]float64, len(result.Edges.Set))
		for i, set := range result.Edges.Set {
			if set {
				edges[i] = 1
			}
		}
		fields := map[string][]float64{
			"edge_mask.bin":     edges,
			"abruptness_3d.bin": result.Abruptness.Scores,
			"abruptness.bin":    result.Abruptness.Projection,
			"maxtgrad.bin":      result.MaxTimeGradient,
			"event_count.bin":   result.EventCount,
		}
		for name, values := range fields {
			if err := models.SaveRaw(filepath.Join(cfg.Output.Dir, name), values); err != nil {
				return err
			}
		}
	}

	if cfg.Output.RenderMaps {
		maps := map[string][]float64{
			"abruptness.png":      result.Abruptness.Projection,
			"maxtgrad.png":        result.MaxTimeGradient,
			"event_count.png":     result.EventCount,
			"regions.png":         result.Regions.MaxProjection(grid),
			"years_maxabrupt.png": result.YearsOfMaxAbruptness,
		}
		for name, values := range maps {
			if err := visualization.SaveMapPNG(filepath.Join(cfg.Output.Dir, name), values, nlat, nlon); err != nil {
				return err
			}
		}
	}
	return nil
}

func maxOf(values []float64) float64 {
	max := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}
