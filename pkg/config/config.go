// Package config provides configuration loading and management for climedge.
// It handles loading configuration from YAML files and provides default
// values matching the reference parameter set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"climedge/pkg/abruptness"
	"climedge/pkg/calibration"
	"climedge/pkg/dataset"
	"climedge/pkg/detection"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Grid describes the lattice of the raw input files.
	Grid struct {
		// StartYear is the year of the first (annual) time step.
		StartYear int `yaml:"startYear"`

		// TimeCount is the number of time steps.
		TimeCount int `yaml:"timeCount"`

		// LatStart/LatStep/LatCount generate the latitude coordinates in
		// degrees; likewise for longitude.
		LatStart float64 `yaml:"latStart"`
		LatStep  float64 `yaml:"latStep"`
		LatCount int     `yaml:"latCount"`
		LonStart float64 `yaml:"lonStart"`
		LonStep  float64 `yaml:"lonStep"`
		LonCount int     `yaml:"lonCount"`

		// PeriodicLon wraps the longitude axis around the globe.
		PeriodicLon bool `yaml:"periodicLon"`
	} `yaml:"grid"`

	// Detection holds the pipeline parameters.
	Detection struct {
		// CalibrationQuartile is one of min, 1st, median, 3rd, max.
		CalibrationQuartile string `yaml:"calibrationQuartile"`

		// SigmaT is the temporal smoothing scale in years.
		SigmaT float64 `yaml:"sigmaT"`

		// SigmaX is the spatial smoothing scale in km.
		SigmaX float64 `yaml:"sigmaX"`

		// SobelScale is the space-for-time scaling in km per year.
		SobelScale float64 `yaml:"sobelScale"`

		// Threshold references are pi-control-3 or pi-control-max.
		LowerThresholdRef  string  `yaml:"lowerThresholdRef"`
		UpperThresholdRef  string  `yaml:"upperThresholdRef"`
		LowerThresholdFrac float64 `yaml:"lowerThresholdFrac"`
		UpperThresholdFrac float64 `yaml:"upperThresholdFrac"`

		// Taper enables the mask-boundary taper pre-pass.
		Taper bool `yaml:"taper"`

		// TaperMargin is the spatial margin in pixels, TaperBlend the
		// decay length.
		TaperMargin int `yaml:"taperMargin"`
		TaperBlend  int `yaml:"taperBlend"`

		// TimeMargin clears this many leading/trailing time steps from
		// the edge mask.
		TimeMargin int `yaml:"timeMargin"`

		// MinRegionSize drops connected components of this size or less.
		MinRegionSize int `yaml:"minRegionSize"`
	} `yaml:"detection"`

	// Abruptness holds the discontinuity estimator parameters.
	Abruptness struct {
		CutoffLength   int     `yaml:"cutoffLength"`
		ChunkMaxLength int     `yaml:"chunkMaxLength"`
		ChunkMinLength int     `yaml:"chunkMinLength"`
		Clamp          float64 `yaml:"clamp"`
	} `yaml:"abruptness"`

	// Input locates the raw little-endian float64 lattice files.
	Input struct {
		TargetFile  string `yaml:"targetFile"`
		ControlFile string `yaml:"controlFile"`

		// MaskValue, when set, marks cells holding exactly this value as
		// missing.
		MaskValue *float64 `yaml:"maskValue"`
	} `yaml:"input"`

	// Output parameters.
	Output struct {
		Dir        string `yaml:"dir"`
		SaveFields bool   `yaml:"saveFields"`
		RenderMaps bool   `yaml:"renderMaps"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Grid.StartYear = 1850
	cfg.Grid.LatStart = -90
	cfg.Grid.LatStep = 1
	cfg.Grid.LonStart = 0
	cfg.Grid.LonStep = 1
	cfg.Grid.PeriodicLon = true

	cfg.Detection.CalibrationQuartile = "3rd"
	cfg.Detection.SigmaT = 10
	cfg.Detection.SigmaX = 200
	cfg.Detection.SobelScale = 10
	cfg.Detection.LowerThresholdRef = "pi-control-3"
	cfg.Detection.UpperThresholdRef = "pi-control-max"
	cfg.Detection.LowerThresholdFrac = 1
	cfg.Detection.UpperThresholdFrac = 1
	cfg.Detection.Taper = true
	cfg.Detection.TaperMargin = 5
	cfg.Detection.TaperBlend = 50
	cfg.Detection.TimeMargin = 10
	cfg.Detection.MinRegionSize = 0

	cfg.Abruptness.CutoffLength = 2
	cfg.Abruptness.ChunkMaxLength = 30
	cfg.Abruptness.ChunkMinLength = 15
	cfg.Abruptness.Clamp = 100

	cfg.Output.Dir = "climedge_output"
	cfg.Output.SaveFields = true
	cfg.Output.RenderMaps = true

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// ToOptions converts the configuration into pipeline options, validating
// the quartile and threshold reference names.
func (c *Config) ToOptions() (detection.Options, error) {
	opts := detection.DefaultOptions()

	q, err := calibration.ParseQuartile(c.Detection.CalibrationQuartile)
	if err != nil {
		return opts, err
	}
	lowerRef, err := calibration.ParseThresholdRef(c.Detection.LowerThresholdRef)
	if err != nil {
		return opts, err
	}
	upperRef, err := calibration.ParseThresholdRef(c.Detection.UpperThresholdRef)
	if err != nil {
		return opts, err
	}

	opts.Quartile = q
	opts.SigmaT = c.Detection.SigmaT
	opts.SigmaX = c.Detection.SigmaX
	opts.SobelScale = c.Detection.SobelScale
	opts.LowerRef = lowerRef
	opts.UpperRef = upperRef
	opts.LowerFrac = c.Detection.LowerThresholdFrac
	opts.UpperFrac = c.Detection.UpperThresholdFrac
	opts.Taper = c.Detection.Taper
	opts.TaperMargin = [3]int{0, c.Detection.TaperMargin, c.Detection.TaperMargin}
	opts.TaperBlend = c.Detection.TaperBlend
	opts.TimeMargin = c.Detection.TimeMargin
	opts.MinRegionSize = c.Detection.MinRegionSize
	opts.Abruptness = abruptness.Params{
		CutoffLength:   c.Abruptness.CutoffLength,
		ChunkMaxLength: c.Abruptness.ChunkMaxLength,
		ChunkMinLength: c.Abruptness.ChunkMinLength,
		Clamp:          c.Abruptness.Clamp,
	}
	return opts, nil
}

// BuildGrid constructs the lattice described by the Grid section, with
// annual time steps starting at StartYear.
func (c *Config) BuildGrid() (*dataset.Grid, error) {
	g := c.Grid
	if g.TimeCount <= 0 || g.LatCount <= 0 || g.LonCount <= 0 {
		return nil, fmt.Errorf("config: grid dimensions must be positive (got %dx%dx%d)",
			g.TimeCount, g.LatCount, g.LonCount)
	}

	dates := make([]time.Time, g.TimeCount)
	for i := range dates {
		dates[i] = time.Date(g.StartYear+i, time.July, 1, 0, 0, 0, 0, time.UTC)
	}
	lat := make([]float64, g.LatCount)
	for i := range lat {
		lat[i] = g.LatStart + float64(i)*g.LatStep
	}
	lon := make([]float64, g.LonCount)
	for i := range lon {
		lon[i] = g.LonStart + float64(i)*g.LonStep
	}
	return dataset.NewGrid(dates, lat, lon, g.PeriodicLon), nil
}
