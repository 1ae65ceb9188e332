// Package config provides configuration loading and management for dtfiber.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel tracing
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Volume describes the synthetic phantom to trace through
	Volume struct {
		// Phantom is the field kind: uniform, arc or twist
		Phantom string `yaml:"phantom"`

		// Size is the number of samples along each axis
		Size [3]int `yaml:"size,flow"`

		// Spacing is the world distance between samples along each axis
		Spacing [3]float64 `yaml:"spacing,flow"`

		// Origin is the world position of the first sample
		Origin [3]float64 `yaml:"origin,flow"`

		// Eigenvalues of every anisotropic tensor, largest first
		Eigenvalues [3]float64 `yaml:"eigenvalues,flow"`

		// Direction is the major eigenvector of the uniform phantom
		Direction [3]float64 `yaml:"direction,flow"`

		// Confidence stored in every voxel
		Confidence float64 `yaml:"confidence"`

		// ConfidenceRadius zeroes the confidence outside a cylinder about
		// the volume center; 0 disables it
		ConfidenceRadius float64 `yaml:"confidenceRadius"`

		// TwistRate is the rotation of the twist phantom in radians per
		// world unit
		TwistRate float64 `yaml:"twistRate"`
	} `yaml:"volume"`

	// Kernel is the reconstruction kernel: box, tent, catmull-rom, bspline
	// or cubic:B,C
	Kernel string `yaml:"kernel"`

	// Fiber tracing parameters
	Fiber struct {
		// Type is the fiber model: evec0, evec1, evec2, tensorline or pureline
		Type string `yaml:"type"`

		// Integration is euler or rk4
		Integration string `yaml:"integration"`

		// StepSize is the step length in the tracing coordinate space
		StepSize float64 `yaml:"stepSize"`

		// IndexSpace traces in voxel coordinates instead of world
		IndexSpace bool `yaml:"indexSpace"`

		// Punct is the tensorline weight of the deflected direction
		Punct float64 `yaml:"punct"`

		// BufferCapacity bounds the points per fiber; 0 is unbounded
		BufferCapacity int `yaml:"bufferCapacity"`

		// AnisoSpeed scales the steps by an anisotropy ramp when Metric is set
		AnisoSpeed struct {
			Metric    string  `yaml:"metric"`
			Lerp      float64 `yaml:"lerp"`
			Threshold float64 `yaml:"threshold"`
			Softness  float64 `yaml:"softness"`
		} `yaml:"anisoSpeed"`
	} `yaml:"fiber"`

	// Stop criteria
	Stop struct {
		// Criteria lists the enabled criteria by name
		Criteria []string `yaml:"criteria,flow"`

		// Confidence is the minimum interpolated confidence
		Confidence float64 `yaml:"confidence"`

		// AnisoMetric and AnisoThreshold configure the anisotropy criterion
		AnisoMetric    string  `yaml:"anisoMetric"`
		AnisoThreshold float64 `yaml:"anisoThreshold"`

		// MaxNumSteps and MaxLength limit each half
		MaxNumSteps int     `yaml:"maxNumSteps"`
		MaxLength   float64 `yaml:"maxLength"`

		// MinNumSteps and MinLength discard short fibers
		MinNumSteps int     `yaml:"minNumSteps"`
		MinLength   float64 `yaml:"minLength"`
	} `yaml:"stop"`

	// Seeding parameters
	Seeding struct {
		// Spacing is the seed lattice step in voxels
		Spacing float64 `yaml:"spacing"`

		// AnisoMetric and AnisoThreshold mask out weakly anisotropic seeds;
		// an empty metric disables the mask
		AnisoMetric    string  `yaml:"anisoMetric"`
		AnisoThreshold float64 `yaml:"anisoThreshold"`

		// MinSeparation thins the seeds to this distance
		MinSeparation float64 `yaml:"minSeparation"`
	} `yaml:"seeding"`

	// Output parameters
	Output struct {
		// FibersCSV receives one row per fiber point; empty disables it
		FibersCSV string `yaml:"fibersCSV"`

		// SummaryCSV receives one row per fiber; empty disables it
		SummaryCSV string `yaml:"summaryCSV"`

		// EndpointRadius is the distance under which two fiber endpoints
		// count as neighbours in the metrics
		EndpointRadius float64 `yaml:"endpointRadius"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// ExtractSlices writes anisotropy map slices to SlicesDir
		ExtractSlices bool   `yaml:"extractSlices"`
		SlicesDir     string `yaml:"slicesDir"`

		// SliceMetric is the anisotropy metric drawn in the slices
		SliceMetric string `yaml:"sliceMetric"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Volume.Phantom = "arc"
	cfg.Volume.Size = [3]int{48, 48, 8}
	cfg.Volume.Spacing = [3]float64{1, 1, 1}
	cfg.Volume.Eigenvalues = [3]float64{1.7e-3, 3e-4, 2e-4}
	cfg.Volume.Direction = [3]float64{1, 0, 0}
	cfg.Volume.Confidence = 1
	cfg.Volume.ConfidenceRadius = 22
	cfg.Volume.TwistRate = 0.05

	cfg.Kernel = "tent"

	cfg.Fiber.Type = "evec0"
	cfg.Fiber.Integration = "rk4"
	cfg.Fiber.StepSize = 0.5
	cfg.Fiber.Punct = 0.5
	cfg.Fiber.AnisoSpeed.Lerp = 1
	cfg.Fiber.AnisoSpeed.Threshold = 0.3
	cfg.Fiber.AnisoSpeed.Softness = 0.1

	cfg.Stop.Criteria = []string{"bounds", "confidence", "aniso", "length", "minlength"}
	cfg.Stop.Confidence = 0.5
	cfg.Stop.AnisoMetric = "fa"
	cfg.Stop.AnisoThreshold = 0.2
	cfg.Stop.MaxNumSteps = 1000
	cfg.Stop.MaxLength = 60
	cfg.Stop.MinLength = 2

	cfg.Seeding.Spacing = 4
	cfg.Seeding.AnisoMetric = "fa"
	cfg.Seeding.AnisoThreshold = 0.3
	cfg.Seeding.MinSeparation = 0

	cfg.Output.FibersCSV = "fibers.csv"
	cfg.Output.SummaryCSV = "summary.csv"
	cfg.Output.EndpointRadius = 2
	cfg.Output.Verbose = false
	cfg.Output.ExtractSlices = false
	cfg.Output.SlicesDir = "aniso_slices"
	cfg.Output.SliceMetric = "fa"

	return cfg
}

// Validate checks the values that do not depend on name lookups. Names of
// kernels, fiber types, criteria and metrics are resolved, and checked, by
// the components that use them.
func (c *Config) Validate() error {
	var errs []error
	if c.Processing.NumCores < 1 {
		errs = append(errs, fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores))
	}
	for i, n := range c.Volume.Size {
		if n < 1 {
			errs = append(errs, fmt.Errorf("volume.size[%d] must be positive, got %d", i, n))
		}
		if !(c.Volume.Spacing[i] > 0) {
			errs = append(errs, fmt.Errorf("volume.spacing[%d] must be positive, got %g", i, c.Volume.Spacing[i]))
		}
	}
	if !(c.Fiber.StepSize > 0) {
		errs = append(errs, fmt.Errorf("fiber.stepSize must be positive, got %g", c.Fiber.StepSize))
	}
	if len(c.Stop.Criteria) == 0 {
		errs = append(errs, errors.New("stop.criteria must name at least one criterion"))
	}
	if !(c.Seeding.Spacing > 0) {
		errs = append(errs, fmt.Errorf("seeding.spacing must be positive, got %g", c.Seeding.Spacing))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
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

// SaveConfig saves the configuration to a YAML file
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
