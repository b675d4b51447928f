// Package config provides TOML configuration loading for the arm-pose
// pipeline.
//
// The configuration file supports the following structure:
//
//	[depth]
//	device_id = 0
//	width = 640
//	height = 480
//	fps = 30
//	scale = 0.001
//	fx = 525.0
//	fy = 525.0
//	cx = 320.0
//	cy = 240.0
//
//	[segmentation]
//	manhattan = 4
//	max_dist = 0.05
//	downscale_by = 0.16
//	downscale_by_calib = 0.2
//
//	[clustering]
//	k = 30
//	attempts = 2
//	max_iter = 10
//	epsilon = 0.002
//	threshold = 0.25
//
//	[arm]
//	left_seed = [0.2, 0.0, -0.05]
//	right_seed = [-0.2, 0.0, -0.05]
//	max_dist_to_seed = 0.2
//	dxdz_threshold = 1.2
//	smoothing_factor = 0.11
//	max_missed_steps = 5
//	locked_angle_degrees = 23.0
//
//	[calibration]
//	file = "calibration.xml"
//
//	[stream]
//	enabled = true
//	address = "127.0.0.1"
//	port = 39539
//
// Example usage:
//
//	cfg, err := config.Load("config.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Depth device: %d\n", cfg.Depth.DeviceID)
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the complete configuration for the arm-pose pipeline.
type Config struct {
	Depth        DepthConfig        `toml:"depth"`
	Segmentation SegmentationConfig `toml:"segmentation"`
	Clustering   ClusteringConfig   `toml:"clustering"`
	Arm          ArmConfig          `toml:"arm"`
	Calibration  CalibrationConfig  `toml:"calibration"`
	Stream       StreamConfig       `toml:"stream"`
}

// DepthConfig holds depth camera capture and intrinsics settings.
type DepthConfig struct {
	// DeviceID is the depth device index (default: 0).
	DeviceID int `toml:"device_id"`
	// Width is the capture width in pixels (default: 640).
	Width int `toml:"width"`
	// Height is the capture height in pixels (default: 480).
	Height int `toml:"height"`
	// FPS is the target frame rate (default: 30).
	FPS int `toml:"fps"`
	// Scale is meters per raw depth unit (default: 0.001, i.e. millimeters).
	Scale float64 `toml:"scale"`
	// FX, FY, CX, CY are the pinhole camera intrinsics used for deprojection.
	FX float64 `toml:"fx"`
	FY float64 `toml:"fy"`
	CX float64 `toml:"cx"`
	CY float64 `toml:"cy"`
}

// SegmentationConfig holds FrameSegmenter tunables.
type SegmentationConfig struct {
	// Manhattan is the BFS neighbor search radius (default: 4).
	Manhattan int `toml:"manhattan"`
	// MaxDist is the per-step depth tolerance in meters (default: 0.05).
	MaxDist float64 `toml:"max_dist"`
	// DownscaleBy resamples the filtered depth image by this factor before
	// deprojection in tracking mode (0 or >=1 disables downscaling;
	// default: 0.16).
	DownscaleBy float64 `toml:"downscale_by"`
	// DownscaleByCalib is the equivalent downsample factor used while
	// capturing calibration frames (default: 0.2 — calibration mode keeps
	// more of the depth image since it only runs a plane/line fit, not
	// full k-means clustering every frame).
	DownscaleByCalib float64 `toml:"downscale_by_calib"`
}

// ClusteringConfig holds Clusterer tunables.
type ClusteringConfig struct {
	// K is the number of k-means clusters (default: 30).
	K int `toml:"k"`
	// Attempts is the number of k-means restarts (default: 2).
	Attempts int `toml:"attempts"`
	// MaxIter caps iterations per restart (default: 10).
	MaxIter int `toml:"max_iter"`
	// Epsilon is the center-movement convergence threshold (default: 0.002).
	Epsilon float64 `toml:"epsilon"`
	// Threshold binarizes the adjacency matrix (default: 0.25).
	Threshold float64 `toml:"threshold"`
}

// ArmConfig holds ArmTracer tunables, one set shared by both arms (seed
// positions differ per side).
type ArmConfig struct {
	// LeftSeed/RightSeed are approximate hand positions in the calibrated
	// world frame, [x, y, z] in meters (default: {0.2, 0, -0.05} for the
	// left hand, {-0.2, 0, -0.05} for the right).
	LeftSeed  [3]float64 `toml:"left_seed"`
	RightSeed [3]float64 `toml:"right_seed"`
	// MaxDistToSeed bounds how far the acquired hand cluster may be from
	// the seed (default: 0.2).
	MaxDistToSeed float64 `toml:"max_dist_to_seed"`
	// DxDzThreshold is the walk's slope cutoff (default: 1.2).
	DxDzThreshold float64 `toml:"dxdz_threshold"`
	// SmoothingFactor is the lerp factor toward new joint targets
	// (default: 0.11 — small value means heavy smoothing).
	SmoothingFactor float64 `toml:"smoothing_factor"`
	// MaxMissedSteps is the grace window, in frames, before re-acquisition
	// snaps instead of interpolating (default: 5).
	MaxMissedSteps int `toml:"max_missed_steps"`
	// LockedAngleDegrees is the bend-angle threshold below which an arm is
	// considered locked/straight for display purposes (default: 23.0).
	LockedAngleDegrees float64 `toml:"locked_angle_degrees"`
}

// CalibrationConfig holds calibration file persistence settings.
type CalibrationConfig struct {
	// File is the path to the OpenCV FileStorage-compatible calibration
	// file (default: "calibration.xml").
	File string `toml:"file"`
}

// StreamConfig holds the UDP joint broadcaster settings.
type StreamConfig struct {
	// Enabled enables the joint stream sender (default: true).
	Enabled bool `toml:"enabled"`
	// Address is the destination IP address (default: "127.0.0.1").
	Address string `toml:"address"`
	// Port is the destination UDP port (default: 39539).
	Port int `toml:"port"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Depth: DepthConfig{
			DeviceID: 0,
			Width:    640,
			Height:   480,
			FPS:      30,
			Scale:    0.001,
			FX:       525.0,
			FY:       525.0,
			CX:       320.0,
			CY:       240.0,
		},
		Segmentation: SegmentationConfig{
			Manhattan:        4,
			MaxDist:          0.05,
			DownscaleBy:      0.16,
			DownscaleByCalib: 0.2,
		},
		Clustering: ClusteringConfig{
			K:         30,
			Attempts:  2,
			MaxIter:   10,
			Epsilon:   0.002,
			Threshold: 0.25,
		},
		Arm: ArmConfig{
			LeftSeed:           [3]float64{0.2, 0.0, -0.05},
			RightSeed:          [3]float64{-0.2, 0.0, -0.05},
			MaxDistToSeed:      0.2,
			DxDzThreshold:      1.2,
			SmoothingFactor:    0.11,
			MaxMissedSteps:     5,
			LockedAngleDegrees: 23.0,
		},
		Calibration: CalibrationConfig{
			File: "calibration.xml",
		},
		Stream: StreamConfig{
			Enabled: true,
			Address: "127.0.0.1",
			Port:    39539,
		},
	}
}

// Load reads and parses a TOML configuration file.
// If the file does not exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Depth.Width <= 0 {
		return fmt.Errorf("depth width must be positive, got %d", c.Depth.Width)
	}
	if c.Depth.Height <= 0 {
		return fmt.Errorf("depth height must be positive, got %d", c.Depth.Height)
	}
	if c.Depth.FPS <= 0 {
		return fmt.Errorf("depth FPS must be positive, got %d", c.Depth.FPS)
	}
	if c.Depth.Scale <= 0 {
		return fmt.Errorf("depth scale must be positive, got %f", c.Depth.Scale)
	}
	if c.Clustering.K <= 0 {
		return fmt.Errorf("clustering k must be positive, got %d", c.Clustering.K)
	}
	if c.Arm.SmoothingFactor < 0 || c.Arm.SmoothingFactor > 1 {
		return fmt.Errorf("arm smoothing factor must be between 0 and 1, got %f", c.Arm.SmoothingFactor)
	}
	if c.Stream.Port <= 0 || c.Stream.Port > 65535 {
		return fmt.Errorf("stream port must be between 1 and 65535, got %d", c.Stream.Port)
	}
	return nil
}
