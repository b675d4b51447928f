// Package main provides the CLI wrapper for the arm-pose pipeline.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/depthpose/armpose/internal/config"
	"github.com/depthpose/armpose/pkg/armpose"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	calibPath := flag.String("calib", "", "Path to calibration file (overrides config)")
	streamAddr := flag.String("stream-addr", "", "Joint stream target address:port (overrides config)")
	showVersion := flag.Bool("version", false, "Show version information")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	preview := flag.Bool("preview", false, "Show debug preview window")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pose - depth-camera upper-body arm tracking\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [calibrate]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                     # Run tracking with default settings\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s calibrate           # Run interactive calibration\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -preview            # Show debug preview window\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("pose version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) > 1 || (len(args) == 1 && args[0] != "calibrate") {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	calibrationFile := cfg.Calibration.File
	if *calibPath != "" {
		calibrationFile = *calibPath
	}

	if len(args) == 1 && args[0] == "calibrate" {
		if err := runCalibrate(cfg, calibrationFile, *verbose); err != nil {
			log.Printf("Calibration failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := runTrack(cfg, calibrationFile, *streamAddr, *verbose, *preview); err != nil {
		log.Printf("Tracking failed: %v", err)
		os.Exit(1)
	}
}

func intrinsicsFromConfig(d config.DepthConfig) armpose.Intrinsics {
	return armpose.Intrinsics{FX: d.FX, FY: d.FY, CX: d.CX, CY: d.CY, Width: d.Width, Height: d.Height}
}

func runCalibrate(cfg *config.Config, calibrationFile string, verbose bool) error {
	source := armpose.NewDepthCamera(cfg.Depth.Scale)
	if err := source.Open(cfg.Depth.DeviceID, cfg.Depth.Width, cfg.Depth.Height, cfg.Depth.FPS); err != nil {
		return fmt.Errorf("opening depth source: %w", err)
	}
	defer source.Close()

	segmenter := armpose.NewFrameSegmenter(cfg.Segmentation.Manhattan, cfg.Segmentation.MaxDist)
	builder := armpose.NewCloudBuilder(intrinsicsFromConfig(cfg.Depth))
	cloud := armpose.NewPointCloud()
	var calibrator armpose.Calibrator

	log.Println("Capturing calibration frames. Present the flat reference surface to the camera.")

	var xf armpose.CalibrationTransform
	var calibrated bool
	for attempts := 0; attempts < 300; attempts++ {
		raw, err := source.ReadDepth()
		if err != nil {
			continue
		}
		_, filtered := segmenter.Segment(raw)
		if cfg.Segmentation.DownscaleByCalib > 0 && cfg.Segmentation.DownscaleByCalib < 1 {
			filtered = armpose.Downscale(filtered, cfg.Segmentation.DownscaleByCalib)
		}
		builder.Build(filtered, cloud)

		result, ok := calibrator.Calibrate(cloud)
		if !ok {
			continue
		}
		xf = result
		calibrated = true
		break
	}

	if !calibrated {
		return fmt.Errorf("could not acquire a stable calibration cloud after 300 attempts")
	}

	fmt.Print("Enter manual offset as dx,dy,dz (blank to skip): ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = trimNewline(line)
	if line != "" {
		if err := armpose.ApplyManualOffset(&xf, line); err != nil {
			log.Printf("Warning: %v; keeping computed offset", err)
		}
	}

	if err := armpose.SaveCalibration(calibrationFile, xf); err != nil {
		return fmt.Errorf("saving calibration: %w", err)
	}

	if verbose {
		log.Printf("Calibration saved to %s", calibrationFile)
	}
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func runTrack(cfg *config.Config, calibrationFile, streamAddrOverride string, verbose, preview bool) error {
	xf, err := armpose.LoadCalibration(calibrationFile)
	if err != nil {
		if err == armpose.ErrCalibrationMissing {
			log.Printf("Warning: no calibration file at %s, using identity transform", calibrationFile)
		} else {
			return fmt.Errorf("loading calibration: %w", err)
		}
	}

	source := armpose.NewDepthCamera(cfg.Depth.Scale)

	pcfg := armpose.PipelineConfig{
		DeviceID:           cfg.Depth.DeviceID,
		Width:              cfg.Depth.Width,
		Height:             cfg.Depth.Height,
		FPS:                cfg.Depth.FPS,
		Intrinsics:         intrinsicsFromConfig(cfg.Depth),
		SegManhattan:       cfg.Segmentation.Manhattan,
		SegMaxDist:         cfg.Segmentation.MaxDist,
		DownscaleBy:        cfg.Segmentation.DownscaleBy,
		ClusterK:           cfg.Clustering.K,
		ClusterAttempts:    cfg.Clustering.Attempts,
		ClusterMaxIter:     cfg.Clustering.MaxIter,
		ClusterEpsilon:     cfg.Clustering.Epsilon,
		ClusterThreshold:   cfg.Clustering.Threshold,
		LeftSeed:           armpose.Vec3{X: cfg.Arm.LeftSeed[0], Y: cfg.Arm.LeftSeed[1], Z: cfg.Arm.LeftSeed[2]},
		RightSeed:          armpose.Vec3{X: cfg.Arm.RightSeed[0], Y: cfg.Arm.RightSeed[1], Z: cfg.Arm.RightSeed[2]},
		MaxDistToSeed:      cfg.Arm.MaxDistToSeed,
		DxDzThreshold:      cfg.Arm.DxDzThreshold,
		SmoothingFactor:    cfg.Arm.SmoothingFactor,
		MaxMissedSteps:     cfg.Arm.MaxMissedSteps,
		LockedAngleDegrees: cfg.Arm.LockedAngleDegrees,
	}

	pipe, err := armpose.NewPipeline(pcfg, source, xf)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}
	defer pipe.Close()

	streamAddr := cfg.Stream.Address
	streamPort := cfg.Stream.Port
	if streamAddrOverride != "" {
		streamAddr, streamPort = splitHostPort(streamAddrOverride, streamPort)
	}

	if cfg.Stream.Enabled {
		sender, err := armpose.NewJointSender(streamAddr, streamPort)
		if err != nil {
			return fmt.Errorf("creating joint stream sender: %w", err)
		}
		if err := pipe.AddSender(sender); err != nil {
			return fmt.Errorf("attaching joint stream sender: %w", err)
		}
		log.Printf("Joint stream configured: %s:%d", streamAddr, streamPort)
	}

	var results <-chan *armpose.FrameResult
	if verbose || preview {
		results = pipe.Subscribe()
	}

	if err := pipe.Start(); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}
	log.Println("Tracking started. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if results != nil {
		var window *armpose.PreviewWindow
		if preview {
			window = armpose.NewPreviewWindow("pose preview", 640, 480, 200)
			defer window.Close()
		}

		for {
			select {
			case sig := <-sigCh:
				log.Printf("Received signal %v, shutting down...", sig)
				return nil
			case res, ok := <-results:
				if !ok {
					return nil
				}
				if window != nil {
					window.ShowResult(res)
				}
				if verbose && res.FrameNumber%30 == 0 {
					log.Printf("Frame %d: left=%v right=%v", res.FrameNumber, res.LeftArm.Tracked, res.RightArm.Tracked)
				}
			}
		}
	}

	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)
	return nil
}

func splitHostPort(addr string, fallbackPort int) (string, int) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			host := addr[:i]
			var port int
			fmt.Sscanf(addr[i+1:], "%d", &port)
			if port == 0 {
				port = fallbackPort
			}
			return host, port
		}
	}
	return addr, fallbackPort
}
