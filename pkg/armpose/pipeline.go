// Package armpose implements the depth-camera upper-body pose pipeline:
// segmentation of the nearest object, back-projection into a calibrated
// point cloud, k-means summarization, and arm-chain tracing with temporal
// smoothing.
//
// The pipeline assumes a fixed camera, a user facing it at a roughly known
// distance, and approximately known left/right hand seed positions in the
// calibrated world frame. It is not a general-purpose skeletal tracker.
//
// # Quick start
//
// Build a Pipeline with a concrete DepthSource and a loaded calibration:
//
//	src := armpose.NewDepthCamera(0.001) // meters per raw depth unit
//	xf, _ := armpose.LoadCalibration("calibration.xml") // identity if the file is missing
//	pipe, err := armpose.NewPipeline(cfg, src, xf)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pipe.Close()
//
//	if err := pipe.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
//	results := pipe.Subscribe()
//	for res := range results {
//	    fmt.Printf("left hand: %+v\n", res.LeftArm.HandLoc)
//	}
//
// # Architecture
//
//   - Pipeline: main coordinator managing capture, tracking, and output.
//   - DepthSource: depth camera capture abstraction (pluggable).
//   - FrameSegmenter/CloudBuilder/Calibrator/Clusterer/ArmTracer: the
//     per-frame processing stages.
//   - Sender: protocol senders for downstream consumers (UDP joint stream).
package armpose

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common errors returned by the pipeline coordinator.
var (
	ErrPipelineClosed  = errors.New("armpose: pipeline is closed")
	ErrPipelineRunning = errors.New("armpose: pipeline is already running")
	ErrPipelineStopped = errors.New("armpose: pipeline is not running")
	ErrDeviceAbsent    = errors.New("armpose: no depth source configured")
)

// DepthSource is the interface for depth camera capture backends.
type DepthSource interface {
	// Open initializes the device with the given configuration.
	Open(deviceID, width, height, fps int) error
	// ReadDepth captures a single depth frame.
	ReadDepth() (*DepthImage, error)
	// Close releases device resources.
	Close() error
}

// Sender is the interface for protocol output senders (e.g. the UDP joint
// broadcaster in stream.go).
type Sender interface {
	Send(result *FrameResult) error
	Close() error
}

// ArmSide distinguishes the left and right arm within a FrameResult.
type ArmSide int

const (
	LeftArm ArmSide = iota
	RightArm
)

// ArmSnapshot is a read-only copy of one arm's joint state for a frame,
// suitable for handing to renderers/senders without exposing the live
// *ArmTracer.
type ArmSnapshot struct {
	Tracked             bool
	HandLoc             Vec3
	ElbowLoc            Vec3
	ShoulderLoc         Vec3
	BendAngleDegrees    float64
	Locked              bool
}

// FrameResult contains all tracking results for a single frame: cluster
// centers plus left/right upper-body arm state.
type FrameResult struct {
	Timestamp   time.Time
	FrameNumber uint64

	// ClusterCenters holds the current K cluster centers (stale from the
	// last successful Cluster call if this frame had too few points to
	// re-cluster), for consumers like the debug preview.
	ClusterCenters [][3]float64

	LeftArm  ArmSnapshot
	RightArm ArmSnapshot
}

// PipelineState represents the current state of the Pipeline.
type PipelineState int

const (
	StateIdle PipelineState = iota
	StateRunning
	StateStopped
	StateClosed
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PipelineConfig bundles the tunables for every stage, mirroring
// internal/config.Config's [depth]/[segmentation]/[clustering]/[arm]
// sections without importing that package (keeps pkg/armpose free of a
// dependency on internal/).
type PipelineConfig struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int

	Intrinsics Intrinsics

	SegManhattan int
	SegMaxDist   float64
	DownscaleBy  float64

	ClusterK         int
	ClusterAttempts  int
	ClusterMaxIter   int
	ClusterEpsilon   float64
	ClusterThreshold float64

	LeftSeed, RightSeed Vec3
	MaxDistToSeed       float64
	DxDzThreshold       float64
	SmoothingFactor     float64
	MaxMissedSteps      int
	LockedAngleDegrees  float64
}

// Pipeline is the main coordinator for depth-camera arm tracking: a
// mutex-guarded state machine driving a cancellable trackingLoop goroutine
// through the segment→deproject→cluster→trace chain, fanning results out to
// Subscribe channels and Senders.
type Pipeline struct {
	cfg PipelineConfig

	mu          sync.RWMutex
	state       PipelineState
	source      DepthSource
	senders     []Sender
	subscribers []chan *FrameResult
	transform   CalibrationTransform

	segmenter *FrameSegmenter
	builder   *CloudBuilder
	clusterer *Clusterer
	leftArm   *ArmTracer
	rightArm  *ArmTracer
	cloud     *PointCloud

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	frameCount uint64
}

// NewPipeline builds a Pipeline wired for tracking mode: source is opened by
// Start, frames flow through FrameSegmenter → CloudBuilder → Clusterer →
// ArmTracer (left and right). xf is the calibration transform to install
// into the CloudBuilder (typically loaded via LoadCalibration).
func NewPipeline(cfg PipelineConfig, source DepthSource, xf CalibrationTransform) (*Pipeline, error) {
	if source == nil {
		return nil, ErrDeviceAbsent
	}

	builder := NewCloudBuilder(cfg.Intrinsics)
	builder.SetTransform(xf)
	clusterer := NewClusterer(cfg.ClusterK, nil)

	return &Pipeline{
		cfg:       cfg,
		state:     StateIdle,
		source:    source,
		transform: xf,
		segmenter: NewFrameSegmenter(cfg.SegManhattan, cfg.SegMaxDist),
		builder:   builder,
		clusterer: clusterer,
		leftArm:   NewArmTracer(clusterer, cfg.LeftSeed, cfg.MaxDistToSeed, cfg.DxDzThreshold, cfg.MaxMissedSteps),
		rightArm:  NewArmTracer(clusterer, cfg.RightSeed, cfg.MaxDistToSeed, cfg.DxDzThreshold, cfg.MaxMissedSteps),
		cloud:     NewPointCloud(),
	}, nil
}

// State returns the current pipeline state.
func (p *Pipeline) State() PipelineState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// AddSender attaches a downstream protocol sender. Must be called before
// Start().
func (p *Pipeline) AddSender(s Sender) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return fmt.Errorf("armpose: cannot add sender: pipeline is %s", p.state)
	}
	p.senders = append(p.senders, s)
	return nil
}

// Subscribe returns a channel that receives per-frame results. The caller
// must drain the channel or risk blocking the pipeline. Close() closes all
// subscriber channels.
func (p *Pipeline) Subscribe() <-chan *FrameResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan *FrameResult, 10)
	p.subscribers = append(p.subscribers, ch)
	return ch
}

// Start opens the depth source and begins the tracking loop in the
// background.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateRunning:
		return ErrPipelineRunning
	case StateClosed:
		return ErrPipelineClosed
	}

	if err := p.source.Open(p.cfg.DeviceID, p.cfg.Width, p.cfg.Height, p.cfg.FPS); err != nil {
		return fmt.Errorf("armpose: opening depth source: %w", err)
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.state = StateRunning
	p.frameCount = 0

	p.wg.Add(1)
	go p.trackingLoop()

	return nil
}

// Stop halts the tracking loop without releasing resources.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return ErrPipelineStopped
	}
	p.cancel()
	p.state = StateStopped
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

// Close stops the pipeline (if running) and releases all resources.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return ErrPipelineClosed
	}
	if p.state == StateRunning {
		p.cancel()
	}
	p.state = StateClosed
	p.mu.Unlock()

	p.wg.Wait()

	var errs []error

	p.mu.Lock()
	if err := p.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing depth source: %w", err))
	}
	for _, s := range p.senders {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing sender: %w", err))
		}
	}
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
	p.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("armpose: closing pipeline: %v", errs)
	}
	return nil
}

// trackingLoop is the main capture-and-process loop, ticking at the
// configured FPS. Each camera is driven by exactly one trackingLoop
// goroutine, so no stage needs its own locking.
func (p *Pipeline) trackingLoop() {
	defer p.wg.Done()

	fps := p.cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.processFrame()
		}
	}
}

// processFrame runs one frame through Segment → Build → Cluster →
// ConnectMeans → UpdateJoints and fans the result out to senders and
// subscribers.
func (p *Pipeline) processFrame() {
	raw, err := p.source.ReadDepth()
	if err != nil {
		return
	}

	_, filtered := p.segmenter.Segment(raw)
	if p.cfg.DownscaleBy > 0 && p.cfg.DownscaleBy < 1 {
		filtered = Downscale(filtered, p.cfg.DownscaleBy)
	}

	p.builder.Build(filtered, p.cloud)
	p.clusterer.UpdatePointCloud(p.cloud)

	if p.clusterer.Cluster(p.cfg.ClusterAttempts, p.cfg.ClusterMaxIter, p.cfg.ClusterEpsilon) {
		p.clusterer.ConnectMeans(p.cfg.ClusterThreshold)
	}

	leftTracked := p.leftArm.UpdateJoints(p.cfg.SmoothingFactor)
	rightTracked := p.rightArm.UpdateJoints(p.cfg.SmoothingFactor)

	p.frameCount++
	result := &FrameResult{
		Timestamp:      time.Now(),
		FrameNumber:    p.frameCount,
		ClusterCenters: denseToRows(p.clusterer.Centers),
		LeftArm:        snapshot(p.leftArm, leftTracked, p.cfg.LockedAngleDegrees),
		RightArm:       snapshot(p.rightArm, rightTracked, p.cfg.LockedAngleDegrees),
	}

	p.mu.RLock()
	senders := p.senders
	subscribers := p.subscribers
	p.mu.RUnlock()

	for _, s := range senders {
		_ = s.Send(result)
	}

	for _, ch := range subscribers {
		select {
		case ch <- result:
		default:
			// Drop the frame if the subscriber is slow rather than block
			// the tracking loop.
		}
	}
}

func snapshot(a *ArmTracer, tracked bool, lockedThreshold float64) ArmSnapshot {
	angle := a.BendAngle()
	return ArmSnapshot{
		Tracked:          tracked,
		HandLoc:          a.HandLoc,
		ElbowLoc:         a.ElbowLoc,
		ShoulderLoc:      a.ShoulderLoc,
		BendAngleDegrees: angle,
		Locked:           angle < lockedThreshold,
	}
}

func denseToRows(m interface {
	Dims() (int, int)
	At(i, j int) float64
}) [][3]float64 {
	rows, _ := m.Dims()
	out := make([][3]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = [3]float64{m.At(i, 0), m.At(i, 1), m.At(i, 2)}
	}
	return out
}
