//go:build cgo
// +build cgo

package armpose

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// fourccY16 is the FourCC code for raw 16-bit grayscale depth streams,
	// the format exposed by V4L2 depth sensors (Y16 = 0x20363159).
	fourccY16 = 0x20363159
)

// DepthCamera implements DepthSource using OpenCV via GoCV, reading a
// 16-bit-per-pixel depth stream off a V4L2 device. Uses the V4L2 backend
// directly (avoids GStreamer's "Internal data stream error") with a
// mutex-guarded Open/ReadDepth/Close shape around a single-channel Y16
// depth capture.
type DepthCamera struct {
	mu sync.Mutex

	deviceID   int
	width      int
	height     int
	fps        int
	depthScale float64

	webcam *gocv.VideoCapture
	opened bool
}

// NewDepthCamera creates a depth camera source. depthScale is meters per
// raw unit (e.g. 0.001 for a sensor reporting millimeters).
func NewDepthCamera(depthScale float64) *DepthCamera {
	return &DepthCamera{depthScale: depthScale}
}

// Open initializes the device with the given configuration.
func (c *DepthCamera) Open(deviceID, width, height, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opened {
		return fmt.Errorf("depth camera already opened")
	}

	webcam, err := gocv.OpenVideoCaptureWithAPI(deviceID, gocv.VideoCaptureV4L2)
	if err != nil {
		return fmt.Errorf("failed to open depth device %d: %w", deviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return fmt.Errorf("depth device %d not found or unavailable", deviceID)
	}

	webcam.Set(gocv.VideoCaptureFOURCC, fourccY16)

	if width > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	if fps > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(fps))
	}

	actualWidth := webcam.Get(gocv.VideoCaptureFrameWidth)
	actualHeight := webcam.Get(gocv.VideoCaptureFrameHeight)
	actualFPS := webcam.Get(gocv.VideoCaptureFPS)

	c.deviceID = deviceID
	c.width = int(actualWidth)
	c.height = int(actualHeight)
	c.fps = int(actualFPS)
	c.webcam = webcam
	c.opened = true

	warmup := gocv.NewMat()
	c.webcam.Read(&warmup)
	warmup.Close()

	return nil
}

// ReadDepth captures a single depth frame and converts it into a plain
// DepthImage, copying samples out of the gocv.Mat so the core pipeline
// stages never touch cgo-backed memory.
func (c *DepthCamera) ReadDepth() (*DepthImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil, fmt.Errorf("depth camera not opened")
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := c.webcam.Read(&frame); !ok {
		return nil, fmt.Errorf("failed to read frame from depth camera")
	}
	if frame.Empty() {
		return nil, fmt.Errorf("captured depth frame is empty")
	}

	width := frame.Cols()
	height := frame.Rows()
	img := NewDepthImage(width, height, c.depthScale)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, frame.GetUShortAt(y, x))
		}
	}

	return img, nil
}

// Close releases camera resources.
func (c *DepthCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil
	}
	if c.webcam != nil {
		if err := c.webcam.Close(); err != nil {
			c.opened = false
			return fmt.Errorf("closing depth device: %w", err)
		}
	}
	c.opened = false
	return nil
}

// GetActualResolution returns the actual configured resolution, which may
// differ from the requested one if the device doesn't support it.
func (c *DepthCamera) GetActualResolution() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// GetActualFPS returns the actual configured frame rate.
func (c *DepthCamera) GetActualFPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// EnumerateDepthCameras attempts to detect available V4L2 devices. Best
// effort; devices that don't support Y16 capture will simply produce empty
// or garbage frames at ReadDepth time rather than failing here.
func EnumerateDepthCameras(maxDevices int) []int {
	var devices []int
	if maxDevices <= 0 {
		maxDevices = 10
	}

	for i := 0; i < maxDevices; i++ {
		cam, err := gocv.OpenVideoCaptureWithAPI(i, gocv.VideoCaptureV4L2)
		if err != nil {
			continue
		}
		if cam.IsOpened() {
			devices = append(devices, i)
		}
		cam.Close()
	}

	return devices
}
