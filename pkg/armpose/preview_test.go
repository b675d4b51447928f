//go:build cgo
// +build cgo

package armpose

import (
	"runtime"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestNewPreviewWindow(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("Skipping GUI test on macOS: NSWindow requires main thread")
	}
	preview := NewPreviewWindow("Test Window", 640, 480, 200)
	if preview == nil {
		t.Fatal("NewPreviewWindow returned nil")
	}
	defer preview.Close()
}

func TestPreviewWindow_Show(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("Skipping GUI test on macOS: NSWindow requires main thread")
	}
	preview := NewPreviewWindow("Test Window", 640, 480, 200)
	defer preview.Close()

	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer mat.Close()

	preview.Show(mat)
	time.Sleep(50 * time.Millisecond)
}

func TestPreviewWindow_ShowResult(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("Skipping GUI test on macOS: NSWindow requires main thread")
	}
	preview := NewPreviewWindow("Test Window", 640, 480, 200)
	defer preview.Close()

	result := &FrameResult{
		FrameNumber:    1,
		ClusterCenters: [][3]float64{{0, 0, 0.5}, {0.1, 0.1, 0.6}},
		LeftArm: ArmSnapshot{
			Tracked:     true,
			HandLoc:     Vec3{X: -0.3, Y: 0, Z: 0.5},
			ElbowLoc:    Vec3{X: -0.2, Y: 0, Z: 0.4},
			ShoulderLoc: Vec3{X: -0.1, Y: 0, Z: 0.3},
		},
		RightArm: ArmSnapshot{Tracked: false},
	}

	preview.ShowResult(result)
	time.Sleep(50 * time.Millisecond)
}

func TestPreviewWindow_Close(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("Skipping GUI test on macOS: NSWindow requires main thread")
	}
	preview := NewPreviewWindow("Test Window", 640, 480, 200)

	if err := preview.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	if err := preview.Close(); err != nil {
		t.Errorf("second Close() returned error: %v", err)
	}
}

func TestPreviewWindow_Project(t *testing.T) {
	preview := &PreviewWindow{width: 640, height: 480, scale: 100}

	center := preview.project(Vec3{})
	if center.X != 320 || center.Y != 240 {
		t.Errorf("expected origin to project to canvas center, got %v", center)
	}

	shifted := preview.project(Vec3{X: 1, Z: 1})
	if shifted.X != 420 || shifted.Y != 340 {
		t.Errorf("unexpected projection for (1,0,1): %v", shifted)
	}
}
