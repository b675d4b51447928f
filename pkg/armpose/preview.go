//go:build cgo
// +build cgo

package armpose

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// PreviewWindow provides a simple debug window drawing cluster centers and
// the traced arm chains instead of face landmarks. OpenCV UI functions must
// be called from the main thread on Linux/X11, so the window runs its own
// loop on a locked OS thread.
type PreviewWindow struct {
	window   *gocv.Window
	frameCh  chan gocv.Mat
	closeCh  chan struct{}
	doneCh   chan struct{}
	once     sync.Once
	initDone chan struct{}

	width, height int
	scale         float64 // pixels per meter
}

// NewPreviewWindow creates a preview window of the given canvas size. scale
// converts world-frame meters to canvas pixels around the canvas center.
func NewPreviewWindow(title string, width, height int, scale float64) *PreviewWindow {
	p := &PreviewWindow{
		frameCh:  make(chan gocv.Mat, 1),
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
		initDone: make(chan struct{}),
		width:    width,
		height:   height,
		scale:    scale,
	}

	go p.previewLoop(title)
	<-p.initDone

	return p
}

func (p *PreviewWindow) previewLoop(title string) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p.window = gocv.NewWindow(title)
	close(p.initDone)

	for {
		select {
		case frame := <-p.frameCh:
			p.window.IMShow(frame)
			p.window.WaitKey(1)
			frame.Close()

		case <-p.closeCh:
			if p.window != nil {
				p.window.Close()
			}
			close(p.doneCh)
			return
		}
	}
}

// ShowResult renders a FrameResult's cluster centers and arm chains onto a
// fresh canvas and displays it. Each world point (x, z) is projected to
// canvas pixels (x drives horizontal, z drives vertical — a top-down view,
// since z is "distance from camera" and is the most legible axis for
// checking arm-chain shape).
func (p *PreviewWindow) ShowResult(result *FrameResult) {
	canvas := gocv.NewMatWithSize(p.height, p.width, gocv.MatTypeCV8UC3)
	defer func() { canvas.Close() }()

	for _, c := range result.ClusterCenters {
		pt := p.project(Vec3{X: c[0], Y: c[1], Z: c[2]})
		gocv.Circle(&canvas, pt, 3, color.RGBA{R: 80, G: 80, B: 80, A: 255}, -1)
	}

	p.drawArm(&canvas, result.LeftArm, color.RGBA{R: 0, G: 200, B: 0, A: 255})
	p.drawArm(&canvas, result.RightArm, color.RGBA{R: 0, G: 120, B: 255, A: 255})

	gocv.PutText(&canvas, fmt.Sprintf("frame %d", result.FrameNumber),
		image.Pt(8, 16), gocv.FontHersheyPlain, 1.0, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 1)

	p.Show(canvas)
}

func (p *PreviewWindow) drawArm(canvas *gocv.Mat, arm ArmSnapshot, c color.RGBA) {
	if !arm.Tracked {
		return
	}
	hand := p.project(arm.HandLoc)
	elbow := p.project(arm.ElbowLoc)
	shoulder := p.project(arm.ShoulderLoc)

	gocv.Line(canvas, hand, elbow, c, 2)
	gocv.Line(canvas, elbow, shoulder, c, 2)
	gocv.Circle(canvas, hand, 5, c, -1)
	gocv.Circle(canvas, elbow, 5, c, -1)
	gocv.Circle(canvas, shoulder, 5, c, -1)
}

func (p *PreviewWindow) project(v Vec3) image.Point {
	px := p.width/2 + int(v.X*p.scale)
	py := p.height/2 + int(v.Z*p.scale)
	return image.Pt(px, py)
}

// Show displays a frame in the preview window. The frame is cloned
// internally so the caller can close (or reuse) the original.
func (p *PreviewWindow) Show(frame gocv.Mat) {
	if frame.Empty() {
		return
	}

	cloned := frame.Clone()

	select {
	case p.frameCh <- cloned:
	default:
		cloned.Close()
	}
}

// Close closes the preview window and releases resources.
func (p *PreviewWindow) Close() error {
	p.once.Do(func() {
		close(p.closeCh)
		<-p.doneCh
	})
	return nil
}
