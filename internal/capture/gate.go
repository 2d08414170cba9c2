package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Change gate tuning.
const (
	// gateBlurSize is the Gaussian kernel applied before differencing.
	gateBlurSize = 5
	// gatePixelDelta is the per-pixel grey level change counted as different.
	gatePixelDelta = 12
	// gateScale is the downscale factor applied before comparison.
	gateScale = 4
)

// ChangeGate reports whether a frame differs enough from the last one it saw
// to be worth running inference on. A static screen yields the same boxes, so
// the caller can reuse the previous result.
//
// A threshold of 0 disables the gate: every frame counts as changed.
type ChangeGate struct {
	threshold float64
	prev      gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewChangeGate creates a gate that passes frames whose changed-pixel
// percentage exceeds threshold.
func NewChangeGate(threshold float64) *ChangeGate {
	if threshold < 0 {
		threshold = 0
	}
	return &ChangeGate{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Changed compares frame with the previous one and returns whether it
// passes the gate and the percentage of pixels that changed. The first
// frame always passes.
func (g *ChangeGate) Changed(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}
	if g.threshold == 0 {
		return true, 100
	}

	small := gocv.NewMat()
	defer small.Close()
	size := image.Point{X: max(1, frame.Cols()/gateScale), Y: max(1, frame.Rows()/gateScale)}
	gocv.Resize(*frame, &small, size, 0, 0, gocv.InterpolationArea)

	gray := gocv.NewMat()
	defer gray.Close()
	if small.Channels() > 1 {
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	} else {
		small.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Point{X: gateBlurSize, Y: gateBlurSize}, 0, 0, gocv.BorderDefault)

	if !g.primed || g.prev.Rows() != gray.Rows() || g.prev.Cols() != gray.Cols() {
		gray.CopyTo(&g.prev)
		g.primed = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, g.prev, &diff)
	gocv.Threshold(diff, &diff, gatePixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100.0
	gray.CopyTo(&g.prev)

	return changed > g.threshold, changed
}

// Reset forgets the previous frame so the next one passes.
func (g *ChangeGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primed = false
}

// Close releases the stored frame.
func (g *ChangeGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prev.Close()
	g.prev = gocv.NewMat()
	g.primed = false
}
