package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// blurKernel is the Gaussian blur kernel size applied before differencing.
	blurKernel = 21
	// pixelDelta is the per-pixel intensity change that counts as changed.
	pixelDelta = 25
)

// MotionDetector detects motion between consecutive frames by differencing
// blurred grayscale images.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change, so 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and reports whether motion was
// seen along with the changed pixel percentage. The first frame only sets the
// baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurKernel, Y: blurKernel}, 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100.0
	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Close releases the baseline frame.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *MotionDetector) resetLocked() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold changes the motion threshold. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Gate switches the pipeline between idle and active frame rates.
// It goes active on motion and back to idle after IdleAfter without any.
type Gate struct {
	idleFPS    int
	activeFPS  int
	idleAfter  time.Duration
	active     bool
	lastMotion time.Time
}

// NewGate creates a Gate from the camera config, starting idle.
func NewGate(config Config) *Gate {
	g := &Gate{
		idleFPS:   config.IdleFPS,
		activeFPS: config.ActiveFPS,
		idleAfter: config.IdleAfter,
	}
	if g.idleFPS <= 0 {
		g.idleFPS = DefaultIdleFPS
	}
	if g.activeFPS <= 0 {
		g.activeFPS = DefaultActiveFPS
	}
	return g
}

// Update records whether this frame had motion. It returns true when the
// mode changed, in which case FPS holds the new rate.
func (g *Gate) Update(motion bool, now time.Time) bool {
	if motion {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return true
		}
		return false
	}
	if g.active && now.Sub(g.lastMotion) > g.idleAfter {
		g.active = false
		return true
	}
	return false
}

// Hold keeps the gate active as if motion was seen at now.
// The pipeline calls it while hands are on screen or a session is running.
func (g *Gate) Hold(now time.Time) bool {
	return g.Update(true, now)
}

// Active reports whether the gate is in active mode.
func (g *Gate) Active() bool { return g.active }

// FPS returns the frame rate for the current mode.
func (g *Gate) FPS() int {
	if g.active {
		return g.activeFPS
	}
	return g.idleFPS
}

// Interval returns the frame interval for the current mode.
func (g *Gate) Interval() time.Duration {
	return time.Second / time.Duration(g.FPS())
}
