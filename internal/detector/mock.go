package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Scaled returns a copy of h with every coordinate multiplied by f.
func (h HandLandmarks) Scaled(f float64) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i].X *= f
		out.Points[i].Y *= f
		out.Points[i].Z *= f
	}
	return out
}

// Moved returns a copy of h translated by (dx, dy).
func (h HandLandmarks) Moved(dx, dy float64) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i].X += dx
		out.Points[i].Y += dy
	}
	return out
}

// setFinger fills the four joints of one finger starting at the given MCP index.
func setFinger(h *HandLandmarks, base int, pts [4][2]float64) {
	for i, p := range pts {
		h.Points[base+i] = Point3D{X: p[0], Y: p[1]}
	}
}

// newFixture builds a right hand with the wrist at (0.5, 0.8) and a palm size of 0.15.
func newFixture(thumb, index, middle, ring, pinky [4][2]float64) HandLandmarks {
	h := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}
	h.Points[Wrist] = Point3D{X: 0.5, Y: 0.8}
	setFinger(&h, ThumbCMC, thumb)
	setFinger(&h, IndexMCP, index)
	setFinger(&h, MiddleMCP, middle)
	setFinger(&h, RingMCP, ring)
	setFinger(&h, PinkyMCP, pinky)
	return h
}

var (
	thumbTucked   = [4][2]float64{{0.46, 0.76}, {0.44, 0.72}, {0.45, 0.69}, {0.48, 0.68}}
	thumbSpread   = [4][2]float64{{0.55, 0.76}, {0.60, 0.72}, {0.64, 0.68}, {0.68, 0.64}}
	indexUp       = [4][2]float64{{0.54, 0.66}, {0.56, 0.56}, {0.57, 0.49}, {0.58, 0.43}}
	indexCurled   = [4][2]float64{{0.54, 0.66}, {0.55, 0.61}, {0.54, 0.66}, {0.53, 0.69}}
	middleUp      = [4][2]float64{{0.50, 0.65}, {0.50, 0.54}, {0.50, 0.47}, {0.50, 0.40}}
	middleCurled  = [4][2]float64{{0.50, 0.65}, {0.50, 0.60}, {0.50, 0.65}, {0.50, 0.68}}
	ringUp        = [4][2]float64{{0.46, 0.66}, {0.45, 0.56}, {0.44, 0.49}, {0.44, 0.43}}
	ringCurled    = [4][2]float64{{0.46, 0.66}, {0.45, 0.61}, {0.46, 0.66}, {0.47, 0.69}}
	pinkyUp       = [4][2]float64{{0.43, 0.68}, {0.41, 0.61}, {0.40, 0.56}, {0.39, 0.51}}
	pinkyCurled   = [4][2]float64{{0.43, 0.68}, {0.42, 0.64}, {0.43, 0.68}, {0.44, 0.71}}
	thumbToIndex  = [4][2]float64{{0.55, 0.76}, {0.59, 0.71}, {0.61, 0.66}, {0.60, 0.61}}
	indexToThumb  = [4][2]float64{{0.54, 0.66}, {0.59, 0.59}, {0.61, 0.58}, {0.60, 0.60}}
	thumbOverFist = [4][2]float64{{0.46, 0.76}, {0.44, 0.72}, {0.46, 0.69}, {0.50, 0.69}}
)

// TwoFingersLandmarks returns a peace sign: index and middle up, ring and pinky curled.
func TwoFingersLandmarks() HandLandmarks {
	return newFixture(thumbTucked, indexUp, middleUp, ringCurled, pinkyCurled)
}

// OkHandLandmarks returns a ring shape: thumb and index tips touching, other fingers up.
func OkHandLandmarks() HandLandmarks {
	return newFixture(thumbToIndex, indexToThumb, middleUp, ringUp, pinkyUp)
}

// OpenPalmLandmarks returns an open palm with the thumb spread away from the index.
func OpenPalmLandmarks() HandLandmarks {
	return newFixture(thumbSpread, indexUp, middleUp, ringUp, pinkyUp)
}

// FistLandmarks returns a closed fist, which is no gesture.
func FistLandmarks() HandLandmarks {
	return newFixture(thumbOverFist, indexCurled, middleCurled, ringCurled, pinkyCurled)
}
