// Package detector provides hand detection interfaces and types for the booth camera loop.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// minPalmSize is the smallest wrist to middle MCP distance treated as a real hand.
const minPalmSize = 1e-6

// Point2D is a normalized screen position.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between p and q.
func (p Point2D) Distance(q Point2D) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Finite reports whether both coordinates are real numbers.
func (p Point2D) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Point3D represents a landmark with normalized x, y and relative depth z.
// Depth is carried through from the detector but not used for classification.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Planar drops the depth component.
func (p Point3D) Planar() Point2D {
	return Point2D{X: p.X, Y: p.Y}
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// planarDistance calculates the 2D Euclidean distance between two landmarks.
func planarDistance(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Valid reports whether every landmark has finite x and y coordinates.
// Partial detector responses are padded with NaN, so they fail here.
func (h *HandLandmarks) Valid() bool {
	if h == nil {
		return false
	}
	for i := 0; i < NumLandmarks; i++ {
		if !isFinite(h.Points[i].X) || !isFinite(h.Points[i].Y) {
			return false
		}
	}
	return true
}

// PalmSize returns the planar distance between the wrist and the middle finger MCP.
// It is the per-hand scale reference for every geometric threshold.
func (h *HandLandmarks) PalmSize() float64 {
	if h == nil {
		return 0
	}
	return planarDistance(h.Points[Wrist], h.Points[MiddleMCP])
}

// Normalize normalizes the hand landmarks relative to wrist position and palm size.
// The normalized landmarks have the wrist at origin (0,0,0) and are scaled
// so that the planar distance from wrist to middle finger MCP is 1.0.
// Returns a new HandLandmarks instance with normalized points, or nil when
// the hand is nil, malformed, or has a degenerate palm.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if !h.Valid() {
		return nil
	}

	scale := h.PalmSize()
	if scale < minPalmSize {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = Point3D{
			X: (h.Points[i].X - wrist.X) / scale,
			Y: (h.Points[i].Y - wrist.Y) / scale,
			Z: (h.Points[i].Z - wrist.Z) / scale,
		}
	}

	return normalized
}
