package detector

import "gocv.io/x/gocv"

// Detector defines the interface for hand landmark sources.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected. Hand order carries
	// no identity from one frame to the next.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands the model reports per frame (default: 4).
	MaxHands int `toml:"max_hands" validate:"gte=1,lte=10"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `toml:"min_confidence" validate:"gte=0,lte=1"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `toml:"min_tracking_confidence" validate:"gte=0,lte=1"`

	// ScriptPath overrides the mediapipe_service.py lookup.
	ScriptPath string `toml:"script_path"`
}

// DefaultConfig returns a Config with sensible default values.
// A booth usually has a small group in frame, so more than two hands are allowed.
func DefaultConfig() Config {
	return Config{
		MaxHands:        4,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
