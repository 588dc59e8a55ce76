// Package capture reads camera frames with GoCV (OpenCV) and writes booth photos.
package capture

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings.
const (
	DefaultWidth     = 640
	DefaultHeight    = 480
	DefaultIdleFPS   = 5
	DefaultActiveFPS = 15
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned when no usable frame is available.
	ErrNoFrame = errors.New("no frame available")
)

// Config holds camera and motion gate settings.
type Config struct {
	DeviceID int `toml:"device_id" validate:"gte=0"`
	Width    int `toml:"width" validate:"gte=160"`
	Height   int `toml:"height" validate:"gte=120"`
	// IdleFPS is the frame rate while nothing moves in front of the booth.
	IdleFPS int `toml:"idle_fps" validate:"gte=1,lte=60"`
	// ActiveFPS is the frame rate once motion is seen.
	ActiveFPS int `toml:"active_fps" validate:"gte=1,lte=60"`
	// MotionThreshold is the percentage of changed pixels that counts as motion.
	MotionThreshold float64 `toml:"motion_threshold" validate:"gt=0,lte=100"`
	// IdleAfter is how long without motion before dropping back to IdleFPS.
	IdleAfter time.Duration `toml:"idle_after" validate:"gt=0"`
	// JPEGQuality is the quality used for saved photos.
	JPEGQuality int `toml:"jpeg_quality" validate:"gte=1,lte=100"`
}

// DefaultConfig returns settings for a 640x480 webcam on device 0.
func DefaultConfig() Config {
	return Config{
		DeviceID:        0,
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		IdleFPS:         DefaultIdleFPS,
		ActiveFPS:       DefaultActiveFPS,
		MotionThreshold: 1.0,
		IdleAfter:       2 * time.Second,
		JPEGQuality:     92,
	}
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a Camera for config.DeviceID starting at the idle frame rate.
func NewCamera(config Config) Camera {
	fps := config.IdleFPS
	if fps <= 0 {
		fps = DefaultIdleFPS
	}
	if config.Width <= 0 {
		config.Width = DefaultWidth
	}
	if config.Height <= 0 {
		config.Height = DefaultHeight
	}
	return &cameraImpl{config: config, fps: fps}
}

// Open opens the camera at the configured resolution.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.config.DeviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true
	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false
	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrNoFrame
	}
	return &mat, nil
}

// SetFPS sets the capture frame rate. Values <= 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
