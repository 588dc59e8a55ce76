// Package app wires the camera loop, the gesture core and the session machine
// into the running kiosk.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handbooth/internal/capture"
	"github.com/ayusman/handbooth/internal/config"
	"github.com/ayusman/handbooth/internal/delivery"
	"github.com/ayusman/handbooth/internal/detector"
	"github.com/ayusman/handbooth/internal/gesture"
	"github.com/ayusman/handbooth/internal/hold"
	"github.com/ayusman/handbooth/internal/plugin"
	"github.com/ayusman/handbooth/internal/session"
	"github.com/ayusman/handbooth/internal/store"
	"github.com/ayusman/handbooth/internal/tracker"
)

// Options holds the collaborators for New. Only Config is required.
type Options struct {
	Config *config.Config
	Store  *store.Store
	// Camera defaults to the gocv camera from Config.Camera.
	Camera capture.Camera
	// Detector defaults to MediaPipe, falling back to MockDetector.
	Detector detector.Detector
	// Capturer defaults to a Photographer on the frame buffer.
	Capturer  session.Capturer
	Scheduler session.Scheduler
	// Sinks are added to the store, plugin and NATS sinks.
	Sinks  []delivery.Sink
	Logger *zap.Logger
}

// Confirmation is the latest confirmed gesture, accepted or not.
type Confirmation struct {
	HandID   int
	Label    gesture.Label
	State    session.State
	Accepted bool
	At       time.Time
}

// App is the kiosk: it owns the pipeline and every component it drives.
type App struct {
	config *config.Config
	store  *store.Store
	logger *zap.Logger

	camera       capture.Camera
	frames       *capture.FrameBuffer
	motion       *capture.MotionDetector
	gate         *capture.Gate
	photographer *capture.Photographer

	classifier  *gesture.Classifier
	tracker     *tracker.Tracker
	accumulator *hold.Accumulator
	machine     *session.Machine

	pluginMgr  *plugin.Manager
	dispatcher *delivery.Dispatcher
	publisher  *delivery.NatsPublisher

	// procMu is the single exclusion scope for tracker, accumulator and the
	// confirmations they feed into the machine.
	procMu sync.Mutex

	mu            sync.RWMutex
	detector      detector.Detector
	enabled       bool
	stopCh        chan struct{}
	done          chan struct{}
	overlays      []func(Overlay)
	confirms      []func(Confirmation)
	last          *Confirmation
	lastSessionID string
}

// New builds the kiosk from opts. The pipeline does not run until Start.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	vocabulary, err := cfg.Vocabulary()
	if err != nil {
		return nil, err
	}
	classifier, err := gesture.NewClassifier(cfg.Gesture.Thresholds, vocabulary...)
	if err != nil {
		return nil, err
	}
	sessionConfig, err := cfg.SessionConfig()
	if err != nil {
		return nil, err
	}

	a := &App{
		config:      cfg,
		store:       opts.Store,
		logger:      logger.Named("app"),
		camera:      opts.Camera,
		frames:      capture.NewFrameBuffer(),
		motion:      capture.NewMotionDetector(cfg.Camera.MotionThreshold),
		gate:        capture.NewGate(cfg.Camera),
		classifier:  classifier,
		tracker:     tracker.New(cfg.Tracker),
		accumulator: hold.New(cfg.Hold),
		detector:    opts.Detector,
		enabled:     true,
	}
	if a.camera == nil {
		a.camera = capture.NewCamera(cfg.Camera)
	}
	a.photographer = capture.NewPhotographer(a.frames, cfg.PhotoDir(), cfg.Camera.JPEGQuality)

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(cfg.Detector); err == nil {
			a.detector = mp
			a.logger.Info("using MediaPipe hand detection")
		} else {
			a.logger.Warn("MediaPipe not available, using mock detector", zap.Error(err))
			a.detector = detector.NewMockDetector()
		}
	}

	a.dispatcher = delivery.NewDispatcher(cfg.Delivery.QueueSize, logger, a.sinks(opts.Sinks)...)
	a.dispatcher.Start()

	capturer := opts.Capturer
	if capturer == nil {
		capturer = session.CapturerFunc(a.takePhoto)
	}
	a.machine = session.New(sessionConfig, capturer, a.dispatcher.Handoff, opts.Scheduler, logger)
	a.lastSessionID = a.machine.Snapshot().SessionID
	a.machine.OnChange(a.onSessionChange)

	return a, nil
}

// sinks builds the delivery sinks. A NATS connection failure disables that
// sink only.
func (a *App) sinks(extra []delivery.Sink) []delivery.Sink {
	var sinks []delivery.Sink
	if a.store != nil {
		sinks = append(sinks, delivery.NewStoreSink(a.store))
	}

	if a.config.PluginDir != "" {
		a.pluginMgr = plugin.NewManager(a.config.PluginDir, a.logger)
		if err := a.pluginMgr.Discover(); err != nil {
			a.logger.Warn("plugin discovery failed", zap.Error(err))
		}
		sinks = append(sinks, delivery.NewPluginSink(a.pluginMgr, plugin.NewExecutor(a.config.Delivery.PluginTimeout)))
	}

	if url := a.config.Delivery.NatsURL; url != "" {
		pub, err := delivery.NewNatsPublisher(url, a.config.Delivery.Stream, a.config.Delivery.Subject, a.logger)
		if err != nil {
			a.logger.Warn("NATS delivery disabled", zap.String("url", url), zap.Error(err))
		} else {
			a.publisher = pub
			sinks = append(sinks, delivery.NewNatsSink(pub, a.config.Delivery.Subject))
		}
	}

	return append(sinks, extra...)
}

// takePhoto captures the next photo of the current session.
func (a *App) takePhoto(ctx context.Context) (session.Photo, error) {
	snap := a.machine.Snapshot()
	path, err := a.photographer.Capture(ctx, snap.SessionID, len(snap.Photos)+1)
	if err != nil {
		return session.Photo{}, err
	}
	return session.Photo{Path: path, TakenAt: time.Now()}, nil
}

// onSessionChange mirrors session lifecycle into the store.
func (a *App) onSessionChange(snap session.Snapshot) {
	a.mu.Lock()
	previous := a.lastSessionID
	a.lastSessionID = snap.SessionID
	a.mu.Unlock()

	if a.store == nil {
		return
	}
	now := time.Now()
	if previous != snap.SessionID {
		if err := a.store.Sessions().Abandon(previous, now); err != nil {
			a.logger.Error("failed to abandon session", zap.String("session_id", previous), zap.Error(err))
		}
	}
	if snap.State == session.Countdown {
		if err := a.store.Sessions().Ensure(snap.SessionID, now); err != nil {
			a.logger.Error("failed to record session", zap.String("session_id", snap.SessionID), zap.Error(err))
		}
	}
}

// SetEnabled enables or disables gesture detection.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the hand detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// OnOverlay registers f to receive the overlay after every frame.
func (a *App) OnOverlay(f func(Overlay)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.overlays = append(a.overlays, f)
}

// OnConfirm registers f to receive every confirmation.
func (a *App) OnConfirm(f func(Confirmation)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.confirms = append(a.confirms, f)
}

// LastConfirmation returns the most recent confirmation.
func (a *App) LastConfirmation() (Confirmation, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return Confirmation{}, false
	}
	return *a.last, true
}

// Start opens the camera and begins the detection pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.gate.FPS())

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	a.logger.Info("detection pipeline started", zap.Int("fps", a.gate.FPS()))
	return nil
}

// Stop halts the pipeline and releases every resource. Queued deliveries
// finish first.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
	}

	a.machine.Close()
	a.dispatcher.Close()
	if a.publisher != nil {
		a.publisher.Close()
	}

	if err := a.camera.Close(); err != nil {
		a.logger.Error("error closing camera", zap.Error(err))
	}
	a.motion.Close()
	a.frames.Close()
	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			a.logger.Error("error closing detector", zap.Error(err))
		}
	}

	a.logger.Info("detection pipeline stopped")
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Frames returns the latest-frame buffer shared with the stream.
func (a *App) Frames() *capture.FrameBuffer {
	return a.frames
}

// Session returns the session machine.
func (a *App) Session() *session.Machine {
	return a.machine
}

// PluginManager returns the plugin manager, or nil when no plugin dir is set.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Dispatcher returns the delivery dispatcher.
func (a *App) Dispatcher() *delivery.Dispatcher {
	return a.dispatcher
}
