package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/handbooth/internal/gesture"
)

// Config holds session timing and limits.
type Config struct {
	// Rules is the per-state gesture allow-list.
	Rules Rules `toml:"-"`
	// CountdownTicks is the number of countdown steps before a capture.
	CountdownTicks int `toml:"countdown_ticks" validate:"gte=0,lte=10"`
	// TickInterval is the time between countdown steps.
	TickInterval time.Duration `toml:"tick_interval" validate:"gt=0"`
	// FlashDuration is the pause between the end of the countdown and the capture.
	FlashDuration time.Duration `toml:"flash_duration" validate:"gte=0"`
	// MaxPhotos ends the session automatically once reached.
	MaxPhotos int `toml:"max_photos" validate:"gte=1,lte=20"`
	// CaptureTimeout bounds a single capture call. Zero means no bound.
	CaptureTimeout time.Duration `toml:"capture_timeout" validate:"gte=0"`
}

// DefaultConfig returns the standard three-photo session.
func DefaultConfig() Config {
	return Config{
		Rules:          DefaultRules(),
		CountdownTicks: 3,
		TickInterval:   time.Second,
		FlashDuration:  150 * time.Millisecond,
		MaxPhotos:      3,
		CaptureTimeout: 5 * time.Second,
	}
}

// Photo is one captured image reference.
type Photo struct {
	Seq     int       `json:"seq"`
	Path    string    `json:"path"`
	TakenAt time.Time `json:"taken_at"`
}

// Capturer takes a photo. It is called without the machine lock held and may
// read the machine's Snapshot.
type Capturer interface {
	Capture(ctx context.Context) (Photo, error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context) (Photo, error)

// Capture calls f.
func (f CapturerFunc) Capture(ctx context.Context) (Photo, error) {
	return f(ctx)
}

// Handoff is a finished session passed to delivery.
type Handoff struct {
	SessionID  string    `json:"session_id"`
	Photos     []Photo   `json:"photos"`
	FinishedAt time.Time `json:"finished_at"`
}

// HandoffFunc receives a finished session on entry to Reviewing.
type HandoffFunc func(Handoff)

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	State     State   `json:"state"`
	Locked    bool    `json:"locked"`
	Remaining int     `json:"remaining"`
	SessionID string  `json:"session_id"`
	Photos    []Photo `json:"photos"`
}

// Machine is the session state machine. Confirm, Reset and Snapshot are safe
// for concurrent use.
type Machine struct {
	mu        sync.Mutex
	config    Config
	capturer  Capturer
	handoff   HandoffFunc
	scheduler Scheduler
	logger    *zap.Logger
	now       func() time.Time

	state     State
	locked    bool
	remaining int
	sessionID string
	photos    []Photo

	gen   uint64
	timer Timer

	listeners []func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Machine in Idle with a fresh session id. A nil scheduler uses
// SystemScheduler and a nil logger discards output.
func New(config Config, capturer Capturer, handoff HandoffFunc, scheduler Scheduler, logger *zap.Logger) *Machine {
	if config.Rules == nil {
		config.Rules = DefaultRules()
	}
	if scheduler == nil {
		scheduler = SystemScheduler{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		config:    config,
		capturer:  capturer,
		handoff:   handoff,
		scheduler: scheduler,
		logger:    logger.Named("session"),
		now:       time.Now,
		sessionID: uuid.NewString(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnChange registers f to receive a snapshot after every transition.
// Listeners run without the machine lock held.
func (m *Machine) OnChange(f func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, f)
}

// Snapshot returns the current session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Accepts reports whether label has an action in the current state.
func (m *Machine) Accepts(label gesture.Label) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.config.Rules.Lookup(m.state, label)
	return ok
}

// Confirm applies a confirmed gesture. It returns true when the gesture caused
// a transition; gestures the current state does not accept are no-ops.
func (m *Machine) Confirm(label gesture.Label) bool {
	m.mu.Lock()
	action, ok := m.config.Rules.Lookup(m.state, label)
	if !ok {
		m.mu.Unlock()
		return false
	}

	var fx effects
	switch action {
	case Start:
		if m.state != Idle || m.locked {
			m.mu.Unlock()
			return false
		}
		m.locked = true
		m.startCountdownLocked(&fx)
	case Finish:
		if m.state != Idle || len(m.photos) == 0 {
			m.mu.Unlock()
			return false
		}
		m.finishLocked(&fx)
	case Restart:
		if m.state != Reviewing {
			m.mu.Unlock()
			return false
		}
		m.restartLocked(&fx)
	default:
		m.mu.Unlock()
		return false
	}

	m.logger.Info("gesture accepted",
		zap.String("label", label.String()),
		zap.String("action", action.String()),
		zap.String("state", m.state.String()))
	m.mu.Unlock()
	m.apply(fx)
	return true
}

// Reset abandons the current session from any state.
func (m *Machine) Reset() {
	m.mu.Lock()
	var fx effects
	m.restartLocked(&fx)
	m.logger.Info("session reset", zap.String("session_id", m.sessionID))
	m.mu.Unlock()
	m.apply(fx)
}

// Close stops any pending timer and cancels an in-flight capture.
func (m *Machine) Close() {
	m.mu.Lock()
	m.gen++
	m.stopTimerLocked()
	m.mu.Unlock()
	m.cancel()
}

// effects are collected under the lock and run after it is released.
type effects struct {
	snapshot *Snapshot
	handoff  *Handoff
}

func (m *Machine) apply(fx effects) {
	if fx.handoff != nil && m.handoff != nil {
		m.handoff(*fx.handoff)
	}
	if fx.snapshot == nil {
		return
	}
	m.mu.Lock()
	listeners := append([]func(Snapshot){}, m.listeners...)
	m.mu.Unlock()
	for _, f := range listeners {
		f(*fx.snapshot)
	}
}

// enterLocked switches state and invalidates every pending timer and capture.
func (m *Machine) enterLocked(state State, fx *effects) {
	m.gen++
	m.stopTimerLocked()
	m.state = state
	snap := m.snapshotLocked()
	fx.snapshot = &snap
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) startCountdownLocked(fx *effects) {
	m.remaining = m.config.CountdownTicks
	m.enterLocked(Countdown, fx)
	if m.remaining <= 0 {
		m.beginCaptureLocked(fx)
		return
	}
	gen := m.gen
	m.timer = m.scheduler.AfterFunc(m.config.TickInterval, func() { m.tick(gen) })
}

func (m *Machine) tick(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != Countdown {
		m.mu.Unlock()
		return
	}

	var fx effects
	m.remaining--
	if m.remaining > 0 {
		snap := m.snapshotLocked()
		fx.snapshot = &snap
		m.timer = m.scheduler.AfterFunc(m.config.TickInterval, func() { m.tick(gen) })
	} else {
		m.beginCaptureLocked(&fx)
	}
	m.mu.Unlock()
	m.apply(fx)
}

func (m *Machine) beginCaptureLocked(fx *effects) {
	m.remaining = 0
	m.enterLocked(Capturing, fx)
	gen := m.gen
	m.timer = m.scheduler.AfterFunc(m.config.FlashDuration, func() { m.capture(gen) })
}

func (m *Machine) capture(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != Capturing {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	capturer := m.capturer
	m.mu.Unlock()

	ctx := m.ctx
	if m.config.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.CaptureTimeout)
		defer cancel()
	}

	var (
		photo Photo
		err   error
	)
	if capturer == nil {
		err = errNoCapturer
	} else {
		photo, err = capturer.Capture(ctx)
	}

	m.mu.Lock()
	if gen != m.gen {
		m.logger.Warn("discarding stale capture result", zap.Error(err))
		m.mu.Unlock()
		return
	}

	var fx effects
	if err != nil {
		m.logger.Error("capture failed", zap.Error(err), zap.String("session_id", m.sessionID))
		m.locked = false
		m.enterLocked(Idle, &fx)
		m.mu.Unlock()
		m.apply(fx)
		return
	}

	photo.Seq = len(m.photos) + 1
	if photo.TakenAt.IsZero() {
		photo.TakenAt = m.now()
	}
	m.photos = append(m.photos, photo)
	m.logger.Info("photo captured",
		zap.String("session_id", m.sessionID),
		zap.Int("seq", photo.Seq),
		zap.String("path", photo.Path))

	if len(m.photos) < m.config.MaxPhotos {
		m.locked = false
		m.enterLocked(Idle, &fx)
	} else {
		m.finishLocked(&fx)
	}
	m.mu.Unlock()
	m.apply(fx)
}

func (m *Machine) finishLocked(fx *effects) {
	m.enterLocked(Reviewing, fx)
	fx.handoff = &Handoff{
		SessionID:  m.sessionID,
		Photos:     append([]Photo(nil), m.photos...),
		FinishedAt: m.now(),
	}
}

func (m *Machine) restartLocked(fx *effects) {
	m.photos = nil
	m.locked = false
	m.remaining = 0
	m.sessionID = uuid.NewString()
	m.enterLocked(Idle, fx)
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:     m.state,
		Locked:    m.locked,
		Remaining: m.remaining,
		SessionID: m.sessionID,
		Photos:    append([]Photo(nil), m.photos...),
	}
}
