// Package delivery hands finished sessions to the outside world: the local
// store, delivery plugins and a NATS subject.
package delivery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handbooth/internal/session"
)

// Config holds delivery settings.
type Config struct {
	// NatsURL enables the NATS sink when set.
	NatsURL string `toml:"nats_url"`
	// Subject is the NATS subject for finished sessions.
	Subject string `toml:"subject" validate:"required"`
	// Stream is the JetStream stream that captures Subject.
	Stream string `toml:"stream" validate:"required"`
	// PluginTimeout bounds each plugin run.
	PluginTimeout time.Duration `toml:"plugin_timeout" validate:"gt=0"`
	// QueueSize is the number of handoffs that may wait for delivery.
	QueueSize int `toml:"queue_size" validate:"gte=1"`
}

// DefaultConfig returns delivery settings with NATS disabled.
func DefaultConfig() Config {
	return Config{
		Subject:       "handbooth.session.finished",
		Stream:        "HANDBOOTH",
		PluginTimeout: 30 * time.Second,
		QueueSize:     16,
	}
}

// Sink receives finished sessions.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, h session.Handoff) error
}

// Report is the outcome of one sink delivering one session.
type Report struct {
	SessionID string
	Sink      string
	Err       error
	Took      time.Duration
}

// Dispatcher queues handoffs and fans each one out to every sink on a worker
// goroutine, so the session machine never waits on delivery.
type Dispatcher struct {
	sinks    []Sink
	queue    chan session.Handoff
	logger   *zap.Logger
	mu       sync.Mutex
	watchers []func(Report)
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	started  bool
	closed   bool
}

// NewDispatcher creates a Dispatcher. Call Start before handing off.
func NewDispatcher(queueSize int, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sinks:  sinks,
		queue:  make(chan session.Handoff, queueSize),
		logger: logger.Named("delivery"),
	}
}

// Watch registers f to receive every sink report.
func (d *Dispatcher) Watch(f func(Report)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watchers = append(d.watchers, f)
}

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Start launches the worker.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go d.run(ctx)
}

// Handoff queues h. It never blocks; when the queue is full the session is
// dropped and logged. It matches session.HandoffFunc.
func (d *Dispatcher) Handoff(h session.Handoff) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("dispatcher closed, dropping session", zap.String("session_id", h.SessionID))
		return
	}
	select {
	case d.queue <- h:
	default:
		d.logger.Error("delivery queue full, dropping session",
			zap.String("session_id", h.SessionID),
			zap.Int("photos", len(h.Photos)))
	}
}

// Close stops accepting handoffs, delivers what is queued and waits.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	started := d.started
	close(d.queue)
	d.mu.Unlock()

	if started {
		d.wg.Wait()
		d.cancel()
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for h := range d.queue {
		d.deliver(ctx, h)
	}
}

// deliver runs every sink for h concurrently.
func (d *Dispatcher) deliver(ctx context.Context, h session.Handoff) {
	var wg sync.WaitGroup
	for _, sink := range d.sinks {
		wg.Add(1)
		go func(sink Sink) {
			defer wg.Done()
			start := time.Now()
			err := sink.Deliver(ctx, h)
			r := Report{SessionID: h.SessionID, Sink: sink.Name(), Err: err, Took: time.Since(start)}

			if err != nil {
				d.logger.Error("delivery failed",
					zap.String("sink", r.Sink),
					zap.String("session_id", h.SessionID),
					zap.Error(err))
			} else {
				d.logger.Info("session delivered",
					zap.String("sink", r.Sink),
					zap.String("session_id", h.SessionID),
					zap.Int("photos", len(h.Photos)),
					zap.Duration("took", r.Took))
			}
			d.notify(r)
		}(sink)
	}
	wg.Wait()
}

func (d *Dispatcher) notify(r Report) {
	d.mu.Lock()
	watchers := append([]func(Report){}, d.watchers...)
	d.mu.Unlock()
	for _, f := range watchers {
		f(r)
	}
}
