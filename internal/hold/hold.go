// Package hold turns per-frame gesture observations into confirmations.
//
// A gesture confirms once it has been held by the same tracked hand for the
// hold threshold. Short detection dropouts are bridged by a grace window, and a
// label that just confirmed stays suppressed until no hand shows it.
package hold

import (
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/handbooth/internal/detector"
	"github.com/ayusman/handbooth/internal/gesture"
)

// Policy selects how hold time is earned.
type Policy int

const (
	// Dwell accumulates frame time while the gesture is shown.
	Dwell Policy = iota
	// Wave only accumulates while the hand moves sideways.
	Wave
)

// Config holds accumulator tuning.
type Config struct {
	// Threshold is the hold time needed to confirm.
	Threshold time.Duration `toml:"threshold" validate:"gt=0"`
	// Grace bridges frames where a key, or wave motion, is briefly missing.
	Grace time.Duration `toml:"grace" validate:"gte=0"`
	// Policy selects dwell or wave accumulation.
	Policy Policy `toml:"policy"`
	// WaveWindow is the trailing window inspected for lateral motion.
	WaveWindow time.Duration `toml:"wave_window" validate:"gt=0"`
	// WaveAmplitude is the minimum horizontal travel inside the window, in screen widths.
	WaveAmplitude float64 `toml:"wave_amplitude" validate:"gt=0"`
	// WaveMinSamples is the minimum number of samples inside the window.
	WaveMinSamples int `toml:"wave_min_samples" validate:"gte=1"`
}

// DefaultConfig returns the recommended accumulator settings.
func DefaultConfig() Config {
	return Config{
		Threshold:      3000 * time.Millisecond,
		Grace:          350 * time.Millisecond,
		Policy:         Dwell,
		WaveWindow:     400 * time.Millisecond,
		WaveAmplitude:  0.015,
		WaveMinSamples: 3,
	}
}

// Key identifies one hand holding one gesture.
type Key struct {
	HandID int           `json:"hand_id"`
	Label  gesture.Label `json:"label"`
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.HandID, k.Label)
}

// Observation is one tracked hand's label this frame.
type Observation struct {
	HandID int
	Label  gesture.Label
	Anchor detector.Point2D
}

// Result is the outcome of one Tick.
type Result struct {
	// Confirmed lists keys that crossed the threshold this frame, in observation order.
	Confirmed []Key
	// Progress is min(accumulated/threshold, 1) for every live entry.
	Progress map[Key]float64
	// Suppressed lists labels blocked from accumulating after a confirmation.
	Suppressed []gesture.Label
}

type sample struct {
	at time.Time
	x  float64
}

type entry struct {
	accumulated time.Duration
	lastSeen    time.Time
	lastMotion  time.Time
	samples     []sample
}

// Accumulator tracks hold time per (hand, label). It is owned by the frame
// pipeline and is not safe for concurrent use.
type Accumulator struct {
	config     Config
	entries    map[Key]*entry
	suppressed map[gesture.Label]bool
}

// New creates an Accumulator.
func New(config Config) *Accumulator {
	return &Accumulator{
		config:     config,
		entries:    make(map[Key]*entry),
		suppressed: make(map[gesture.Label]bool),
	}
}

// Tick advances the accumulator by one frame of length dt ending at now.
func (a *Accumulator) Tick(obs []Observation, dt time.Duration, now time.Time) Result {
	if dt < 0 {
		dt = 0
	}

	observedLabels := make(map[gesture.Label]bool, len(obs))
	observedKeys := make(map[Key]bool, len(obs))
	for _, o := range obs {
		if o.Label == gesture.None || o.HandID == 0 {
			continue
		}
		observedLabels[o.Label] = true
	}

	// A suppressed label is released once a frame goes by with nobody showing it
	for l := range a.suppressed {
		if !observedLabels[l] {
			delete(a.suppressed, l)
		}
	}

	var confirmed []Key
	for _, o := range obs {
		if o.Label == gesture.None || o.HandID == 0 {
			continue
		}
		key := Key{HandID: o.HandID, Label: o.Label}
		if observedKeys[key] {
			continue
		}
		observedKeys[key] = true

		if a.suppressed[o.Label] {
			delete(a.entries, key)
			continue
		}

		e, ok := a.entries[key]
		if !ok {
			e = &entry{}
			a.entries[key] = e
		}
		e.lastSeen = now
		a.earn(e, o.Anchor, dt, now)

		if e.accumulated >= a.config.Threshold {
			confirmed = append(confirmed, key)
			delete(a.entries, key)
			a.suppressed[o.Label] = true
		}
	}

	// Keys missing this frame ride the grace window, then go
	for key, e := range a.entries {
		if a.suppressed[key.Label] {
			delete(a.entries, key)
			continue
		}
		if observedKeys[key] {
			continue
		}
		if now.Sub(e.lastSeen) > a.config.Grace {
			delete(a.entries, key)
			continue
		}
		// Under Wave an absent hand only earns while its last motion is within grace.
		if a.config.Policy != Wave || now.Sub(e.lastMotion) <= a.config.Grace {
			e.accumulated += dt
		}
	}

	return Result{
		Confirmed:  confirmed,
		Progress:   a.progressAll(),
		Suppressed: a.suppressedLabels(),
	}
}

// earn adds this frame's time to an observed entry according to the policy.
func (a *Accumulator) earn(e *entry, anchor detector.Point2D, dt time.Duration, now time.Time) {
	if a.config.Policy != Wave {
		e.accumulated += dt
		return
	}

	e.samples = append(e.samples, sample{at: now, x: anchor.X})
	cutoff := now.Add(-a.config.WaveWindow)
	drop := 0
	for drop < len(e.samples) && e.samples[drop].at.Before(cutoff) {
		drop++
	}
	e.samples = e.samples[drop:]

	if a.moving(e.samples) {
		e.lastMotion = now
	}
	if now.Sub(e.lastMotion) <= a.config.Grace {
		e.accumulated += dt
	}
}

// moving reports whether the window holds enough samples spanning the wave amplitude.
func (a *Accumulator) moving(samples []sample) bool {
	if len(samples) < a.config.WaveMinSamples {
		return false
	}
	lo, hi := samples[0].x, samples[0].x
	for _, s := range samples[1:] {
		if s.x < lo {
			lo = s.x
		}
		if s.x > hi {
			hi = s.x
		}
	}
	return hi-lo >= a.config.WaveAmplitude
}

func (a *Accumulator) fraction(e *entry) float64 {
	p := float64(e.accumulated) / float64(a.config.Threshold)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

func (a *Accumulator) progressAll() map[Key]float64 {
	out := make(map[Key]float64, len(a.entries))
	for key, e := range a.entries {
		out[key] = a.fraction(e)
	}
	return out
}

func (a *Accumulator) suppressedLabels() []gesture.Label {
	var out []gesture.Label
	for _, l := range gesture.Labels() {
		if a.suppressed[l] {
			out = append(out, l)
		}
	}
	return out
}

// Progress returns the hold fraction for key, or 0 when there is no entry.
func (a *Accumulator) Progress(key Key) float64 {
	e, ok := a.entries[key]
	if !ok {
		return 0
	}
	return a.fraction(e)
}

// Accumulated returns the raw hold time for key.
func (a *Accumulator) Accumulated(key Key) time.Duration {
	if e, ok := a.entries[key]; ok {
		return e.accumulated
	}
	return 0
}

// Suppressed reports whether label is blocked after a recent confirmation.
func (a *Accumulator) Suppressed(label gesture.Label) bool {
	return a.suppressed[label]
}

// Reset drops every entry and suppression.
func (a *Accumulator) Reset() {
	a.entries = make(map[Key]*entry)
	a.suppressed = make(map[gesture.Label]bool)
}

func (p Policy) String() string {
	switch p {
	case Dwell:
		return "dwell"
	case Wave:
		return "wave"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "dwell":
		*p = Dwell
	case "wave":
		*p = Wave
	default:
		return fmt.Errorf("unknown hold policy %q", text)
	}
	return nil
}
