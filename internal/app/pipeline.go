package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handbooth/internal/config"
	"github.com/ayusman/handbooth/internal/detector"
	"github.com/ayusman/handbooth/internal/gesture"
	"github.com/ayusman/handbooth/internal/hold"
	"github.com/ayusman/handbooth/internal/session"
	"github.com/ayusman/handbooth/internal/store"
	"github.com/ayusman/handbooth/internal/tracker"
)

// HandOverlay is one tracked hand as drawn by the UI.
type HandOverlay struct {
	HandID   int           `json:"hand_id"`
	Label    gesture.Label `json:"label"`
	AnchorX  float64       `json:"anchor_x"`
	AnchorY  float64       `json:"anchor_y"`
	Progress float64       `json:"progress"`
}

// Overlay is the per-frame message for the UI.
type Overlay struct {
	State     session.State `json:"state"`
	Locked    bool          `json:"locked"`
	Remaining int           `json:"remaining"`
	SessionID string        `json:"session_id"`
	Photos    int           `json:"photos"`
	Hands     []HandOverlay `json:"hands"`
	Confirmed []hold.Key    `json:"confirmed,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// runPipeline is the frame loop. Each tick reads one frame, gates on motion,
// detects hands and runs ProcessHands. Closing stopCh ends the loop.
//
// The loop starts at the idle frame rate and switches to the active rate on
// motion. While hands are visible or a session is running the gate is held
// active; after Camera.IdleAfter without motion it drops back to idle.
func (a *App) runPipeline(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.gate.Interval())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now

			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				a.logger.Debug("error reading frame", zap.Error(err))
				continue
			}
			a.frames.Store(frame)

			motion, _ := a.motion.Detect(frame)
			switched := a.gate.Update(motion, now)

			var hands []detector.HandLandmarks
			if a.gate.Active() {
				hands, err = a.Detector().Detect(frame)
				if err != nil {
					a.logger.Warn("detector failed, treating as no hands", zap.Error(err))
					hands = nil
				}
			}
			frame.Close()

			overlay := a.ProcessHands(hands, now, dt)
			if len(overlay.Hands) > 0 || overlay.Locked {
				if a.gate.Hold(now) {
					switched = true
				}
			}

			if switched {
				a.camera.SetFPS(a.gate.FPS())
				ticker.Reset(a.gate.Interval())
				a.logger.Info("frame rate changed",
					zap.Bool("active", a.gate.Active()),
					zap.Int("fps", a.gate.FPS()))
			}
		}
	}
}

// ProcessHands runs one frame of detected hands through the classifier,
// tracker, accumulator and session machine, then publishes the overlay.
// It is deterministic given its inputs and the scheduler.
func (a *App) ProcessHands(hands []detector.HandLandmarks, now time.Time, dt time.Duration) Overlay {
	a.procMu.Lock()

	observations := make([]gesture.Observation, len(hands))
	dets := make([]tracker.Detection, len(hands))
	for i := range hands {
		observations[i] = a.classifier.Observe(&hands[i])
		dets[i] = tracker.Detection{Anchor: observations[i].Anchor, Scale: observations[i].Scale}
	}
	ids := a.tracker.Update(dets, now)

	dominant := 0
	if a.config.Pipeline.Mode == config.ModeDominant {
		dominant, _ = a.tracker.Dominant(ids)
	}

	var holdObs []hold.Observation
	for i, id := range ids {
		if id == 0 {
			continue
		}
		if a.config.Pipeline.Mode == config.ModeDominant && id != dominant {
			continue
		}
		holdObs = append(holdObs, hold.Observation{HandID: id, Label: observations[i].Label, Anchor: observations[i].Anchor})
	}
	result := a.accumulator.Tick(holdObs, dt, now)

	var confirmed []Confirmation
	for _, key := range result.Confirmed {
		confirmed = append(confirmed, a.confirm(key, now))
	}

	snap := a.machine.Snapshot()
	overlay := Overlay{
		State:     snap.State,
		Locked:    snap.Locked,
		Remaining: snap.Remaining,
		SessionID: snap.SessionID,
		Photos:    len(snap.Photos),
		Hands:     make([]HandOverlay, 0, len(ids)),
		Confirmed: result.Confirmed,
		Timestamp: now.UnixMilli(),
	}
	for i, id := range ids {
		if id == 0 {
			continue
		}
		label := observations[i].Label
		overlay.Hands = append(overlay.Hands, HandOverlay{
			HandID:   id,
			Label:    label,
			AnchorX:  observations[i].Anchor.X,
			AnchorY:  observations[i].Anchor.Y,
			Progress: result.Progress[hold.Key{HandID: id, Label: label}],
		})
	}
	a.procMu.Unlock()

	a.mu.RLock()
	overlays := append([]func(Overlay){}, a.overlays...)
	confirms := append([]func(Confirmation){}, a.confirms...)
	a.mu.RUnlock()

	for _, c := range confirmed {
		for _, f := range confirms {
			f(c)
		}
	}
	for _, f := range overlays {
		f(overlay)
	}
	return overlay
}

// confirm hands one confirmed key to the machine and records the outcome.
func (a *App) confirm(key hold.Key, now time.Time) Confirmation {
	before := a.machine.Snapshot()
	accepted := a.machine.Confirm(key.Label)

	c := Confirmation{
		HandID:   key.HandID,
		Label:    key.Label,
		State:    before.State,
		Accepted: accepted,
		At:       now,
	}
	a.logger.Info("gesture confirmed",
		zap.Int("hand_id", key.HandID),
		zap.String("label", key.Label.String()),
		zap.String("state", before.State.String()),
		zap.Bool("accepted", accepted))

	a.mu.Lock()
	a.last = &c
	a.mu.Unlock()

	if a.store != nil {
		err := a.store.Confirmations().Record(&store.Confirmation{
			SessionID:   before.SessionID,
			HandID:      key.HandID,
			Label:       key.Label.String(),
			State:       before.State.String(),
			Accepted:    accepted,
			ConfirmedAt: now,
		})
		if err != nil {
			a.logger.Error("failed to record confirmation", zap.Error(err))
		}
	}
	return c
}
