// Package tracker keeps stable identities for hands across detector frames.
//
// The detector reports hands in no particular order. Tracker matches each frame's
// anchors to the hands it already knows by greedy nearest neighbour in normalized
// screen space, creates hands for the leftovers and evicts the ones that went stale.
package tracker

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ayusman/handbooth/internal/detector"
)

// activitySmoothing is the weight of the newest displacement in the activity average.
const activitySmoothing = 0.3

// EmptyFramePolicy decides what a frame with zero detections does to tracked hands.
type EmptyFramePolicy int

const (
	// ClearOnEmpty drops every tracked hand as soon as a frame has no hands.
	ClearOnEmpty EmptyFramePolicy = iota
	// KeepOnEmpty lets hands survive empty frames until their timeout.
	KeepOnEmpty
)

// UnmatchedPolicy decides what happens to a tracked hand with no match this frame.
type UnmatchedPolicy int

const (
	// KeepUntilTimeout keeps the hand dormant until now - LastSeen exceeds Timeout.
	KeepUntilTimeout UnmatchedPolicy = iota
	// EvictImmediately drops the hand on its first unmatched frame.
	EvictImmediately
)

// Config holds tracker tuning.
type Config struct {
	// MatchDistance is the largest normalized anchor displacement accepted as the same hand.
	MatchDistance float64 `toml:"match_distance" validate:"gt=0,lte=1.5"`
	// Timeout is how long an unmatched hand stays dormant under KeepUntilTimeout.
	Timeout time.Duration `toml:"timeout" validate:"gte=0"`
	// MaxHands caps the number of simultaneously tracked hands.
	MaxHands int `toml:"max_hands" validate:"gte=1,lte=10"`
	// EmptyFrame is the policy for frames with zero detections.
	EmptyFrame EmptyFramePolicy `toml:"empty_frame"`
	// Unmatched is the policy for hands missing from a non-empty frame.
	Unmatched UnmatchedPolicy `toml:"unmatched"`
	// ActivityWeight scales motion activity in the dominant hand score.
	ActivityWeight float64 `toml:"activity_weight" validate:"gte=0"`
	// ScaleWeight scales palm size in the dominant hand score.
	ScaleWeight float64 `toml:"scale_weight" validate:"gte=0"`
}

// DefaultConfig returns the recommended tracker settings. Timeout outlasts the
// hold grace window so a one-frame dropout keeps the hand's id.
func DefaultConfig() Config {
	return Config{
		MatchDistance:  0.15,
		Timeout:        500 * time.Millisecond,
		MaxHands:       10,
		EmptyFrame:     KeepOnEmpty,
		Unmatched:      KeepUntilTimeout,
		ActivityWeight: 10,
		ScaleWeight:    1,
	}
}

// Detection is one hand observed in the current frame.
type Detection struct {
	Anchor detector.Point2D
	Scale  float64
}

// Hand is a tracked hand identity.
type Hand struct {
	ID        int              `json:"id"`
	Position  detector.Point2D `json:"position"`
	FirstSeen time.Time        `json:"first_seen"`
	LastSeen  time.Time        `json:"last_seen"`
	Scale     float64          `json:"scale"`
	Activity  float64          `json:"activity"`
}

// Tracker assigns stable ids to detections. It is not safe for concurrent use;
// the frame pipeline owns it.
type Tracker struct {
	config Config
	hands  []*Hand
	nextID int
}

// New creates a Tracker with the given configuration.
func New(config Config) *Tracker {
	return &Tracker{
		config: config,
		nextID: 1,
	}
}

// Update matches this frame's detections and returns the id for each detection
// index. An id of 0 means the detection is not tracked (non-finite anchor or
// MaxHands reached).
func (t *Tracker) Update(dets []Detection, now time.Time) []int {
	ids := make([]int, len(dets))

	if len(dets) == 0 {
		if t.config.EmptyFrame == ClearOnEmpty {
			t.hands = t.hands[:0]
			return ids
		}
		t.evict(nil, now)
		return ids
	}

	claimed := make([]bool, len(dets))
	matched := make(map[*Hand]bool, len(t.hands))

	// Step 1: each known hand, in insertion order, takes its nearest free detection
	for _, h := range t.hands {
		best := -1
		bestDist := t.config.MatchDistance
		for i, d := range dets {
			if claimed[i] || !d.Anchor.Finite() {
				continue
			}
			dist := h.Position.Distance(d.Anchor)
			if dist <= bestDist {
				if best == -1 || dist < bestDist {
					best = i
					bestDist = dist
				}
			}
		}
		if best == -1 {
			continue
		}

		claimed[best] = true
		matched[h] = true
		ids[best] = h.ID

		h.Activity = (1-activitySmoothing)*h.Activity + activitySmoothing*bestDist
		h.Position = dets[best].Anchor
		h.Scale = dets[best].Scale
		h.LastSeen = now
	}

	// Step 3 runs before step 2 so fresh hands are not evicted and dormant
	// slots are freed before the MaxHands check
	t.evict(matched, now)

	// Step 2: leftovers become new hands
	for i, d := range dets {
		if claimed[i] || !d.Anchor.Finite() {
			continue
		}
		if len(t.hands) >= t.config.MaxHands {
			continue
		}
		h := &Hand{
			ID:        t.nextID,
			Position:  d.Anchor,
			FirstSeen: now,
			LastSeen:  now,
			Scale:     d.Scale,
		}
		t.nextID++
		t.hands = append(t.hands, h)
		ids[i] = h.ID
	}

	return ids
}

// evict removes unmatched hands according to the unmatched policy.
func (t *Tracker) evict(matched map[*Hand]bool, now time.Time) {
	kept := t.hands[:0]
	for _, h := range t.hands {
		if matched[h] {
			kept = append(kept, h)
			continue
		}
		if t.config.Unmatched == EvictImmediately {
			continue
		}
		if now.Sub(h.LastSeen) > t.config.Timeout {
			continue
		}
		kept = append(kept, h)
	}
	for i := len(kept); i < len(t.hands); i++ {
		t.hands[i] = nil
	}
	t.hands = kept
}

// Hands returns a snapshot of the tracked hands in insertion order.
func (t *Tracker) Hands() []Hand {
	out := make([]Hand, len(t.hands))
	for i, h := range t.hands {
		out[i] = *h
	}
	return out
}

// Len returns the number of tracked hands.
func (t *Tracker) Len() int {
	return len(t.hands)
}

// Reset forgets every hand. Ids keep increasing across resets.
func (t *Tracker) Reset() {
	t.hands = t.hands[:0]
}

// Dominant picks the single hand to follow in single-winner mode. Candidates
// are the ids observed this frame; the score combines motion activity and palm
// size, and ties go to the earlier tracked hand.
func (t *Tracker) Dominant(ids []int) (int, bool) {
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		if id != 0 {
			want[id] = true
		}
	}

	bestID := 0
	bestScore := math.Inf(-1)
	for _, h := range t.hands {
		if !want[h.ID] {
			continue
		}
		score := t.config.ActivityWeight*h.Activity + t.config.ScaleWeight*h.Scale
		if score > bestScore {
			bestID = h.ID
			bestScore = score
		}
	}
	return bestID, bestID != 0
}

func (p EmptyFramePolicy) String() string {
	switch p {
	case ClearOnEmpty:
		return "clear"
	case KeepOnEmpty:
		return "keep"
	}
	return fmt.Sprintf("EmptyFramePolicy(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p EmptyFramePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *EmptyFramePolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "clear":
		*p = ClearOnEmpty
	case "keep":
		*p = KeepOnEmpty
	default:
		return fmt.Errorf("unknown empty frame policy %q", text)
	}
	return nil
}

func (p UnmatchedPolicy) String() string {
	switch p {
	case KeepUntilTimeout:
		return "timeout"
	case EvictImmediately:
		return "immediate"
	}
	return fmt.Sprintf("UnmatchedPolicy(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p UnmatchedPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *UnmatchedPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "timeout":
		*p = KeepUntilTimeout
	case "immediate":
		*p = EvictImmediately
	default:
		return fmt.Errorf("unknown unmatched policy %q", text)
	}
	return nil
}
