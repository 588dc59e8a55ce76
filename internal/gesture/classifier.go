package gesture

import (
	"errors"
	"fmt"

	"github.com/ayusman/handbooth/internal/detector"
)

// MaxVocabulary is how many confirmable labels can be enabled at once.
const MaxVocabulary = 2

// ErrVocabulary is returned for an empty, oversized, or invalid vocabulary.
var ErrVocabulary = errors.New("invalid gesture vocabulary")

// Thresholds are palm-size multipliers. They are tuned by hand, not derived.
type Thresholds struct {
	// Extended is the fingertip to wrist distance, in palms, above which a finger counts as extended.
	Extended float64 `toml:"extended" validate:"gt=0"`
	// Thumb is the thumb tip to wrist distance, in palms, above which the thumb counts as extended.
	Thumb float64 `toml:"thumb" validate:"gt=0"`
	// Pinch is the thumb tip to index tip distance, in palms, below which the two are pinched.
	Pinch float64 `toml:"pinch" validate:"gt=0"`
}

// DefaultThresholds returns the tuned multipliers.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Extended: 1.3,
		Thumb:    1.0,
		Pinch:    0.6,
	}
}

// Observation is one hand's per-frame classification.
type Observation struct {
	Label  Label
	Anchor detector.Point2D
	Scale  float64
	Valid  bool
}

// Classifier maps landmarks to labels using palm-normalized geometry.
type Classifier struct {
	thresholds Thresholds
	enabled    [len(labelNames)]bool
}

// NewClassifier creates a classifier for the given vocabulary.
// An empty vocabulary enables TwoFingers and OkHand.
func NewClassifier(th Thresholds, vocabulary ...Label) (*Classifier, error) {
	if len(vocabulary) == 0 {
		vocabulary = []Label{TwoFingers, OkHand}
	}
	if err := ValidateVocabulary(vocabulary); err != nil {
		return nil, err
	}

	c := &Classifier{thresholds: th}
	for _, l := range vocabulary {
		c.enabled[l] = true
	}
	return c, nil
}

// ValidateVocabulary checks that at most MaxVocabulary distinct real labels are listed.
func ValidateVocabulary(vocabulary []Label) error {
	seen := make(map[Label]bool, len(vocabulary))
	for _, l := range vocabulary {
		if l <= None || int(l) >= len(labelNames) {
			return fmt.Errorf("%w: %s is not confirmable", ErrVocabulary, l)
		}
		seen[l] = true
	}
	if len(seen) == 0 || len(seen) > MaxVocabulary {
		return fmt.Errorf("%w: %d labels enabled, want 1 to %d", ErrVocabulary, len(seen), MaxVocabulary)
	}
	return nil
}

// Enabled reports whether l is part of the vocabulary.
func (c *Classifier) Enabled(l Label) bool {
	if l <= None || int(l) >= len(labelNames) {
		return false
	}
	return c.enabled[l]
}

// Vocabulary returns the enabled labels in rule order.
func (c *Classifier) Vocabulary() []Label {
	var out []Label
	for _, l := range Labels() {
		if c.enabled[l] {
			out = append(out, l)
		}
	}
	return out
}

// Classify returns the first enabled rule the hand satisfies.
// Malformed or degenerate hands are always None.
func (c *Classifier) Classify(hand *detector.HandLandmarks) Label {
	// Wrist at origin, palm size 1, so distances below are in palms
	n := hand.Normalize()
	if n == nil {
		return None
	}

	origin := detector.Point2D{}
	reach := func(idx int) float64 {
		return n.Points[idx].Planar().Distance(origin)
	}
	extended := func(tip int) bool {
		return reach(tip) > c.thresholds.Extended
	}

	index := extended(detector.IndexTip)
	middle := extended(detector.MiddleTip)
	ring := extended(detector.RingTip)
	pinky := extended(detector.PinkyTip)
	thumb := reach(detector.ThumbTip) > c.thresholds.Thumb

	pinch := n.Points[detector.ThumbTip].Planar().Distance(n.Points[detector.IndexTip].Planar())
	pinched := pinch < c.thresholds.Pinch

	for _, l := range Labels() {
		if !c.enabled[l] {
			continue
		}
		switch l {
		case TwoFingers:
			if index && middle && !ring && !pinky {
				return TwoFingers
			}
		case OkHand:
			if pinched && middle && ring && pinky {
				return OkHand
			}
		case OpenPalm:
			if index && middle && ring && pinky && (thumb || pinch > c.thresholds.Pinch) {
				return OpenPalm
			}
		}
	}

	return None
}

// Anchor returns the middle finger MCP with x mirrored to match the flipped preview.
func Anchor(hand *detector.HandLandmarks) (detector.Point2D, bool) {
	if hand == nil {
		return detector.Point2D{}, false
	}
	mcp := hand.Points[detector.MiddleMCP]
	p := detector.Point2D{X: 1 - mcp.X, Y: mcp.Y}
	return p, p.Finite()
}

// Observe classifies a hand and computes its anchor and scale in one pass.
func (c *Classifier) Observe(hand *detector.HandLandmarks) Observation {
	anchor, ok := Anchor(hand)
	obs := Observation{
		Label:  c.Classify(hand),
		Anchor: anchor,
		Valid:  ok,
	}
	if ok {
		obs.Scale = hand.PalmSize()
	}
	return obs
}
