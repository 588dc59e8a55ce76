// Package gesture classifies hand landmarks into the booth's small gesture vocabulary.
package gesture

import (
	"fmt"
	"strings"
)

// Label is a discrete gesture classification.
type Label int

const (
	// None means the hand shows no confirmable gesture.
	None Label = iota
	// TwoFingers is the peace sign: index and middle extended, ring and pinky folded.
	TwoFingers
	// OkHand is the ring shape: thumb and index tips pinched, other fingers extended.
	OkHand
	// OpenPalm is every finger extended with the thumb spread.
	OpenPalm
)

var labelNames = [...]string{
	None:       "none",
	TwoFingers: "two_fingers",
	OkHand:     "ok_hand",
	OpenPalm:   "open_palm",
}

// Labels lists every label except None in rule order.
func Labels() []Label {
	return []Label{TwoFingers, OkHand, OpenPalm}
}

func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel converts a label name back to a Label.
func ParseLabel(s string) (Label, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range labelNames {
		if n == name {
			return Label(i), nil
		}
	}
	return None, fmt.Errorf("unknown gesture label %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= len(labelNames) {
		return nil, fmt.Errorf("invalid gesture label %d", int(l))
	}
	return []byte(labelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
