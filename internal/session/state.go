// Package session runs the booth's capture session: arm, countdown, capture, review, restart.
package session

import (
	"fmt"
	"strings"

	"github.com/ayusman/handbooth/internal/gesture"
)

// State is the session phase.
type State int

const (
	Idle State = iota
	Countdown
	Capturing
	Reviewing
)

var stateNames = [...]string{
	Idle:      "idle",
	Countdown: "countdown",
	Capturing: "capturing",
	Reviewing: "reviewing",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState converts a state name back to a State.
func ParseState(name string) (State, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, sn := range stateNames {
		if sn == n {
			return State(i), nil
		}
	}
	return Idle, fmt.Errorf("unknown session state %q", name)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	state, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// Action is what a confirmed gesture asks the session to do.
type Action int

const (
	// Start arms the countdown for the next photo.
	Start Action = iota
	// Finish ends the session early with the photos taken so far.
	Finish
	// Restart discards the session and returns to Idle.
	Restart
)

var actionNames = [...]string{
	Start:   "start",
	Finish:  "finish",
	Restart: "restart",
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseAction converts an action name back to an Action.
func ParseAction(name string) (Action, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, an := range actionNames {
		if an == n {
			return Action(i), nil
		}
	}
	return Start, fmt.Errorf("unknown session action %q", name)
}

// Rules maps each state to the gestures it accepts and the action each triggers.
// A gesture missing from the current state's map is ignored.
type Rules map[State]map[gesture.Label]Action

// DefaultRules returns the booth's standard gesture mapping.
func DefaultRules() Rules {
	return Rules{
		Idle: {
			gesture.TwoFingers: Start,
			gesture.OkHand:     Finish,
		},
		Reviewing: {
			gesture.TwoFingers: Restart,
		},
	}
}

// Lookup returns the action bound to label in state.
func (r Rules) Lookup(state State, label gesture.Label) (Action, bool) {
	a, ok := r[state][label]
	return a, ok
}

// Labels returns every label referenced by the rules, in gesture.Labels order.
func (r Rules) Labels() []gesture.Label {
	seen := make(map[gesture.Label]bool)
	for _, m := range r {
		for l := range m {
			seen[l] = true
		}
	}
	var out []gesture.Label
	for _, l := range gesture.Labels() {
		if seen[l] {
			out = append(out, l)
		}
	}
	return out
}

// ParseRules builds Rules from a state name -> label name -> action name table,
// the shape used by the config file.
func ParseRules(raw map[string]map[string]string) (Rules, error) {
	rules := make(Rules, len(raw))
	for stateName, bindings := range raw {
		state, err := ParseState(stateName)
		if err != nil {
			return nil, err
		}
		m := make(map[gesture.Label]Action, len(bindings))
		for labelName, actionName := range bindings {
			label, err := gesture.ParseLabel(labelName)
			if err != nil {
				return nil, err
			}
			if label == gesture.None {
				return nil, fmt.Errorf("state %s: label none cannot trigger an action", state)
			}
			action, err := ParseAction(actionName)
			if err != nil {
				return nil, err
			}
			m[label] = action
		}
		rules[state] = m
	}
	return rules, nil
}

// Raw converts rules back to the config file shape.
func (r Rules) Raw() map[string]map[string]string {
	out := make(map[string]map[string]string, len(r))
	for state, bindings := range r {
		m := make(map[string]string, len(bindings))
		for label, action := range bindings {
			m[label.String()] = action.String()
		}
		out[state.String()] = m
	}
	return out
}
