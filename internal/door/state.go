package door

import (
	"fmt"
	"time"
)

// State is the door position.
type State string

const (
	Open  State = "open"
	Close State = "close"
)

// Verbs used in notifications.
const (
	VerbOpened = "opened"
	VerbClosed = "closed"
)

// ParseState validates a stored or transmitted state.
func ParseState(s string) (State, error) {
	switch State(s) {
	case Open, Close:
		return State(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// Toggle returns the state after s and the verb describing the move.
func Toggle(s State) (State, string) {
	if s == Open {
		return Close, VerbClosed
	}
	return Open, VerbOpened
}

// Transition records one completed toggle.
type Transition struct {
	Previous  State     `json:"previous"`
	State     State     `json:"state"`
	Verb      string    `json:"verb"`
	Actor     string    `json:"actor"`
	ActorName string    `json:"-"`
	At        time.Time `json:"at"`
}

// Message is the push notification text for the transition.
func (t Transition) Message() string {
	name := t.ActorName
	if name == "" {
		name = t.Actor
	}
	return fmt.Sprintf("%s %s the door", name, t.Verb)
}
