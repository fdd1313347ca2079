package model

import "fmt"

// State is the interaction state of an agent session, derived from the
// text rendered in its pane. States are independent categories; there is
// no ordering between them.
type State int

const (
	// StateUnknown means the content could not be classified, or the
	// session's captures have been failing for too long.
	StateUnknown State = iota
	// StateRunning means the agent is actively working.
	StateRunning
	// StateApproval means the agent waits for a yes/no confirmation.
	StateApproval
	// StateWaiting means the agent waits for a free-form answer.
	StateWaiting
	// StateIdle means the agent sits at its prompt with nothing pending.
	StateIdle
	// StateStopped means the agent terminated or crashed.
	StateStopped
)

// AllStates lists every state, in declaration order.
var AllStates = []State{StateUnknown, StateRunning, StateApproval, StateWaiting, StateIdle, StateStopped}

var stateNames = map[State]string{
	StateUnknown:  "unknown",
	StateRunning:  "running",
	StateApproval: "approval",
	StateWaiting:  "waiting",
	StateIdle:     "idle",
	StateStopped:  "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState parses the lower-case state name.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return StateUnknown, fmt.Errorf("invalid state %q", name)
}

// NeedsAttention reports whether the agent is blocked on the user.
func (s State) NeedsAttention() bool {
	return s == StateApproval || s == StateWaiting
}

// MarshalText encodes the state as its name, so JSON carries "idle"
// rather than a number.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
