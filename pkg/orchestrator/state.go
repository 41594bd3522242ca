package orchestrator

import "fmt"

// State is the lifecycle position of an Orchestrator.
type State int32

const (
	StateInitializing State = iota
	StateExtractingResources
	StateStarting
	StateWaitingForReady
	StateInstallingPlugins
	StateReady
	StateFailed
	StateDisposed
)

var stateNames = [...]string{
	StateInitializing:        "Initializing",
	StateExtractingResources: "ExtractingResources",
	StateStarting:            "Starting",
	StateWaitingForReady:     "WaitingForReady",
	StateInstallingPlugins:   "InstallingPlugins",
	StateReady:               "Ready",
	StateFailed:              "Failed",
	StateDisposed:            "Disposed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// MarshalText renders the state name, for JSON status output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// Terminal reports whether no forward transition leaves s.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateDisposed
}

var forward = map[State][]State{
	StateInitializing:        {StateExtractingResources},
	StateExtractingResources: {StateStarting},
	StateStarting:            {StateWaitingForReady},
	StateWaitingForReady:     {StateInstallingPlugins, StateReady},
	StateInstallingPlugins:   {StateStarting, StateReady},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	switch {
	case from == StateDisposed:
		return false
	case to == StateDisposed:
		return true
	case to == StateFailed:
		return !from.Terminal()
	}
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}
