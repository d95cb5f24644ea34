package pipeline

import "fmt"

// State is a state of the plan run state machine.
type State string

// Run states
const (
	StateIdle              State = "idle"
	StateDiscovering       State = "discovering"
	StateAnalyzing         State = "analyzing"
	StateStrategizing      State = "strategizing"
	StateAdvising          State = "advising"
	StateAwaitingBuildMode State = "awaiting-build-mode-selection"
	StateFinalizing        State = "finalizing"
	StateDone              State = "done"
	StateError             State = "error"
)

// transitions lists the successors of every non-terminal state. Error is reachable from all of them.
// Idle may jump to awaiting-build-mode-selection (checkpoint resume) or done (complete record found).
var transitions = map[State][]State{
	StateIdle:              {StateDiscovering, StateAnalyzing, StateAwaitingBuildMode, StateDone},
	StateDiscovering:       {StateAnalyzing, StateAwaitingBuildMode, StateDone},
	StateAnalyzing:         {StateStrategizing},
	StateStrategizing:      {StateAdvising},
	StateAdvising:          {StateAwaitingBuildMode},
	StateAwaitingBuildMode: {StateFinalizing},
	StateFinalizing:        {StateDone},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	return nil
}
