package engine

// State is a Session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReasoning
	StateReady
	StateClosed
)

var stateNames = [...]string{
	StateUninitialized: "uninitialized",
	StateLoading:       "loading",
	StateReasoning:     "reasoning",
	StateReady:         "ready",
	StateClosed:        "closed",
}

// String returns the lowercase state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
