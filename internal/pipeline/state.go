package pipeline

// State is a step of the answer state machine. Every request moves forward through the
// states at most once; there are no cycles.
type State int

const (
	StateStart State = iota
	StateMasked
	StateCredentialCheck
	StateRefused
	StateRetrieved
	StateInsufficientContext
	StatePromptBuilt
	StateGenerated
	StateCitationsEnforced
	StateDone
)

var stateNames = [...]string{
	StateStart:               "start",
	StateMasked:              "masked",
	StateCredentialCheck:     "credential_check",
	StateRefused:             "refused",
	StateRetrieved:           "retrieved",
	StateInsufficientContext: "insufficient_context",
	StatePromptBuilt:         "prompt_built",
	StateGenerated:           "generated",
	StateCitationsEnforced:   "citations_enforced",
	StateDone:                "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateRefused || s == StateInsufficientContext || s == StateDone
}
