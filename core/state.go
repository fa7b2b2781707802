package session

// State is the session controller's top-level state.
type State int

const (
	// StateInitializing means device acquisition and channel setup are
	// still running.
	StateInitializing State = iota
	// StateCapturingIdle means media is live but nothing has been
	// transcribed yet.
	StateCapturingIdle
	// StateListening means transcripts are flowing and no branch request
	// is outstanding.
	StateListening
	// StateAwaitingBranch means a narrative request is in flight.
	StateAwaitingBranch
	// StatePresentingOptions means a branch option list is on screen.
	StatePresentingOptions
	// StateError means an unrecoverable device failure needs a manual
	// retry.
	StateError
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateCapturingIdle:
		return "capturing_idle"
	case StateListening:
		return "listening"
	case StateAwaitingBranch:
		return "awaiting_branch"
	case StatePresentingOptions:
		return "presenting_options"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
