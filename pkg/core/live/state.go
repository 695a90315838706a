package live

// State represents the lifecycle of one voice session.
type State int

const (
	// StateIdle is the initial state before Open is called.
	StateIdle State = iota
	// StateConnecting is while the microphone and duplex channel are
	// being acquired.
	StateConnecting
	// StateActive is a fully established session exchanging audio.
	StateActive
	// StateInterrupted is entered when the remote party talks over queued
	// playback; the next inbound audio frame returns to StateActive.
	StateInterrupted
	// StateClosed is terminal: the session was shut down locally or by the
	// remote end.
	StateClosed
	// StateFailed is terminal: establishment or the channel itself failed.
	// Recovery requires a new session.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateInterrupted:
		return "INTERRUPTED"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions can leave s.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// validTransition encodes the session lifecycle:
//
//	Idle -> Connecting -> Active <-> Interrupted
//	Connecting -> Failed
//	Active/Interrupted -> Closed | Failed
func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateConnecting
	case StateConnecting:
		return to == StateActive || to == StateFailed || to == StateClosed
	case StateActive:
		return to == StateInterrupted || to == StateClosed || to == StateFailed
	case StateInterrupted:
		return to == StateActive || to == StateClosed || to == StateFailed
	default:
		return false
	}
}
