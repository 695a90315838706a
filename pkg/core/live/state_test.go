package live

import "testing"

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:        "IDLE",
		StateConnecting:  "CONNECTING",
		StateActive:      "ACTIVE",
		StateInterrupted: "INTERRUPTED",
		StateClosed:      "CLOSED",
		StateFailed:      "FAILED",
		State(99):        "UNKNOWN",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", s, got, want)
		}
	}
}

func TestValidTransitions(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StateIdle, StateConnecting},
		{StateConnecting, StateActive},
		{StateConnecting, StateFailed},
		{StateActive, StateInterrupted},
		{StateInterrupted, StateActive},
		{StateActive, StateClosed},
		{StateActive, StateFailed},
		{StateInterrupted, StateClosed},
		{StateInterrupted, StateFailed},
	}
	for _, tr := range allowed {
		if !validTransition(tr.from, tr.to) {
			t.Fatalf("%v -> %v should be valid", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to State }{
		{StateIdle, StateActive},
		{StateClosed, StateActive},
		{StateClosed, StateConnecting},
		{StateFailed, StateActive},
		{StateFailed, StateConnecting},
		{StateActive, StateConnecting},
	}
	for _, tr := range denied {
		if validTransition(tr.from, tr.to) {
			t.Fatalf("%v -> %v should be invalid", tr.from, tr.to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateClosed, StateFailed} {
		if !s.Terminal() {
			t.Fatalf("%v should be terminal", s)
		}
	}
	for _, s := range []State{StateIdle, StateConnecting, StateActive, StateInterrupted} {
		if s.Terminal() {
			t.Fatalf("%v should not be terminal", s)
		}
	}
}
