package session

import "fmt"

// SessionStateError reports an operation attempted in the wrong session
// state, e.g. pushing audio while no session is active. Always recoverable;
// the operation is a no-op.
type SessionStateError struct {
	// Op is the attempted operation.
	Op string
	// Active is whether a session was running at the time.
	Active bool
}

func (e *SessionStateError) Error() string {
	state := "inactive"
	if e.Active {
		state = "active"
	}
	return fmt.Sprintf("session: %s: invalid while session is %s", e.Op, state)
}
