package session

// Phase is the current stage of the session lifecycle.
//
// Bootstrapping is the initial state while a stored credential (if any) is
// validated against the backend. It exits exactly once, into Authenticated or
// Anonymous, and is never re-entered.
type Phase int

const (
	PhaseBootstrapping Phase = iota
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}
