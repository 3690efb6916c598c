package session

import "github.com/agrimandi/agrimandi-go/users"

// Lifecycle tracks rehydration of persisted credentials at process start.
// Consumers that make redirect decisions (the route guard) must wait for
// LifecycleReady; before that the session may still turn out to be
// authenticated.
type Lifecycle int

const (
	LifecycleUninitialized Lifecycle = iota
	LifecycleRehydrating
	LifecycleReady
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleUninitialized:
		return "uninitialized"
	case LifecycleRehydrating:
		return "rehydrating"
	case LifecycleReady:
		return "ready"
	default:
		return "unknown"
	}
}

// State is a snapshot of the current authentication state for this
// process. Authenticated is derived: it is true iff User and AccessToken
// are both present, and the store never lets the two diverge.
type State struct {
	User         *users.User
	AccessToken  string
	RefreshToken string

	Authenticated bool
	Loading       bool
	Err           string
	Lifecycle     Lifecycle
}

// clone deep-copies the snapshot so callers can hold it across further
// state changes.
func (s State) clone() State {
	out := s
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	return out
}
