// Package guard gates rendering of protected views on session state. It
// is a decision engine only: the presentation layer supplies the redirect
// mechanics.
package guard

import (
	"sync"

	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/users"
)

// Requirement describes what a protected view demands of the session.
// An empty AllowedRoles list admits any authenticated role.
type Requirement struct {
	RequireAuth  bool
	AllowedRoles []users.Role
}

// Decision is the outcome of evaluating a requirement against session
// state.
type Decision int

const (
	// Allow renders the view.
	Allow Decision = iota
	// Pending keeps a transitional loading state: the session is still
	// rehydrating and redirecting now would flash the login screen at
	// users whose persisted tokens have not been read yet.
	Pending
	// RedirectLogin sends the user to the login surface.
	RedirectLogin
	// RedirectUnauthorized sends an authenticated but wrong-role user to
	// the unauthorized surface.
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Pending:
		return "pending"
	case RedirectLogin:
		return "redirect-login"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	default:
		return "unknown"
	}
}

// Evaluate applies a requirement to a session snapshot.
func Evaluate(state session.State, req Requirement) Decision {
	if !req.RequireAuth {
		return Allow
	}
	if state.Lifecycle != session.LifecycleReady {
		return Pending
	}
	if !state.Authenticated {
		return RedirectLogin
	}
	if !state.User.HasRole(req.AllowedRoles...) {
		return RedirectUnauthorized
	}
	return Allow
}

// Guard re-evaluates a requirement whenever session state changes; it is
// not a one-time check. The callback receives every decision, including
// repeats, so the view layer stays in sync.
type Guard struct {
	store  *session.Store
	onEval func(Decision)

	mu     sync.Mutex
	req    Requirement
	cancel func()
}

// New creates a guard bound to the session store and starts watching.
// Call Close to stop.
func New(store *session.Store, req Requirement, onEval func(Decision)) *Guard {
	g := &Guard{store: store, onEval: onEval, req: req}
	g.cancel = store.Subscribe(func(state session.State) {
		g.onEval(Evaluate(state, g.requirement()))
	})
	// Initial evaluation against the current state.
	g.onEval(Evaluate(store.State(), req))
	return g
}

// SetRequirement swaps the allow-list and re-evaluates immediately.
func (g *Guard) SetRequirement(req Requirement) {
	g.mu.Lock()
	g.req = req
	g.mu.Unlock()
	g.onEval(Evaluate(g.store.State(), req))
}

// Check evaluates the current state once without waiting for a change.
func (g *Guard) Check() Decision {
	return Evaluate(g.store.State(), g.requirement())
}

func (g *Guard) requirement() Requirement {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.req
}

// Close stops watching session state.
func (g *Guard) Close() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}
