package session

import (
	"github.com/campusdocs/cert-portal/models"
)

// Action is the outcome of a guard evaluation
type Action int

const (
	// ActionWait means the session is still loading; show a neutral
	// waiting state, never the guarded view
	ActionWait Action = iota

	// ActionRender means the requested view may render
	ActionRender

	// ActionRedirectLogin means redirect to the login view, preserving
	// the originally requested location
	ActionRedirectLogin

	// ActionRedirectUnauthorized means redirect to the unauthorized view
	ActionRedirectUnauthorized
)

// Decision is the single terminal outcome of one guard evaluation
type Decision struct {
	Action Action

	// From is the originally requested location, set on RedirectLogin so
	// the client can return there after login
	From string
}

// Route declares the access requirements of a view
type Route struct {
	Path string

	// RequiredRole, when set, restricts the view to identities carrying
	// exactly this role
	RequiredRole models.Role
}

// Guard gates access to views based on session state and required role
type Guard struct {
	session *Session
}

// NewGuard creates a guard over the given session
func NewGuard(session *Session) *Guard {
	return &Guard{session: session}
}

// Evaluate decides whether the requested view may render. Exactly one
// decision is returned per evaluation. Redirects are silent: the caller
// shows no error, only a navigation change.
//
// The stored token is re-validated on every evaluation, never trusted
// from an earlier one: a token that expired mid-session stops rendering
// on the next navigation.
func (g *Guard) Evaluate(route Route) Decision {
	if g.session.State() == StateLoading {
		return Decision{Action: ActionWait}
	}

	if err := g.session.Load(); err != nil {
		return Decision{Action: ActionRedirectLogin, From: route.Path}
	}

	identity := g.session.Identity()
	if identity == nil {
		return Decision{Action: ActionRedirectLogin, From: route.Path}
	}

	// A role mismatch on a valid session is unauthorized, not a login
	// problem
	if route.RequiredRole != "" && identity.Role != route.RequiredRole {
		return Decision{Action: ActionRedirectUnauthorized}
	}

	return Decision{Action: ActionRender}
}
