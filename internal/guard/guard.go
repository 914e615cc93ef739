// Package guard decides whether a protected view may render for the current
// authentication state.
package guard

import "civicconnect.org/internal/auth"

// AuthPath is where unauthenticated callers are sent.
const AuthPath = "/auth"

// Kind enumerates the guard outcomes.
type Kind int

const (
	Resolving Kind = iota
	Redirecting
	Denied
	Rendering
)

func (k Kind) String() string {
	switch k {
	case Resolving:
		return "resolving"
	case Redirecting:
		return "redirecting"
	case Denied:
		return "denied"
	case Rendering:
		return "rendering"
	}
	return "unknown"
}

// State is the input a guard evaluates.
type State struct {
	Loading  bool
	Identity *auth.Identity
	Role     auth.Role
}

// Decision is the guard outcome. Target is set for Redirecting, Title and
// Message for Denied.
type Decision struct {
	Kind    Kind
	Target  string
	Title   string
	Message string
}

func (d Decision) Allowed() bool { return d.Kind == Rendering }

// User renders for any signed-in identity.
func User(s State) Decision {
	switch {
	case s.Loading:
		return Decision{Kind: Resolving}
	case s.Identity == nil:
		return Decision{Kind: Redirecting, Target: AuthPath}
	}
	return Decision{Kind: Rendering}
}

// Admin renders only for identities whose role is admin.
func Admin(s State) Decision {
	if d := User(s); d.Kind != Rendering {
		return d
	}
	if !s.Role.IsAdmin() {
		return Decision{Kind: Denied, Title: "Access Denied", Message: "Admin access required."}
	}
	return Decision{Kind: Rendering}
}
