package auth

import (
	"fmt"
	"strings"
)

// Role is the privilege tag of an identity. The zero value means "not resolved".
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

var roleRank = map[Role]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Resolved reports whether a role has been determined.
func (r Role) Resolved() bool { return r.Valid() }

// Rank is the position of r in user < moderator < admin; 0 when unresolved.
func (r Role) Rank() int { return roleRank[r] }

// AtLeast reports whether r is as privileged as required.
// An unresolved role never satisfies anything.
func (r Role) AtLeast(required Role) bool {
	if !r.Valid() || !required.Valid() {
		return false
	}
	return r.Rank() >= required.Rank()
}

func (r Role) IsAdmin() bool     { return r == RoleAdmin }
func (r Role) IsModerator() bool { return r == RoleModerator }
func (r Role) IsUser() bool      { return r == RoleUser }

// Staff reports whether r may see staff-only report fields.
func (r Role) Staff() bool { return r.AtLeast(RoleModerator) }

// ParseRole normalises and validates a role name.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	return r, nil
}

// HasRole is the hierarchy check used by guards and handlers.
func HasRole(resolved, required Role) bool {
	return resolved.AtLeast(required)
}
