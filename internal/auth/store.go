package auth

import (
	"context"
	"time"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
}

// ProfileStore persists display profiles. UpsertProfile keeps an existing
// display name when p.DisplayName is empty.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p Profile) (*Profile, error)
	ProfileByUserID(ctx context.Context, userID string) (*Profile, error)
}

// RoleStore maps users to their single role. RoleFor returns ErrNotFound when
// no assignment exists.
type RoleStore interface {
	RoleFor(ctx context.Context, userID string) (Role, error)
	AssignRole(ctx context.Context, userID string, role Role) error
}

// RevocationStore remembers signed-out token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Store bundles everything the auth service needs.
type Store interface {
	UserStore
	ProfileStore
	RoleStore
	RevocationStore
}
