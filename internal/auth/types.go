package auth

import "time"

const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// Identity is the signed-in user as seen by screens and handlers.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Provider    string `json:"provider"`
}

// User is the stored account behind an Identity.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Provider     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile carries public display data for a user.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleAssignment maps a user to exactly one role.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func identityOf(u *User, p *Profile) Identity {
	id := Identity{ID: u.ID, Email: u.Email, Provider: u.Provider}
	if p != nil {
		id.DisplayName = p.DisplayName
	}
	return id
}
