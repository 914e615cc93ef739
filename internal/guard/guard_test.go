package guard

import (
	"testing"

	"civicconnect.org/internal/auth"
)

func TestUserGuard(t *testing.T) {
	id := &auth.Identity{ID: "u1"}
	cases := []struct {
		name  string
		state State
		want  Kind
	}{
		{"loading", State{Loading: true, Identity: id}, Resolving},
		{"signed out", State{}, Redirecting},
		{"signed in", State{Identity: id}, Rendering},
	}
	for _, tc := range cases {
		if got := User(tc.state); got.Kind != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got.Kind, tc.want)
		}
	}
	if d := User(State{}); d.Target != AuthPath {
		t.Fatalf("expected redirect to %s, got %q", AuthPath, d.Target)
	}
}

func TestAdminGuard(t *testing.T) {
	id := &auth.Identity{ID: "u1"}
	cases := []struct {
		name  string
		state State
		want  Kind
	}{
		{"loading", State{Loading: true}, Resolving},
		{"signed out", State{Role: auth.RoleAdmin}, Redirecting},
		{"user", State{Identity: id, Role: auth.RoleUser}, Denied},
		{"moderator", State{Identity: id, Role: auth.RoleModerator}, Denied},
		{"unresolved", State{Identity: id}, Denied},
		{"admin", State{Identity: id, Role: auth.RoleAdmin}, Rendering},
	}
	for _, tc := range cases {
		if got := Admin(tc.state); got.Kind != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got.Kind, tc.want)
		}
	}
	d := Admin(State{Identity: id, Role: auth.RoleUser})
	if d.Title != "Access Denied" || d.Message != "Admin access required." || d.Allowed() {
		t.Fatalf("unexpected denial: %+v", d)
	}
}
