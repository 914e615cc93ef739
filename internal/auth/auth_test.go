package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/idtoken"
)

type failingRoles struct{ err error }

func (f failingRoles) RoleFor(context.Context, string) (Role, error) { return "", f.err }
func (f failingRoles) AssignRole(context.Context, string, Role) error { return f.err }

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	resolver := NewRoleResolver(store, FailOpen, zerolog.Nop())
	return NewService(store, tokens, resolver, opts...), store
}

func TestHasRoleHierarchy(t *testing.T) {
	cases := []struct {
		resolved, required Role
		want               bool
	}{
		{RoleAdmin, RoleModerator, true},
		{RoleModerator, RoleModerator, true},
		{RoleUser, RoleModerator, false},
		{"", RoleModerator, false},
		{"", RoleUser, false},
		{RoleAdmin, RoleAdmin, true},
		{RoleModerator, RoleAdmin, false},
		{RoleUser, RoleUser, true},
	}
	for _, tc := range cases {
		if got := HasRole(tc.resolved, tc.required); got != tc.want {
			t.Fatalf("HasRole(%q, %q) = %v, want %v", tc.resolved, tc.required, got, tc.want)
		}
	}
	if !RoleAdmin.IsAdmin() || RoleModerator.IsAdmin() || !RoleUser.IsUser() || !RoleModerator.IsModerator() {
		t.Fatal("role helpers disagree")
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	if err != nil || r != RoleAdmin {
		t.Fatalf("ParseRole: %v %v", r, err)
	}
	if _, err := ParseRole("root"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolverDefaultsToUser(t *testing.T) {
	store := NewMemoryStore()
	res := NewRoleResolver(store, FailOpen, zerolog.Nop())
	ctx := context.Background()

	if r, err := res.Resolve(ctx, nil); r != "" || err != nil {
		t.Fatalf("nil identity should stay unresolved, got %q %v", r, err)
	}
	r, err := res.Resolve(ctx, &Identity{ID: "u1"})
	if err != nil || r != RoleUser {
		t.Fatalf("missing assignment: got %q %v", r, err)
	}
	_ = store.AssignRole(ctx, "u1", RoleAdmin)
	if r, _ := res.Resolve(ctx, &Identity{ID: "u1"}); r != RoleAdmin {
		t.Fatalf("expected admin, got %q", r)
	}
}

func TestResolverFailurePolicy(t *testing.T) {
	boom := errors.New("connection reset")
	ctx := context.Background()

	open := NewRoleResolver(failingRoles{err: boom}, FailOpen, zerolog.Nop())
	r, err := open.Resolve(ctx, &Identity{ID: "u1"})
	if err != nil || r != RoleUser {
		t.Fatalf("fail-open: got %q %v", r, err)
	}

	closed := NewRoleResolver(failingRoles{err: boom}, FailClosed, zerolog.Nop())
	r, err = closed.Resolve(ctx, &Identity{ID: "u1"})
	if r != "" || !errors.Is(err, ErrRoleLookup) {
		t.Fatalf("fail-closed: got %q %v", r, err)
	}
	if HasRole(r, RoleUser) {
		t.Fatal("unresolved role must not satisfy any requirement")
	}
}

func TestTokensRoundTrip(t *testing.T) {
	tokens, err := NewTokens("secret", time.Minute)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	tok, issued, err := tokens.Issue(Identity{ID: "u1", Email: "a@b.c", Provider: ProviderEmail})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Email != "a@b.c" || claims.ID != issued.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	other, _ := NewTokens("other-secret", time.Minute)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := tokens.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}

	if _, err := NewTokens("  ", time.Minute); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestSignUpSignInSignOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	grant, err := svc.SignUp(ctx, "Citizen@Example.com", "hunter22", "Ada")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if grant.Identity.DisplayName != "Ada" || grant.Identity.Email != "citizen@example.com" {
		t.Fatalf("unexpected identity: %+v", grant.Identity)
	}
	if _, err := svc.SignUp(ctx, "citizen@example.com", "hunter22", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "citizen@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}

	grant, err = svc.SignIn(ctx, "citizen@example.com", "hunter22")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	p, err := svc.Authenticate(ctx, grant.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.Role != RoleUser || p.Identity.DisplayName != "Ada" {
		t.Fatalf("unexpected principal: %+v", p)
	}

	if err := svc.SignOut(ctx, grant.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := svc.Authenticate(ctx, grant.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
}

type profileFailingStore struct{ *MemoryStore }

func (profileFailingStore) UpsertProfile(context.Context, Profile) (*Profile, error) {
	return nil, errors.New("profiles table unavailable")
}

func TestSignUpSurvivesProfileFailure(t *testing.T) {
	store := profileFailingStore{NewMemoryStore()}
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	svc := NewService(store, tokens, NewRoleResolver(store, FailOpen, zerolog.Nop()))
	ctx := context.Background()

	grant, err := svc.SignUp(ctx, "ada@example.com", "hunter22", "Ada")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if grant.Token == "" || grant.Identity.DisplayName != "" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	if _, err := svc.SignIn(ctx, "ada@example.com", "hunter22"); err != nil {
		t.Fatalf("SignIn after profile failure: %v", err)
	}
	id, profile, err := svc.CurrentUser(ctx, grant.Identity.ID)
	if err != nil || id.ID != grant.Identity.ID || profile != nil {
		t.Fatalf("CurrentUser: %v %+v %+v", err, id, profile)
	}
}

func TestFederatedSignInSurvivesProfileFailure(t *testing.T) {
	store := profileFailingStore{NewMemoryStore()}
	tokens, err := NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	g := NewGoogleVerifier("client-id")
	g.validate = func(context.Context, string, string) (*idtoken.Payload, error) {
		return &idtoken.Payload{Subject: "g-1", Claims: map[string]any{
			"email": "g@example.com", "email_verified": true, "name": "Grace",
		}}, nil
	}
	svc := NewService(store, tokens, NewRoleResolver(store, FailOpen, zerolog.Nop()), WithFederated(g))
	ctx := context.Background()

	grant, err := svc.SignInFederated(ctx, "good")
	if err != nil {
		t.Fatalf("SignInFederated: %v", err)
	}
	if grant.Token == "" || grant.Identity.Email != "g@example.com" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	again, err := svc.SignInFederated(ctx, "good")
	if err != nil || again.Identity.ID != grant.Identity.ID {
		t.Fatalf("second sign-in should reuse account: %v", err)
	}
}

func TestSignUpValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.SignUp(ctx, "not-an-email", "hunter22", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for email, got %v", err)
	}
	if _, err := svc.SignUp(ctx, "a@b.co", "123", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short password, got %v", err)
	}
}

func TestAssignRoleRequiresAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if err := svc.AssignRole(ctx, "ghost", RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	grant, _ := svc.SignUp(ctx, "mod@example.com", "hunter22", "")
	if err := svc.AssignRole(ctx, grant.Identity.ID, RoleModerator); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	p, err := svc.Authenticate(ctx, grant.Token)
	if err != nil || p.Role != RoleModerator {
		t.Fatalf("expected moderator, got %q %v", p.Role, err)
	}
}

func TestSignInFederated(t *testing.T) {
	g := NewGoogleVerifier("client-id")
	g.validate = func(_ context.Context, token, aud string) (*idtoken.Payload, error) {
		if token != "good" || aud != "client-id" {
			return nil, errors.New("bad token")
		}
		return &idtoken.Payload{Subject: "g-1", Claims: map[string]any{
			"email": "g@example.com", "email_verified": true, "name": "Grace",
		}}, nil
	}
	svc, _ := newTestService(t, WithFederated(g))
	ctx := context.Background()

	grant, err := svc.SignInFederated(ctx, "good")
	if err != nil {
		t.Fatalf("SignInFederated: %v", err)
	}
	if grant.Identity.Provider != ProviderGoogle || grant.Identity.DisplayName != "Grace" {
		t.Fatalf("unexpected identity: %+v", grant.Identity)
	}
	again, err := svc.SignInFederated(ctx, "good")
	if err != nil || again.Identity.ID != grant.Identity.ID {
		t.Fatalf("second sign-in should reuse account: %v", err)
	}
	if _, err := svc.SignInFederated(ctx, "bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	plain, _ := newTestService(t)
	if _, err := plain.SignInFederated(ctx, "good"); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestSessionNotifiesListeners(t *testing.T) {
	s := NewSession()
	var seen []*Identity
	s.OnChange(func(id *Identity) { seen = append(seen, id) })

	s.Begin(Identity{ID: "u1"}, "tok")
	if !s.SignedIn() || s.Token() != "tok" || s.Identity().ID != "u1" {
		t.Fatal("session not started")
	}
	s.End()
	if s.SignedIn() || s.Identity() != nil {
		t.Fatal("session not ended")
	}
	if len(seen) != 2 || seen[0] == nil || seen[1] != nil {
		t.Fatalf("unexpected notifications: %v", seen)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "secret-pass"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "nope"); err == nil {
		t.Fatal("expected mismatch")
	}
}
