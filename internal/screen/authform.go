package screen

import (
	"context"
	"errors"
	"strings"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/guard"
)

const (
	MsgInvalidAdminCredentials = "Invalid admin credentials. Please check your email and password."
	MsgAdminGranted            = "Admin access granted"
	MsgUnexpected              = "An unexpected error occurred. Please try again."
)

// Authenticator is the sign-in surface; *client.Client satisfies it.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, displayName string) (*auth.SessionGrant, error)
	SignIn(ctx context.Context, email, password string) (*auth.SessionGrant, error)
	SignInFederated(ctx context.Context, idToken string) (*auth.SessionGrant, error)
}

// RoleChecker resolves the role of a freshly signed-in identity.
type RoleChecker interface {
	Resolve(ctx context.Context, id *auth.Identity) (auth.Role, error)
}

// FormError is a message meant for the form's error line.
type FormError struct {
	Message string
	Err     error
}

func (e *FormError) Error() string { return e.Message }
func (e *FormError) Unwrap() error { return e.Err }

// AuthForm drives the sign-in and sign-up screens.
type AuthForm struct {
	auth   Authenticator
	roles  RoleChecker
	notify interface{ Success(string) }
	admin  bool
}

func NewAuthForm(a Authenticator, notify interface{ Success(string) }) *AuthForm {
	return &AuthForm{auth: a, notify: notify}
}

// NewAdminAuthForm is the admin sign-in variant. It reports whether the
// signed-in identity actually holds the admin role.
func NewAdminAuthForm(a Authenticator, roles RoleChecker, notify interface{ Success(string) }) *AuthForm {
	return &AuthForm{auth: a, roles: roles, notify: notify, admin: true}
}

// Redirect returns where an already signed-in user is sent instead of the form.
func (f *AuthForm) Redirect(s guard.State) (string, bool) {
	if s.Loading || s.Identity == nil {
		return "", false
	}
	if f.admin {
		if s.Role.IsAdmin() {
			return "/admin", true
		}
		return "", false
	}
	return "/", true
}

func (f *AuthForm) SignIn(ctx context.Context, email, password string) (*auth.SessionGrant, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, &FormError{Message: "Email and password are required."}
	}
	grant, err := f.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, f.formError(err)
	}
	if f.admin {
		if err := f.confirmAdmin(ctx, grant); err != nil {
			return grant, err
		}
		f.success(MsgAdminGranted)
		return grant, nil
	}
	f.success("Welcome, " + DisplayName(grant.Identity))
	return grant, nil
}

func (f *AuthForm) SignUp(ctx context.Context, email, password, displayName string) (*auth.SessionGrant, error) {
	grant, err := f.auth.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, f.formError(err)
	}
	f.success("Welcome, " + DisplayName(grant.Identity))
	return grant, nil
}

func (f *AuthForm) SignInFederated(ctx context.Context, idToken string) (*auth.SessionGrant, error) {
	grant, err := f.auth.SignInFederated(ctx, idToken)
	if err != nil {
		return nil, f.formError(err)
	}
	f.success("Welcome, " + DisplayName(grant.Identity))
	return grant, nil
}

func (f *AuthForm) confirmAdmin(ctx context.Context, grant *auth.SessionGrant) error {
	if f.roles == nil {
		return nil
	}
	id := grant.Identity
	role, err := f.roles.Resolve(ctx, &id)
	if err != nil {
		return &FormError{Message: MsgUnexpected, Err: err}
	}
	if !role.IsAdmin() {
		return &FormError{Message: "Admin access required.", Err: auth.ErrForbidden}
	}
	return nil
}

func (f *AuthForm) formError(err error) error {
	switch {
	case f.admin && (errors.Is(err, auth.ErrInvalidCredentials) || strings.Contains(err.Error(), auth.ErrInvalidCredentials.Error())):
		return &FormError{Message: MsgInvalidAdminCredentials, Err: err}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &FormError{Message: auth.ErrInvalidCredentials.Error(), Err: err}
	case errors.Is(err, auth.ErrConflict):
		return &FormError{Message: "User already registered", Err: err}
	case errors.Is(err, auth.ErrInvalidInput):
		return &FormError{Message: err.Error(), Err: err}
	case errors.Is(err, auth.ErrNotImplemented):
		return &FormError{Message: "Google sign-in is not configured on this server.", Err: err}
	}
	return &FormError{Message: MsgUnexpected, Err: err}
}

func (f *AuthForm) success(msg string) {
	if f.notify != nil {
		f.notify.Success(msg)
	}
}
