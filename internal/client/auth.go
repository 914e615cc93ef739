package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"civicconnect.org/internal/auth"
)

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// CurrentUser is the signed-in account with its profile.
type CurrentUser struct {
	User    auth.Identity `json:"user"`
	Profile *auth.Profile `json:"profile,omitempty"`
}

type roleBody struct {
	UserID string    `json:"user_id,omitempty"`
	Role   auth.Role `json:"role"`
}

// SignUp creates an account and starts a session for it.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*auth.SessionGrant, error) {
	return c.begin(ctx, "/v1/auth/signup", credentials{Email: email, Password: password, DisplayName: displayName})
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.SessionGrant, error) {
	return c.begin(ctx, "/v1/auth/signin", credentials{Email: email, Password: password})
}

// SignInFederated exchanges a Google ID token for a session.
func (c *Client) SignInFederated(ctx context.Context, idToken string) (*auth.SessionGrant, error) {
	return c.begin(ctx, "/v1/auth/federated", map[string]string{"id_token": idToken})
}

func (c *Client) begin(ctx context.Context, path string, body any) (*auth.SessionGrant, error) {
	var grant auth.SessionGrant
	if err := c.do(ctx, http.MethodPost, path, nil, body, &grant); err != nil {
		return nil, err
	}
	c.session.Begin(grant.Identity, grant.Token)
	return &grant, nil
}

// SignOut revokes the token server-side and always clears the local session.
func (c *Client) SignOut(ctx context.Context) error {
	if !c.session.SignedIn() {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/v1/auth/signout", nil, nil, nil)
	c.session.End()
	if errors.Is(err, auth.ErrUnauthorized) {
		return nil
	}
	return err
}

func (c *Client) CurrentUser(ctx context.Context) (CurrentUser, error) {
	var out CurrentUser
	err := c.do(ctx, http.MethodGet, "/v1/auth/user", nil, nil, &out)
	return out, err
}

// RoleFor reads the stored role of the signed-in user. It satisfies
// auth.RoleStore so an auth.RoleResolver can apply its policy client-side.
func (c *Client) RoleFor(ctx context.Context, userID string) (auth.Role, error) {
	if id := c.session.Identity(); id == nil || id.ID != userID {
		return "", auth.ErrForbidden
	}
	var out roleBody
	if err := c.do(ctx, http.MethodGet, "/v1/roles/me", nil, nil, &out); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return "", auth.ErrNotFound
		}
		return "", err
	}
	return out.Role, nil
}

// AssignRole sets another user's role; admin only.
func (c *Client) AssignRole(ctx context.Context, userID string, role auth.Role) error {
	return c.do(ctx, http.MethodPut, "/v1/roles/"+url.PathEscape(userID), nil, roleBody{Role: role}, nil)
}

// Profiles fetches display profiles for the given user ids.
func (c *Client) Profiles(ctx context.Context, ids []string) (map[string]auth.Profile, error) {
	out := struct {
		Profiles map[string]auth.Profile `json:"profiles"`
	}{}
	if len(ids) == 0 {
		return map[string]auth.Profile{}, nil
	}
	q := url.Values{"ids": []string{strings.Join(ids, ",")}}
	if err := c.do(ctx, http.MethodGet, "/v1/profiles", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Profiles == nil {
		out.Profiles = map[string]auth.Profile{}
	}
	return out.Profiles, nil
}
