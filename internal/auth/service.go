package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FederatedVerifier validates an identity token issued by an external provider.
type FederatedVerifier interface {
	Provider() string
	Verify(ctx context.Context, idToken string) (FederatedClaims, error)
}

// FederatedClaims is what a provider vouches for.
type FederatedClaims struct {
	Subject     string
	Email       string
	DisplayName string
	AvatarURL   string
}

// SessionGrant is returned by every successful sign-in.
type SessionGrant struct {
	Identity  Identity  `json:"user"`
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service implements the backend side of authentication.
type Service struct {
	store     Store
	tokens    *Tokens
	resolver  *RoleResolver
	federated FederatedVerifier
	log       zerolog.Logger
}

type ServiceOption func(*Service)

// WithFederated enables federated sign-in through v.
func WithFederated(v FederatedVerifier) ServiceOption {
	return func(s *Service) { s.federated = v }
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

func NewService(store Store, tokens *Tokens, resolver *RoleResolver, opts ...ServiceOption) *Service {
	s := &Service{store: store, tokens: tokens, resolver: resolver, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Resolver() *RoleResolver { return s.resolver }

// SignUp creates an email account with an optional display name and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*SessionGrant, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	email = addr.Address
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, User{Email: email, PasswordHash: hash, Provider: ProviderEmail})
	if err != nil {
		return nil, err
	}
	// Sign-up still succeeds without a profile; the display name stays empty.
	p, err := s.store.UpsertProfile(ctx, Profile{UserID: u.ID, DisplayName: strings.TrimSpace(displayName)})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", u.ID).Msg("create profile failed")
		p = nil
	}
	s.log.Info().Str("user_id", u.ID).Msg("user signed up")
	return s.grant(identityOf(u, p))
}

// SignIn checks email credentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (*SessionGrant, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || VerifyPassword(u.PasswordHash, password) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.grant(identityOf(u, s.profile(ctx, u.ID)))
}

// SignInFederated exchanges a provider id token for a session, creating the
// account on first use.
func (s *Service) SignInFederated(ctx context.Context, idToken string) (*SessionGrant, error) {
	if s.federated == nil {
		return nil, ErrNotImplemented
	}
	fc, err := s.federated.Verify(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if fc.Email == "" {
		return nil, fmt.Errorf("%w: provider returned no email", ErrUnauthorized)
	}
	u, err := s.store.UserByEmail(ctx, fc.Email)
	if errors.Is(err, ErrNotFound) {
		u, err = s.store.CreateUser(ctx, User{Email: fc.Email, Provider: s.federated.Provider()})
	}
	if err != nil {
		return nil, err
	}
	p, err := s.store.UpsertProfile(ctx, Profile{UserID: u.ID, DisplayName: fc.DisplayName, AvatarURL: fc.AvatarURL})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", u.ID).Msg("update profile failed")
		p = s.profile(ctx, u.ID)
	}
	return s.grant(identityOf(u, p))
}

// SignOut revokes the token the principal authenticated with.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	return s.store.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Authenticate turns a bearer token into a principal with its role resolved.
// Under FailClosed a lookup failure leaves Role empty and returns ErrRoleLookup
// alongside the principal.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	revoked, err := s.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Principal{}, err
	}
	if revoked {
		return Principal{}, ErrInvalidToken
	}
	id := claims.Identity()
	if p := s.profile(ctx, id.ID); p != nil {
		id.DisplayName = p.DisplayName
	}
	role, err := s.resolver.Resolve(ctx, &id)
	return Principal{Identity: id, Role: role, TokenID: claims.ID}, err
}

// CurrentUser returns the account and profile behind userID.
func (s *Service) CurrentUser(ctx context.Context, userID string) (Identity, *Profile, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return Identity{}, nil, err
	}
	p := s.profile(ctx, userID)
	return identityOf(u, p), p, nil
}

// RoleFor returns the stored role assignment without applying any policy.
func (s *Service) RoleFor(ctx context.Context, userID string) (Role, error) {
	return s.store.RoleFor(ctx, userID)
}

// AssignRole sets userID's role. The account must exist.
func (s *Service) AssignRole(ctx context.Context, userID string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return err
	}
	return s.store.AssignRole(ctx, userID, role)
}

// Profiles returns display profiles for the given users, skipping unknown ids.
func (s *Service) Profiles(ctx context.Context, userIDs []string) map[string]Profile {
	out := make(map[string]Profile, len(userIDs))
	for _, id := range userIDs {
		if _, ok := out[id]; ok {
			continue
		}
		if p := s.profile(ctx, id); p != nil {
			out[id] = *p
		}
	}
	return out
}

func (s *Service) profile(ctx context.Context, userID string) *Profile {
	p, err := s.store.ProfileByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		}
		return nil
	}
	return p
}

func (s *Service) grant(id Identity) (*SessionGrant, error) {
	token, claims, err := s.tokens.Issue(id)
	if err != nil {
		return nil, err
	}
	return &SessionGrant{Identity: id, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}
