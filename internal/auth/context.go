package auth

import (
	"context"
	"sync"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Identity Identity
	Role     Role
	TokenID  string
}

type principalContextKey struct{}
type tokenContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.Identity.ID == "" {
		return "", false
	}
	return p.Identity.ID, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Session is the client-side authentication context: the current identity
// and its token, shared by every screen of a running client.
type Session struct {
	mu        sync.RWMutex
	identity  *Identity
	token     string
	listeners []func(*Identity)
}

// NewSession returns a signed-out session.
func NewSession() *Session { return &Session{} }

// Begin records a successful sign-in and notifies listeners.
func (s *Session) Begin(id Identity, token string) {
	s.mu.Lock()
	cp := id
	s.identity = &cp
	s.token = token
	ls := append([]func(*Identity){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range ls {
		fn(&cp)
	}
}

// End clears the session and notifies listeners.
func (s *Session) End() {
	s.mu.Lock()
	s.identity = nil
	s.token = ""
	ls := append([]func(*Identity){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range ls {
		fn(nil)
	}
}

// Identity returns a copy of the current identity, or nil when signed out.
func (s *Session) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// OnChange registers fn to be called on every Begin and End.
func (s *Session) OnChange(fn func(*Identity)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
