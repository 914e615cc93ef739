package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/guard"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth attaches the principal when a bearer token is presented.
// Requests without a token continue anonymously; guards decide later.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || a.auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get(authHeader)
		if strings.TrimSpace(header) == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, err := extractBearerToken(header)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := a.auth.Authenticate(r.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrRoleLookup):
			// fail-closed: identity is known, role stays unresolved
			a.log.Warn().Err(err).Str("user_id", principal.Identity.ID).Msg("role unresolved")
		case errors.Is(err, auth.ErrInvalidToken):
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		default:
			a.log.Error().Err(err).Msg("authentication error")
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func guardState(r *http.Request) guard.State {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return guard.State{}
	}
	id := p.Identity
	return guard.State{Identity: &id, Role: p.Role}
}

// RequireUser lets signed-in callers through.
func (a *API) RequireUser(next http.Handler) http.Handler {
	return a.enforce(guard.User, next)
}

// RequireAdmin lets admins through; nothing downstream runs on denial.
func (a *API) RequireAdmin(next http.Handler) http.Handler {
	return a.enforce(guard.Admin, next)
}

func (a *API) enforce(check func(guard.State) guard.Decision, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := check(guardState(r))
		switch d.Kind {
		case guard.Rendering:
			next.ServeHTTP(w, r)
		case guard.Redirecting:
			w.Header().Set("Location", d.Target)
			w.Header().Set("WWW-Authenticate", `Bearer realm="civicconnect"`)
			writeError(w, r, http.StatusUnauthorized, "authentication required")
		case guard.Denied:
			writeError(w, r, http.StatusForbidden, d.Message)
		default:
			w.Header().Set("Retry-After", "1")
			writeError(w, r, http.StatusServiceUnavailable, "authorization pending")
		}
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func principal(r *http.Request) (auth.Principal, bool) {
	return auth.PrincipalFromContext(r.Context())
}
