package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"civicconnect.org/internal/audit"
	"civicconnect.org/internal/auth"
)

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type federatedRequest struct {
	IDToken string `json:"id_token"`
}

type currentUserResponse struct {
	User    auth.Identity `json:"user"`
	Profile *auth.Profile `json:"profile,omitempty"`
}

type roleResponse struct {
	UserID string    `json:"user_id"`
	Role   auth.Role `json:"role"`
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

type profilesResponse struct {
	Profiles map[string]auth.Profile `json:"profiles"`
}

func (a *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	grant, err := a.auth.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{"user_id": grant.Identity.ID})
	writeJSON(w, http.StatusCreated, grant)
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	grant, err := a.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signin", map[string]any{"user_id": grant.Identity.ID, "provider": auth.ProviderEmail})
	writeJSON(w, http.StatusOK, grant)
}

func (a *API) handleFederated(w http.ResponseWriter, r *http.Request) {
	var req federatedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	grant, err := a.auth.SignInFederated(r.Context(), req.IDToken)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signin", map[string]any{"user_id": grant.Identity.ID, "provider": grant.Identity.Provider})
	writeJSON(w, http.StatusOK, grant)
}

func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.TokenFromContext(r.Context())
	if err := a.auth.SignOut(r.Context(), token); err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signout", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	id, profile, err := a.auth.CurrentUser(r.Context(), p.Identity.ID)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, currentUserResponse{User: id, Profile: profile})
}

// handleMyRole returns the stored assignment. Policy for missing or failed
// lookups belongs to the caller's resolver.
func (a *API) handleMyRole(w http.ResponseWriter, r *http.Request) {
	p, _ := principal(r)
	role, err := a.auth.RoleFor(r.Context(), p.Identity.ID)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roleResponse{UserID: p.Identity.ID, Role: role})
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := a.auth.AssignRole(r.Context(), userID, role); err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.assigned", map[string]any{"target_user_id": userID, "role": role})
	writeJSON(w, http.StatusOK, roleResponse{UserID: userID, Role: role})
}

func (a *API) handleProfiles(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, part := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	if len(ids) > 200 {
		writeError(w, r, http.StatusBadRequest, "too many ids")
		return
	}
	writeJSON(w, http.StatusOK, profilesResponse{Profiles: a.auth.Profiles(r.Context(), ids)})
}
