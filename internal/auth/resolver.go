package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// FailurePolicy decides what a role lookup error resolves to.
type FailurePolicy int

const (
	// FailOpen treats a lookup error as the lowest role.
	FailOpen FailurePolicy = iota
	// FailClosed leaves the role unresolved and surfaces ErrRoleLookup.
	FailClosed
)

func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

var (
	roleLookupFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civic_role_lookup_failures_total",
		Help: "Role lookups that failed, by failure policy.",
	}, []string{"policy"})
	registerOnce sync.Once
)

// Register adds the auth metrics to the default registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(roleLookupFailures)
	})
}

// RoleResolver turns an identity into its role.
type RoleResolver struct {
	roles  RoleStore
	policy FailurePolicy
	log    zerolog.Logger
}

func NewRoleResolver(roles RoleStore, policy FailurePolicy, log zerolog.Logger) *RoleResolver {
	return &RoleResolver{roles: roles, policy: policy, log: log}
}

func (r *RoleResolver) Policy() FailurePolicy { return r.policy }

// Resolve returns the caller's role. A nil identity stays unresolved and a
// missing assignment is "user". Other errors follow the failure policy.
func (r *RoleResolver) Resolve(ctx context.Context, id *Identity) (Role, error) {
	if id == nil || id.ID == "" {
		return "", nil
	}
	userID := id.ID
	role, err := r.roles.RoleFor(ctx, userID)
	switch {
	case err == nil && role.Valid():
		return role, nil
	case err == nil, errors.Is(err, ErrNotFound):
		return RoleUser, nil
	}
	roleLookupFailures.WithLabelValues(r.policy.String()).Inc()
	r.log.Warn().Err(err).Str("user_id", userID).Str("policy", r.policy.String()).Msg("role lookup failed")
	if r.policy == FailClosed {
		return "", errors.Join(ErrRoleLookup, err)
	}
	return RoleUser, nil
}
