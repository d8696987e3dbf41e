// Package auth resolves per-request identities, issues tokens and enforces the
// pharmacy approval gate.
package auth

import (
	"context"
	"fmt"
	"strings"

	"medlocator/m/domain"
	"medlocator/m/internal/apperr"
)

// Policy decides where approval is enforced.
type Policy string

const (
	// PolicyStrict denies pending pharmacy accounts a session and access to
	// pharmacy operations.
	PolicyStrict Policy = "strict"
	// PolicyOpen only uses approval to filter the public pharmacy map.
	PolicyOpen Policy = "open"
)

// ParsePolicy maps a configuration value to a Policy, defaulting to strict.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyOpen:
		return PolicyOpen, nil
	}
	return "", fmt.Errorf("unknown approval policy %q", s)
}

// Identity is the authenticated caller of one request.
type Identity struct {
	AccountID int64
	Role      domain.Role
	Approved  bool
}

// IdentityOf builds the identity for an account.
func IdentityOf(a domain.Account) Identity {
	return Identity{AccountID: a.ID, Role: a.Role, Approved: a.IsApproved}
}

func (id Identity) State() domain.ApprovalState {
	if id.Approved {
		return domain.StateApproved
	}
	return domain.StatePending
}

// Gate applies the approval policy.
type Gate struct {
	policy Policy
}

func NewGate(policy Policy) Gate {
	return Gate{policy: policy}
}

// AllowSession reports whether id may be issued a session.
func (g Gate) AllowSession(id Identity) error {
	if g.policy == PolicyStrict && id.Role == domain.RolePharmacy && !id.Approved {
		return apperr.NotApproved("your pharmacy account is not approved yet, please wait for admin approval")
	}
	return nil
}

// RequirePharmacy checks that id may act as a pharmacy owner.
func (g Gate) RequirePharmacy(id *Identity) error {
	if id == nil {
		return apperr.Unauthorized("authentication required")
	}
	if id.Role != domain.RolePharmacy {
		return apperr.Forbidden("pharmacy account required")
	}
	return g.AllowSession(*id)
}

// RequireAdmin checks that id is an administrator.
func (g Gate) RequireAdmin(id *Identity) error {
	if id == nil {
		return apperr.Unauthorized("authentication required")
	}
	if id.Role != domain.RoleAdmin {
		return apperr.Forbidden("admin account required")
	}
	return nil
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request identity, or nil for anonymous callers.
func FromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return &id
	}
	return nil
}
