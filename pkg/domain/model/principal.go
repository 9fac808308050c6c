package model

import (
	"context"

	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

// Capability decides whether the holder may edit outputs and change status
type Capability interface {
	CanUpdateRecords() bool
}

// Principal is the authenticated caller
type Principal struct {
	Subject  string
	SignedIn bool
	Role     types.Role
}

var _ Capability = &Principal{}

// NewAnonymous returns a principal that is not signed in
func NewAnonymous() *Principal {
	return &Principal{Role: types.RoleInspector}
}

// CanUpdateRecords is true for signed-in reviewers and admins
func (p *Principal) CanUpdateRecords() bool {
	if p == nil {
		return false
	}
	return p.SignedIn && p.Role.CanUpdateRecords()
}

type principalCtxKey struct{}

// ContextWithPrincipal stores the principal in ctx
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext returns the principal stored in ctx or an anonymous one
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalCtxKey{}).(*Principal); ok && p != nil {
		return p
	}
	return NewAnonymous()
}
