package authz

import (
	"context"
	"strings"
)

// Principal is the resolved identity for a single request. It is built only
// from a validated session claim and is immutable once constructed.
type Principal struct {
	UserID     string
	Email      string
	TenantID   string
	BusinessID string
	Role       Role
	SessionID  string
}

// Validate reports whether the principal carries the identity and tenant
// context required for any authorization decision.
func (p Principal) Validate() error {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.Email) == "" {
		return ErrInvalidToken
	}
	if strings.TrimSpace(p.TenantID) == "" || strings.TrimSpace(p.BusinessID) == "" {
		return ErrNoBusinessContext
	}
	return nil
}

// UserPermissions is the per-resolution aggregate: the roles a principal holds
// in its business context and the union of their permissions. Computed fresh on
// every authorization decision.
type UserPermissions struct {
	UserID      string
	Roles       []Role
	Permissions PermissionSet
	IsOwner     bool
}

// Has reports whether the aggregate includes the permission.
func (u UserPermissions) Has(p Permission) bool {
	return u.Permissions.Has(p)
}

type principalContextKey struct{}

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
