package authz

import "context"

// RequestMeta carries the request attributes that accompany security events.
// It is input to validation only, never an authorization source.
type RequestMeta struct {
	IP        string
	UserAgent string
	Path      string
	Method    string
	// HeaderTenantID is any client-supplied tenant id (legacy headers).
	// Informational only; it never participates in the decision.
	HeaderTenantID string
}

// EventSink receives security-relevant outcomes from the authorization path.
// Implementations must be best-effort: a sink failure never fails the request.
type EventSink interface {
	AuthFailure(ctx context.Context, reason string, meta RequestMeta)
	CrossTenantAttempt(ctx context.Context, p Principal, claimedTenant string, meta RequestMeta)
	PermissionViolation(ctx context.Context, p Principal, required, held []Permission, meta RequestMeta)
}

// Resolver computes effective permissions for a principal. Resolution is
// fail-closed: any lookup error degrades to the viewer permission set so a
// store outage can never be mistaken for "no check performed" or grant more
// than minimal access.
type Resolver struct {
	store AccessStore
	sink  EventSink
}

// NewResolver builds a resolver over the given store. sink may be nil.
func NewResolver(store AccessStore, sink EventSink) *Resolver {
	return &Resolver{store: store, sink: sink}
}

// Resolve computes the principal's effective permission aggregate. It never
// returns an error; the viewer default is the failure mode.
func (r *Resolver) Resolve(ctx context.Context, p Principal) UserPermissions {
	result := UserPermissions{
		UserID:      p.UserID,
		Permissions: PermissionsForRole(RoleViewer),
	}
	if err := p.Validate(); err != nil {
		return result
	}

	assignments, err := r.store.ActiveAssignments(ctx, p.UserID, p.TenantID, p.BusinessID)
	if err != nil {
		return result
	}

	held := make(PermissionSet)
	var roles []Role
	for _, a := range assignments {
		role := ParseRole(string(a.Role))
		roles = append(roles, role)
		held = held.Union(PermissionsForRole(role))
		for _, grant := range a.Grants {
			held[grant] = struct{}{}
		}
	}

	// Business ownership overrides whatever the assignment rows say.
	ownerID, err := r.store.BusinessOwnerID(ctx, p.TenantID, p.BusinessID)
	if err == nil && ownerID != "" && ownerID == p.UserID {
		roles = append(roles, RoleOwner)
		held = held.Union(PermissionsForRole(RoleOwner))
		result.IsOwner = true
	}

	if len(roles) == 0 {
		// No assignments and not the owner: minimal access, never zero.
		roles = []Role{RoleViewer}
		held = PermissionsForRole(RoleViewer)
	}

	result.Roles = roles
	result.Permissions = held
	return result
}

// Authorize checks that the principal holds every required permission. A deny
// names the specific missing permissions and synchronously records a
// permission-violation event before returning.
func (r *Resolver) Authorize(ctx context.Context, p Principal, required ...Permission) Decision {
	if len(required) == 0 {
		return Allow()
	}
	perms := r.Resolve(ctx, p)
	missing := perms.Permissions.Missing(required)
	if len(missing) == 0 {
		return Allow()
	}
	if r.sink != nil {
		r.sink.PermissionViolation(ctx, p, required, perms.Permissions.Sorted(), metaFromContext(ctx))
	}
	return Deny(missing)
}

type requestMetaContextKey struct{}

// ContextWithRequestMeta stashes request attributes for event enrichment.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaContextKey{}, meta)
}

func metaFromContext(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	v, ok := ctx.Value(requestMetaContextKey{}).(RequestMeta)
	if !ok {
		return RequestMeta{}
	}
	return v
}
