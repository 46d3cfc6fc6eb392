package security

import (
	"context"

	"voxdesk.io/internal/authz"
)

// Sink adapts the monitor to the narrow event interface the authorization
// path depends on, keeping the fire-and-forget contract in one place.
type Sink struct {
	monitor *Monitor
}

var _ authz.EventSink = (*Sink)(nil)

// NewSink wraps the monitor for use by the gate and resolver.
func NewSink(monitor *Monitor) *Sink {
	return &Sink{monitor: monitor}
}

func (s *Sink) AuthFailure(ctx context.Context, reason string, meta authz.RequestMeta) {
	s.monitor.LogEvent(ctx, &SecurityEvent{
		Type:      EventAuthFailure,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Detail: map[string]any{
			"reason": reason,
			"path":   meta.Path,
			"method": meta.Method,
		},
	})
}

func (s *Sink) CrossTenantAttempt(ctx context.Context, p authz.Principal, claimedTenant string, meta authz.RequestMeta) {
	s.monitor.LogEvent(ctx, &SecurityEvent{
		Type:       EventCrossTenantAccess,
		UserID:     p.UserID,
		TenantID:   p.TenantID,
		BusinessID: p.BusinessID,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		Detail: map[string]any{
			"claimed_tenant_id": claimedTenant,
			"path":              meta.Path,
			"method":            meta.Method,
		},
	})
}

func (s *Sink) PermissionViolation(ctx context.Context, p authz.Principal, required, held []authz.Permission, meta authz.RequestMeta) {
	s.monitor.LogEvent(ctx, &SecurityEvent{
		Type:       EventPermissionViolation,
		UserID:     p.UserID,
		TenantID:   p.TenantID,
		BusinessID: p.BusinessID,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		Detail: map[string]any{
			"required_permissions": permissionKeys(required),
			"held_permissions":     permissionKeys(held),
			"path":                 meta.Path,
			"method":               meta.Method,
		},
	})
}

func permissionKeys(perms []authz.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
