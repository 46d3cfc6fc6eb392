package authz

import "sort"

// Permission is a fine-grained capability key in area:action form.
type Permission string

const (
	PermViewAnalytics           Permission = "analytics:view"
	PermViewCustomers           Permission = "customers:view"
	PermCreateCustomers         Permission = "customers:create"
	PermUpdateCustomers         Permission = "customers:update"
	PermDeleteCustomers         Permission = "customers:delete"
	PermViewAppointments        Permission = "appointments:view"
	PermCreateAppointments      Permission = "appointments:create"
	PermUpdateAppointments      Permission = "appointments:update"
	PermDeleteAppointments      Permission = "appointments:delete"
	PermViewServices            Permission = "services:view"
	PermReorderServices         Permission = "services:reorder"
	PermDeleteServices          Permission = "services:delete"
	PermViewBusinessSettings    Permission = "business:view_settings"
	PermUpdateBusinessSettings  Permission = "business:update_settings"
	PermManageBusinessHours     Permission = "business:manage_hours"
	PermViewUsers               Permission = "users:view"
	PermInviteUsers             Permission = "users:invite"
	PermUpdateUserRoles         Permission = "users:update_roles"
	PermExportData              Permission = "data:export"
	PermManageVoiceSettings     Permission = "voice:manage_settings"
	PermManageConversationRules Permission = "conversation:manage_rules"
	PermAccessAPI               Permission = "api:access"
	PermManageBilling           Permission = "billing:manage"
	PermViewAuditLog            Permission = "audit:view"
	PermManageIntegrations      Permission = "integrations:manage"
)

// PermissionSet is an unordered set of permission keys.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given keys.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Union merges other into a copy of s.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Missing returns the required permissions not present in s, sorted.
func (s PermissionSet) Missing(required []Permission) []Permission {
	var missing []Permission
	for _, p := range required {
		if !s.Has(p) {
			missing = append(missing, p)
		}
	}
	sortPermissions(missing)
	return missing
}

// Sorted returns the set's keys in lexical order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sortPermissions(out)
	return out
}

func sortPermissions(perms []Permission) {
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
}
