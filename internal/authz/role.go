package authz

import "strings"

// Role is one of the fixed dashboard roles. A user may hold assignments
// across several businesses but exactly one effective role per business.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
	RoleOwner    Role = "owner"
)

// Level maps a role to its rank for minimum-role checks. Unknown roles rank 0.
func (r Role) Level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleEmployee:
		return 2
	case RoleManager:
		return 3
	case RoleAdmin:
		return 4
	case RoleOwner:
		return 5
	default:
		return 0
	}
}

// AtLeast reports whether r meets or exceeds target.
func (r Role) AtLeast(target Role) bool {
	return r.Level() >= target.Level()
}

// Valid reports whether r is one of the fixed roles.
func (r Role) Valid() bool {
	return r.Level() > 0
}

// ParseRole normalizes a stored role name. Unknown names map to RoleViewer so a
// malformed assignment row degrades to minimal access rather than zero or full.
func ParseRole(name string) Role {
	r := Role(strings.TrimSpace(strings.ToLower(name)))
	if !r.Valid() {
		return RoleViewer
	}
	return r
}

// AllRoles lists the fixed roles in ascending level order.
var AllRoles = []Role{RoleViewer, RoleEmployee, RoleManager, RoleAdmin, RoleOwner}

var viewerPermissions = NewPermissionSet(
	PermViewAnalytics,
	PermViewCustomers,
	PermViewAppointments,
	PermViewServices,
	PermViewBusinessSettings,
)

var employeePermissions = viewerPermissions.Union(NewPermissionSet(
	PermCreateCustomers,
	PermUpdateCustomers,
	PermCreateAppointments,
	PermUpdateAppointments,
))

var managerPermissions = employeePermissions.Union(NewPermissionSet(
	PermExportData,
	PermReorderServices,
	PermManageBusinessHours,
	PermViewUsers,
))

var adminPermissions = managerPermissions.Union(NewPermissionSet(
	PermDeleteCustomers,
	PermDeleteAppointments,
	PermDeleteServices,
	PermUpdateBusinessSettings,
	PermManageVoiceSettings,
	PermManageConversationRules,
	PermInviteUsers,
	PermUpdateUserRoles,
	PermAccessAPI,
))

var ownerPermissions = adminPermissions.Union(NewPermissionSet(
	PermManageBilling,
	PermViewAuditLog,
	PermManageIntegrations,
))

// rolePermissions is the static role table. It is initialized once and never
// mutated at runtime; tenant-specific overrides are explicit grant rows on the
// assignment, not edits to this table.
var rolePermissions = map[Role]PermissionSet{
	RoleViewer:   viewerPermissions,
	RoleEmployee: employeePermissions,
	RoleManager:  managerPermissions,
	RoleAdmin:    adminPermissions,
	RoleOwner:    ownerPermissions,
}

// PermissionsForRole returns a copy of the role's static permission set.
func PermissionsForRole(r Role) PermissionSet {
	set, ok := rolePermissions[r]
	if !ok {
		set = viewerPermissions
	}
	out := make(PermissionSet, len(set))
	for p := range set {
		out[p] = struct{}{}
	}
	return out
}
