package httpapi

import (
	"net/http"
	"strings"

	"voxdesk.io/internal/authz"
)

// methodPerms maps HTTP methods to required permissions for one route. The
// "*" entry applies to any method without its own entry.
type methodPerms map[string][]authz.Permission

func (m methodPerms) forMethod(method string) []authz.Permission {
	if perms, ok := m[method]; ok {
		return perms
	}
	return m["*"]
}

// routePermissions is the static route-to-permission table consumed by the
// authorization middleware. Exact path match wins, else the longest matching
// prefix, else the route requires no permission. Kept as data so the gate and
// resolver stay free of route knowledge.
type routePermissions struct {
	exact    map[string]methodPerms
	prefixes []prefixRule
}

type prefixRule struct {
	prefix string
	perms  methodPerms
}

func defaultRoutePermissions() *routePermissions {
	return &routePermissions{
		exact: map[string]methodPerms{
			"/v1/analytics":        {"*": {authz.PermViewAnalytics}},
			"/v1/customers/export": {"*": {authz.PermExportData}},
			"/v1/services/reorder": {"*": {authz.PermReorderServices}},
			"/v1/business/settings": {
				http.MethodGet: {authz.PermViewBusinessSettings},
				"*":            {authz.PermUpdateBusinessSettings},
			},
			"/v1/business/hours": {"*": {authz.PermManageBusinessHours}},
			"/v1/billing":        {"*": {authz.PermManageBilling}},
			"/v1/audit":          {"*": {authz.PermViewAuditLog}},
		},
		prefixes: []prefixRule{
			{"/v1/customers", methodPerms{
				http.MethodGet:    {authz.PermViewCustomers},
				http.MethodPost:   {authz.PermCreateCustomers},
				http.MethodPut:    {authz.PermUpdateCustomers},
				http.MethodPatch:  {authz.PermUpdateCustomers},
				http.MethodDelete: {authz.PermDeleteCustomers},
				"*":               {authz.PermViewCustomers},
			}},
			{"/v1/appointments", methodPerms{
				http.MethodGet:    {authz.PermViewAppointments},
				http.MethodPost:   {authz.PermCreateAppointments},
				http.MethodPut:    {authz.PermUpdateAppointments},
				http.MethodPatch:  {authz.PermUpdateAppointments},
				http.MethodDelete: {authz.PermDeleteAppointments},
				"*":               {authz.PermViewAppointments},
			}},
			{"/v1/services", methodPerms{
				http.MethodGet:    {authz.PermViewServices},
				http.MethodDelete: {authz.PermDeleteServices},
				"*":               {authz.PermViewServices},
			}},
			{"/v1/users", methodPerms{
				http.MethodGet:  {authz.PermViewUsers},
				http.MethodPost: {authz.PermInviteUsers},
				http.MethodPut:  {authz.PermUpdateUserRoles},
				"*":              {authz.PermViewUsers},
			}},
			{"/v1/voice", methodPerms{"*": {authz.PermManageVoiceSettings}}},
			{"/v1/conversation-rules", methodPerms{"*": {authz.PermManageConversationRules}}},
			{"/v1/integrations", methodPerms{"*": {authz.PermManageIntegrations}}},
			{"/v1/billing", methodPerms{"*": {authz.PermManageBilling}}},
		},
	}
}

// required returns the permissions for the method and path, or nil for open
// routes.
func (t *routePermissions) required(method, path string) []authz.Permission {
	path = normalizePath(path)
	if perms, ok := t.exact[path]; ok {
		return perms.forMethod(method)
	}
	var (
		best    methodPerms
		bestLen = -1
	)
	for _, rule := range t.prefixes {
		if len(rule.prefix) <= bestLen {
			continue
		}
		if path == rule.prefix || strings.HasPrefix(path, rule.prefix+"/") {
			best = rule.perms
			bestLen = len(rule.prefix)
		}
	}
	if best == nil {
		return nil
	}
	return best.forMethod(method)
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
