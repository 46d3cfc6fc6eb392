package authz

import "testing"

func TestRoleLevels(t *testing.T) {
	cases := []struct {
		role  Role
		level int
	}{
		{RoleViewer, 1},
		{RoleEmployee, 2},
		{RoleManager, 3},
		{RoleAdmin, 4},
		{RoleOwner, 5},
		{Role("superuser"), 0},
		{Role(""), 0},
	}
	for _, c := range cases {
		if got := c.role.Level(); got != c.level {
			t.Errorf("Level(%q) = %d, want %d", c.role, got, c.level)
		}
	}
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{" Manager ", RoleManager},
		{"OWNER", RoleOwner},
		{"superuser", RoleViewer},
		{"", RoleViewer},
	}
	for _, c := range cases {
		if got := ParseRole(c.in); got != c.want {
			t.Errorf("ParseRole(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// Each role must hold every permission of every lower role. The route tables
// and grant logic all assume this containment.
func TestRolePermissionsAreCumulative(t *testing.T) {
	for i := 1; i < len(AllRoles); i++ {
		lower := PermissionsForRole(AllRoles[i-1])
		higher := PermissionsForRole(AllRoles[i])
		for p := range lower {
			if !higher.Has(p) {
				t.Errorf("role %s is missing %s held by %s", AllRoles[i], p, AllRoles[i-1])
			}
		}
		if len(higher) <= len(lower) {
			t.Errorf("role %s should hold strictly more permissions than %s", AllRoles[i], AllRoles[i-1])
		}
	}
}

func TestRoleBoundaries(t *testing.T) {
	viewer := PermissionsForRole(RoleViewer)
	if viewer.Has(PermCreateCustomers) {
		t.Error("viewer must not create customers")
	}
	employee := PermissionsForRole(RoleEmployee)
	if employee.Has(PermDeleteCustomers) {
		t.Error("employee must not delete customers")
	}
	if employee.Has(PermExportData) {
		t.Error("employee must not export data")
	}
	manager := PermissionsForRole(RoleManager)
	if !manager.Has(PermExportData) {
		t.Error("manager must export data")
	}
	if manager.Has(PermUpdateBusinessSettings) {
		t.Error("manager must not update business settings")
	}
	admin := PermissionsForRole(RoleAdmin)
	if admin.Has(PermManageBilling) {
		t.Error("admin must not manage billing")
	}
	owner := PermissionsForRole(RoleOwner)
	for _, p := range []Permission{PermManageBilling, PermViewAuditLog, PermManageIntegrations} {
		if !owner.Has(p) {
			t.Errorf("owner must hold %s", p)
		}
	}
}

func TestPermissionsForRoleReturnsCopy(t *testing.T) {
	a := PermissionsForRole(RoleViewer)
	a[PermManageBilling] = struct{}{}
	b := PermissionsForRole(RoleViewer)
	if b.Has(PermManageBilling) {
		t.Error("mutating a returned set must not affect the role table")
	}
}

func TestPermissionSetMissing(t *testing.T) {
	set := NewPermissionSet(PermViewCustomers, PermCreateCustomers)
	missing := set.Missing([]Permission{PermViewCustomers, PermDeleteCustomers, PermExportData})
	if len(missing) != 2 {
		t.Fatalf("missing = %v, want two entries", missing)
	}
	if missing[0] != PermDeleteCustomers || missing[1] != PermExportData {
		t.Errorf("missing = %v, want sorted [customers:delete data:export]", missing)
	}
}
