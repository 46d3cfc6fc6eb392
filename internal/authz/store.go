package authz

import "context"

// RoleAssignment is one active role row linking a user to a business within a
// tenant, with optional explicit permission grants beyond the role's static set.
type RoleAssignment struct {
	UserID     string
	TenantID   string
	BusinessID string
	Role       Role
	Grants     []Permission
}

// UserAccount is the credential row used by the login flow.
type UserAccount struct {
	ID           string
	Email        string
	PasswordHash string
	TenantID     string
	BusinessID   string
	Status       string
}

// UserDirectory looks up accounts for authentication.
type UserDirectory interface {
	FindUserByEmail(ctx context.Context, email string) (UserAccount, error)
}

// AccessStore is the persistence surface the resolver and gate depend on.
// Every implementation must filter on the tenant and business ids it is given;
// tenant isolation is enforced at the query boundary.
type AccessStore interface {
	// ActiveAssignments returns the active role assignments for the user
	// scoped to the given tenant and business.
	ActiveAssignments(ctx context.Context, userID, tenantID, businessID string) ([]RoleAssignment, error)

	// BusinessOwnerID returns the owner user id recorded on the business row.
	BusinessOwnerID(ctx context.Context, tenantID, businessID string) (string, error)

	// HasAccessGrant reports whether any access row links the user to the
	// business within the tenant.
	HasAccessGrant(ctx context.Context, userID, tenantID, businessID string) (bool, error)
}
