package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"voxdesk.io/internal/authz"
)

var _ authz.AccessStore = (*Store)(nil)

// ActiveAssignments returns the user's active role rows. The tenant and
// business equality filters are part of the query, not applied afterwards;
// tenant isolation lives at this boundary.
func (s *Store) ActiveAssignments(ctx context.Context, userID, tenantID, businessID string) ([]authz.RoleAssignment, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select user_id, tenant_id, business_id, role, grants
		from role_assignments
		where user_id = $1 and tenant_id = $2 and business_id = $3 and active
	`, userID, tenantID, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []authz.RoleAssignment
	for rows.Next() {
		var (
			a         authz.RoleAssignment
			role      string
			rawGrants []byte
		)
		if err := rows.Scan(&a.UserID, &a.TenantID, &a.BusinessID, &role, &rawGrants); err != nil {
			return nil, err
		}
		a.Role = authz.ParseRole(role)
		if len(rawGrants) > 0 {
			var grants []string
			if err := json.Unmarshal(rawGrants, &grants); err != nil {
				return nil, fmt.Errorf("decode grants: %w", err)
			}
			for _, g := range grants {
				g = strings.TrimSpace(g)
				if g != "" {
					a.Grants = append(a.Grants, authz.Permission(g))
				}
			}
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// BusinessOwnerID returns the owner recorded on the business row.
func (s *Store) BusinessOwnerID(ctx context.Context, tenantID, businessID string) (string, error) {
	if s.db == nil {
		return "", errors.New("database connection unavailable")
	}
	var ownerID string
	err := s.db.QueryRowContext(ctx, `
		select owner_id
		from businesses
		where id = $1 and tenant_id = $2
	`, businessID, tenantID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", authz.ErrNoAccess
	}
	if err != nil {
		return "", err
	}
	return ownerID, nil
}

// HasAccessGrant reports whether any access row links the user to the business
// within the tenant. Ownership counts as access even without an explicit row.
func (s *Store) HasAccessGrant(ctx context.Context, userID, tenantID, businessID string) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists(
			select 1 from role_assignments
			where user_id = $1 and tenant_id = $2 and business_id = $3 and active
			union all
			select 1 from businesses
			where owner_id = $1 and tenant_id = $2 and id = $3
		)
	`, userID, tenantID, businessID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

var _ authz.UserDirectory = (*Store)(nil)

// FindUserByEmail returns the account row for the normalized email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (authz.UserAccount, error) {
	if s.db == nil {
		return authz.UserAccount{}, errors.New("database connection unavailable")
	}
	email = strings.TrimSpace(strings.ToLower(email))
	var u authz.UserAccount
	err := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, tenant_id, business_id, status
		from users
		where email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.TenantID, &u.BusinessID, &u.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return authz.UserAccount{}, authz.ErrNoAccess
	}
	if err != nil {
		return authz.UserAccount{}, err
	}
	return u, nil
}
