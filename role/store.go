package role

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for custom roles and their bindings.
type Store interface {
	// CreateCustomRole persists a new custom role. The key is unique per
	// organization.
	CreateCustomRole(ctx context.Context, r *CustomRole) error

	// GetCustomRole retrieves a custom role by ID.
	GetCustomRole(ctx context.Context, roleID id.CustomRoleID) (*CustomRole, error)

	// SetCustomRolePermissions replaces the permission set of a custom role.
	SetCustomRolePermissions(ctx context.Context, roleID id.CustomRoleID, perms []string) error

	// DeleteCustomRole removes a custom role and every binding to it.
	DeleteCustomRole(ctx context.Context, roleID id.CustomRoleID) error

	// ListCustomRoles returns the custom roles defined by an organization.
	ListCustomRoles(ctx context.Context, orgID string) ([]*CustomRole, error)

	// BindCustomRole assigns a custom role to a user.
	BindCustomRole(ctx context.Context, b *Binding) error

	// UnbindCustomRole removes a custom role from a user.
	UnbindCustomRole(ctx context.Context, orgID, userID string, roleID id.CustomRoleID) error

	// ListCustomRolesForUser returns every custom role bound to the user in
	// the organization.
	ListCustomRolesForUser(ctx context.Context, orgID, userID string) ([]*CustomRole, error)
}
