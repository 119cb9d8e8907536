// Package role defines built-in role tables, organization custom roles, and
// the bindings that attach custom roles to users.
package role

import (
	"time"

	"github.com/xraph/bastion/id"
)

// CustomRole is an organization-defined role. Its permissions extend the
// holder's built-in role permissions and never replace them.
type CustomRole struct {
	ID             id.CustomRoleID `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	Key            string          `json:"key" db:"key"`
	Label          string          `json:"label" db:"label"`
	Permissions    []string        `json:"permissions" db:"permissions"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Binding assigns a custom role to a user within an organization.
type Binding struct {
	ID             id.RoleBindingID `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	UserID         string           `json:"user_id" db:"user_id"`
	CustomRoleID   id.CustomRoleID  `json:"custom_role_id" db:"custom_role_id"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}
