// Package membership defines the user to organization binding that carries
// a user's built-in role.
package membership

import (
	"context"
	"time"

	"github.com/xraph/bastion/id"
)

// Status is the lifecycle state of a membership.
type Status string

const (
	StatusActive    Status = "active"
	StatusInvited   Status = "invited"
	StatusSuspended Status = "suspended"
)

// Membership binds a user to exactly one built-in role within an organization.
// Only active memberships contribute role permissions.
type Membership struct {
	ID             id.MembershipID `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Role           string          `json:"role" db:"role"`
	Status         Status          `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the membership's role applies.
func (m *Membership) IsActive() bool { return m != nil && m.Status == StatusActive }

// ListFilter contains filters for listing memberships.
type ListFilter struct {
	OrganizationID string `json:"organization_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Role           string `json:"role,omitempty"`
	Status         Status `json:"status,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

// Store defines persistence operations for memberships.
type Store interface {
	// PutMembership creates or replaces the membership for (organization, user).
	PutMembership(ctx context.Context, m *Membership) error

	// GetMembership returns the membership for (organization, user).
	GetMembership(ctx context.Context, orgID, userID string) (*Membership, error)

	// ListMemberships returns memberships matching the filter.
	ListMemberships(ctx context.Context, filter *ListFilter) ([]*Membership, error)

	// DeleteMembership removes the membership for (organization, user).
	DeleteMembership(ctx context.Context, orgID, userID string) error
}
