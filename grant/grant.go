// Package grant defines time-bounded temporary permission grants.
package grant

import (
	"context"
	"time"

	"github.com/xraph/bastion/id"
)

// Grant gives a user one permission key in an organization until ExpiresAt.
// Expired grants are inert; they are never consulted once the evaluation
// instant reaches ExpiresAt.
type Grant struct {
	ID             id.GrantID         `json:"id" db:"id"`
	OrganizationID string             `json:"organization_id" db:"organization_id"`
	UserID         string             `json:"user_id" db:"user_id"`
	PermissionKey  string             `json:"permission_key" db:"permission_key"`
	ExpiresAt      time.Time          `json:"expires_at" db:"expires_at"`
	RequestID      id.AccessRequestID `json:"request_id,omitzero" db:"request_id"`
	GrantedBy      string             `json:"granted_by,omitempty" db:"granted_by"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}

// ActiveAt reports whether the grant is effective at now.
func (g *Grant) ActiveAt(now time.Time) bool {
	return g.ExpiresAt.After(now)
}

// ListFilter contains filters for listing grants.
type ListFilter struct {
	OrganizationID string             `json:"organization_id,omitempty"`
	UserID         string             `json:"user_id,omitempty"`
	RequestID      id.AccessRequestID `json:"request_id,omitzero"`
	Limit          int                `json:"limit,omitempty"`
	Offset         int                `json:"offset,omitempty"`
}

// Store defines persistence operations for grants.
type Store interface {
	// CreateGrant persists a grant outside the approval workflow.
	CreateGrant(ctx context.Context, g *Grant) error

	// HasActiveGrant reports whether the user holds key with an expiry
	// strictly after now.
	HasActiveGrant(ctx context.Context, orgID, userID, key string, now time.Time) (bool, error)

	// ListActiveGrants returns the user's grants whose expiry is strictly
	// after now.
	ListActiveGrants(ctx context.Context, orgID, userID string, now time.Time) ([]*Grant, error)

	// ListGrants returns grants matching the filter, expired ones included.
	ListGrants(ctx context.Context, filter *ListFilter) ([]*Grant, error)

	// DeleteGrant revokes a grant before its natural expiry.
	DeleteGrant(ctx context.Context, grantID id.GrantID) error

	// DeleteExpiredGrants removes grants whose expiry is at or before now.
	DeleteExpiredGrants(ctx context.Context, now time.Time) (int64, error)
}
