// Package accessrequest defines elevation requests: a user asks for extra
// permission keys for a bounded duration and an approver decides once.
package accessrequest

import (
	"time"

	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
)

// Status is the lifecycle state of an access request. A request leaves
// StatusPending exactly once and never returns to it.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Request is a pending or decided elevation request.
type Request struct {
	ID             id.AccessRequestID `json:"id" db:"id"`
	OrganizationID string             `json:"organization_id" db:"organization_id"`
	UserID         string             `json:"user_id" db:"user_id"`
	PermissionKeys []string           `json:"permission_keys" db:"permission_keys"`
	Reason         string             `json:"reason,omitempty" db:"reason"`
	Status         Status             `json:"status" db:"status"`
	DurationHours  int                `json:"duration_hours" db:"duration_hours"`
	ApproverID     string             `json:"approver_id,omitempty" db:"approver_id"`
	ApprovedAt     *time.Time         `json:"approved_at,omitempty" db:"approved_at"`
	DeniedAt       *time.Time         `json:"denied_at,omitempty" db:"denied_at"`
	ExpiresAt      time.Time          `json:"expires_at" db:"expires_at"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}

// IsPending reports whether the request still awaits a decision.
func (r *Request) IsPending() bool { return r.Status == StatusPending }

// Approval is the unit a store applies atomically: the status flip and the
// grants it materializes.
type Approval struct {
	RequestID  id.AccessRequestID
	ApproverID string
	ApprovedAt time.Time
	ExpiresAt  time.Time
	Grants     []*grant.Grant
}

// ListFilter contains filters for listing access requests.
type ListFilter struct {
	OrganizationID string `json:"organization_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Status         Status `json:"status,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}
