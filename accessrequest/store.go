package accessrequest

import (
	"context"
	"time"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for access requests.
type Store interface {
	// CreateAccessRequest persists a new pending request.
	CreateAccessRequest(ctx context.Context, r *Request) error

	// GetAccessRequest retrieves a request by ID.
	GetAccessRequest(ctx context.Context, reqID id.AccessRequestID) (*Request, error)

	// ListAccessRequests returns requests matching the filter, newest first.
	ListAccessRequests(ctx context.Context, filter *ListFilter) ([]*Request, error)

	// ApproveAccessRequest marks a pending request approved and inserts the
	// approval's grants in one transaction. If the request is no longer
	// pending nothing is written and a not-pending error is returned.
	ApproveAccessRequest(ctx context.Context, a *Approval) error

	// DenyAccessRequest marks a pending request denied.
	DenyAccessRequest(ctx context.Context, reqID id.AccessRequestID, approverID string, at time.Time) error
}
