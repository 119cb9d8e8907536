package bastion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/store"
)

// RequestTemporaryAccess files a pending access request for keys lasting
// durationHours. Nothing is granted until an approver approves it.
func (e *Engine) RequestTemporaryAccess(ctx context.Context, orgID, userID string, keys []string, reason string, durationHours int) (*accessrequest.Request, error) {
	if orgID == "" || userID == "" {
		return nil, fmt.Errorf("%w: organization and user are required", ErrInvalidRequest)
	}
	keys, err := normalizeKeys(keys)
	if err != nil {
		return nil, err
	}
	if err := e.validateDuration(durationHours); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	if e.limiter != nil && !e.limiter.allow(orgID+"/"+userID, now) {
		return nil, ErrRateLimited
	}

	r := &accessrequest.Request{
		ID:             id.NewAccessRequestID(),
		OrganizationID: orgID,
		UserID:         userID,
		PermissionKeys: keys,
		Reason:         reason,
		Status:         accessrequest.StatusPending,
		DurationHours:  durationHours,
		ExpiresAt:      now.Add(hours(durationHours)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreateAccessRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("bastion: create access request: %w", err)
	}

	e.logger.InfoContext(ctx, "access requested",
		slog.String("request_id", r.ID.String()),
		slog.String("organization_id", orgID),
		slog.String("user_id", userID),
		slog.Any("permission_keys", keys),
		slog.Int("duration_hours", durationHours),
	)
	if e.plugins != nil {
		e.plugins.EmitAccessRequested(ctx, r)
	}
	return r, nil
}

// ApproveTemporaryAccess approves a pending request, granting grantedKeys
// until now plus durationHours. The approver's keys and duration replace the
// requested ones. The status change and the grants commit together; a
// request that is no longer pending yields ErrAlreadyProcessed and writes
// nothing.
func (e *Engine) ApproveTemporaryAccess(ctx context.Context, requestID id.AccessRequestID, approverID string, grantedKeys []string, durationHours int) ([]*grant.Grant, error) {
	if requestID.IsNil() || approverID == "" {
		return nil, fmt.Errorf("%w: request and approver are required", ErrInvalidRequest)
	}
	keys, err := normalizeKeys(grantedKeys)
	if err != nil {
		return nil, err
	}
	if err := e.validateDuration(durationHours); err != nil {
		return nil, err
	}

	req, err := e.GetAccessRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.IsPending() {
		return nil, ErrAlreadyProcessed
	}

	now := e.clock.Now()
	expiry := now.Add(hours(durationHours))
	grants := make([]*grant.Grant, 0, len(keys))
	for _, k := range keys {
		grants = append(grants, &grant.Grant{
			ID:             id.NewGrantID(),
			OrganizationID: req.OrganizationID,
			UserID:         req.UserID,
			PermissionKey:  k,
			ExpiresAt:      expiry,
			RequestID:      req.ID,
			GrantedBy:      approverID,
			CreatedAt:      now,
		})
	}

	err = e.store.ApproveAccessRequest(ctx, &accessrequest.Approval{
		RequestID:  requestID,
		ApproverID: approverID,
		ApprovedAt: now,
		ExpiresAt:  expiry,
		Grants:     grants,
	})
	if err != nil {
		return nil, mapRequestError(err)
	}

	req.Status = accessrequest.StatusApproved
	req.ApproverID = approverID
	req.ApprovedAt = &now
	req.ExpiresAt = expiry
	req.UpdatedAt = now

	e.logger.InfoContext(ctx, "access approved",
		slog.String("request_id", requestID.String()),
		slog.String("approver_id", approverID),
		slog.Any("granted_keys", keys),
		slog.Time("expires_at", expiry),
	)
	if e.plugins != nil {
		e.plugins.EmitAccessApproved(ctx, req, grants)
	}
	return grants, nil
}

// DenyTemporaryAccess closes a pending request without granting anything.
func (e *Engine) DenyTemporaryAccess(ctx context.Context, requestID id.AccessRequestID, approverID string) error {
	if requestID.IsNil() || approverID == "" {
		return fmt.Errorf("%w: request and approver are required", ErrInvalidRequest)
	}
	now := e.clock.Now()
	if err := e.store.DenyAccessRequest(ctx, requestID, approverID, now); err != nil {
		return mapRequestError(err)
	}
	e.logger.InfoContext(ctx, "access denied",
		slog.String("request_id", requestID.String()),
		slog.String("approver_id", approverID),
	)
	if e.plugins != nil {
		if req, err := e.store.GetAccessRequest(ctx, requestID); err == nil {
			e.plugins.EmitAccessDenied(ctx, req)
		}
	}
	return nil
}

// GetAccessRequest returns an access request by ID.
func (e *Engine) GetAccessRequest(ctx context.Context, requestID id.AccessRequestID) (*accessrequest.Request, error) {
	req, err := e.store.GetAccessRequest(ctx, requestID)
	if err != nil {
		return nil, mapRequestError(err)
	}
	return req, nil
}

// ListAccessRequests returns access requests matching the filter.
func (e *Engine) ListAccessRequests(ctx context.Context, filter *accessrequest.ListFilter) ([]*accessrequest.Request, error) {
	list, err := e.store.ListAccessRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("bastion: list access requests: %w", err)
	}
	return list, nil
}

// RevokeGrant removes a temporary grant before its expiry.
func (e *Engine) RevokeGrant(ctx context.Context, grantID id.GrantID) error {
	if err := e.store.DeleteGrant(ctx, grantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGrantNotFound
		}
		return fmt.Errorf("bastion: revoke grant: %w", err)
	}
	e.logger.InfoContext(ctx, "grant revoked", slog.String("grant_id", grantID.String()))
	if e.plugins != nil {
		e.plugins.EmitGrantRevoked(ctx, grantID)
	}
	return nil
}

// PurgeExpiredGrants deletes grants that have already expired. Expired
// grants are never effective, so this only reclaims storage.
func (e *Engine) PurgeExpiredGrants(ctx context.Context) (int64, error) {
	n, err := e.store.DeleteExpiredGrants(ctx, e.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("bastion: purge grants: %w", err)
	}
	return n, nil
}

func (e *Engine) validateDuration(durationHours int) error {
	if durationHours <= 0 || durationHours > e.config.maxElevationHours() {
		return fmt.Errorf("%w: %d hours (must be 1..%d)", ErrInvalidDuration, durationHours, e.config.maxElevationHours())
	}
	return nil
}

// normalizeKeys trims and de-duplicates keys, rejecting empty ones.
func normalizeKeys(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: at least one permission key is required", ErrInvalidPermissionKey)
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, ErrInvalidPermissionKey
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

func mapRequestError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotPending):
		return ErrAlreadyProcessed
	case errors.Is(err, store.ErrNotFound):
		return ErrAccessRequestNotFound
	default:
		return fmt.Errorf("bastion: access request: %w", err)
	}
}

func hours(n int) time.Duration { return time.Duration(n) * time.Hour }
