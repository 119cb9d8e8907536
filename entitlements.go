package bastion

import (
	"context"
	"fmt"
	"sort"
)

// HasEntitlement reports whether the organization has featureKey active.
// On a store failure it returns false together with the error.
func (e *Engine) HasEntitlement(ctx context.Context, orgID, featureKey string) (bool, error) {
	if orgID == "" || featureKey == "" {
		return false, fmt.Errorf("%w: organization and feature key are required", ErrInvalidRequest)
	}
	ok, err := e.store.HasActiveEntitlement(ctx, orgID, featureKey)
	if err != nil {
		return false, fmt.Errorf("bastion: entitlement check: %w", err)
	}
	return ok, nil
}

// GetOrganizationEntitlements returns the organization's active feature keys
// in sorted order.
func (e *Engine) GetOrganizationEntitlements(ctx context.Context, orgID string) ([]string, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization is required", ErrInvalidRequest)
	}
	keys, err := e.store.ListActiveFeatureKeys(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("bastion: list entitlements: %w", err)
	}
	out := append([]string{}, keys...)
	sort.Strings(out)
	return out, nil
}
