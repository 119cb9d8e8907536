package entitlement

import (
	"context"
	"time"
)

// Store defines persistence operations for entitlements.
type Store interface {
	// ActivateEntitlement inserts e as the active row for its
	// (organization, feature) pair, deactivating any previously active row
	// in the same transaction.
	ActivateEntitlement(ctx context.Context, e *Entitlement) error

	// DeactivateEntitlement flips the active row for the pair to inactive.
	// Returns a not-found error when no active row exists.
	DeactivateEntitlement(ctx context.Context, orgID, featureKey string, at time.Time) error

	// HasActiveEntitlement reports whether an active row exists for the pair.
	HasActiveEntitlement(ctx context.Context, orgID, featureKey string) (bool, error)

	// ListActiveFeatureKeys returns the feature keys active for an organization.
	ListActiveFeatureKeys(ctx context.Context, orgID string) ([]string, error)

	// ListEntitlements returns entitlement rows, active and historical.
	ListEntitlements(ctx context.Context, filter *ListFilter) ([]*Entitlement, error)
}
