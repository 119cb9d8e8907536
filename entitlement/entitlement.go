// Package entitlement defines organization feature entitlements and their
// store interface.
package entitlement

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Entitlement records that an organization has a feature enabled under a
// plan tier. Rows are deactivated rather than deleted so the history stays
// available to auditors.
type Entitlement struct {
	ID             id.EntitlementID `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	FeatureKey     string           `json:"feature_key" db:"feature_key"`
	PlanTier       string           `json:"plan_tier,omitempty" db:"plan_tier"`
	IsActive       bool             `json:"is_active" db:"is_active"`
	ActivatedAt    time.Time        `json:"activated_at" db:"activated_at"`
	DeactivatedAt  *time.Time       `json:"deactivated_at,omitempty" db:"deactivated_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing entitlements.
type ListFilter struct {
	OrganizationID string `json:"organization_id,omitempty"`
	FeatureKey     string `json:"feature_key,omitempty"`
	ActiveOnly     bool   `json:"active_only,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}
