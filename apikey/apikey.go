// Package apikey defines machine principals scoped to one organization.
package apikey

import (
	"context"
	"time"

	"github.com/xraph/bastion/id"
)

// APIKey is a machine principal. Its Scopes list is the complete set of
// permission keys it may exercise.
type APIKey struct {
	ID             id.APIKeyID `json:"id" db:"id"`
	OrganizationID string      `json:"organization_id" db:"organization_id"`
	Name           string      `json:"name" db:"name"`
	Scopes         []string    `json:"scopes" db:"scopes"`
	IsActive       bool        `json:"is_active" db:"is_active"`
	ExpiresAt      *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// Usable reports whether the key may be used at now. Inactive keys and keys
// whose expiry is at or before now are unusable.
func (k *APIKey) Usable(now time.Time) bool {
	if k == nil || !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}

// HasScope reports whether perm is in the key's scope list.
func (k *APIKey) HasScope(perm string) bool {
	for _, s := range k.Scopes {
		if s == perm {
			return true
		}
	}
	return false
}

// Store defines persistence operations for API keys.
type Store interface {
	// CreateAPIKey persists a new API key.
	CreateAPIKey(ctx context.Context, k *APIKey) error

	// GetAPIKey retrieves a key by ID.
	GetAPIKey(ctx context.Context, keyID id.APIKeyID) (*APIKey, error)

	// ListAPIKeys returns the keys issued to an organization.
	ListAPIKeys(ctx context.Context, orgID string) ([]*APIKey, error)

	// DeactivateAPIKey marks a key inactive. The row is kept.
	DeactivateAPIKey(ctx context.Context, keyID id.APIKeyID) error
}
