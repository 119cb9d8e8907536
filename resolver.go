package bastion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/store"
)

// EffectivePermissions returns the sorted union of the user's built-in role
// permissions, custom role permissions, and unexpired temporary grants in
// the organization. A user without a membership has an empty set.
func (e *Engine) EffectivePermissions(ctx context.Context, orgID, userID string) ([]string, error) {
	if orgID == "" || userID == "" {
		return nil, fmt.Errorf("%w: organization and user are required", ErrInvalidRequest)
	}
	return e.effectivePermissions(ctx, orgID, userID, e.clock.Now())
}

// GetUserPermissions is the introspection view of EffectivePermissions.
func (e *Engine) GetUserPermissions(ctx context.Context, orgID, userID string) ([]string, error) {
	return e.EffectivePermissions(ctx, orgID, userID)
}

// HasPermission reports whether key is in the user's effective permission
// set. Each source is tested directly without building the full set.
func (e *Engine) HasPermission(ctx context.Context, orgID, userID, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidPermissionKey
	}
	if orgID == "" || userID == "" {
		return false, fmt.Errorf("%w: organization and user are required", ErrInvalidRequest)
	}
	return e.hasPermission(ctx, orgID, userID, key, e.clock.Now())
}

// HasAPIKeyPermission reports whether the API key may exercise key. Missing,
// inactive and expired keys are denied.
func (e *Engine) HasAPIKeyPermission(ctx context.Context, apiKeyID, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidPermissionKey
	}
	return e.apiKeyPermission(ctx, "", apiKeyID, key, e.clock.Now())
}

func (e *Engine) effectivePermissions(ctx context.Context, orgID, userID string, now time.Time) ([]string, error) {
	fromRole, err := e.rolePermissions(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	fromCustom, err := e.customRolePermissions(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	fromGrants, err := e.grantPermissions(ctx, orgID, userID, now)
	if err != nil {
		return nil, err
	}
	return union(fromRole, fromCustom, fromGrants), nil
}

func (e *Engine) hasPermission(ctx context.Context, orgID, userID, key string, now time.Time) (bool, error) {
	fromRole, err := e.rolePermissions(ctx, orgID, userID)
	if err != nil {
		return false, err
	}
	if contains(fromRole, key) {
		return true, nil
	}
	fromCustom, err := e.customRolePermissions(ctx, orgID, userID)
	if err != nil {
		return false, err
	}
	if contains(fromCustom, key) {
		return true, nil
	}
	ok, err := e.store.HasActiveGrant(ctx, orgID, userID, key, now)
	if err != nil {
		return false, fmt.Errorf("bastion: grant lookup: %w", err)
	}
	return ok, nil
}

// rolePermissions returns the permissions of the user's built-in role, or
// nothing when the user has no active membership.
func (e *Engine) rolePermissions(ctx context.Context, orgID, userID string) ([]string, error) {
	role, err := e.activeRole(ctx, orgID, userID)
	if err != nil || role == "" {
		return nil, err
	}
	return e.roles.Permissions(role), nil
}

// activeRole returns the user's built-in role name, or "" when the user has
// no membership or the membership is not active.
func (e *Engine) activeRole(ctx context.Context, orgID, userID string) (string, error) {
	m, err := e.store.GetMembership(ctx, orgID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("bastion: membership lookup: %w", err)
	}
	if !m.IsActive() {
		return "", nil
	}
	return m.Role, nil
}

func (e *Engine) customRolePermissions(ctx context.Context, orgID, userID string) ([]string, error) {
	roles, err := e.store.ListCustomRolesForUser(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("bastion: custom role lookup: %w", err)
	}
	var perms []string
	for _, r := range roles {
		perms = append(perms, r.Permissions...)
	}
	return perms, nil
}

func (e *Engine) grantPermissions(ctx context.Context, orgID, userID string, now time.Time) ([]string, error) {
	grants, err := e.store.ListActiveGrants(ctx, orgID, userID, now)
	if err != nil {
		return nil, fmt.Errorf("bastion: grant lookup: %w", err)
	}
	perms := make([]string, 0, len(grants))
	for _, g := range grants {
		// Stores filter on expiry already; re-check against the same instant.
		if g.ActiveAt(now) {
			perms = append(perms, g.PermissionKey)
		}
	}
	return perms, nil
}

// apiKeyPermission loads the key and tests its scopes. When orgID is set the
// key must belong to that organization.
func (e *Engine) apiKeyPermission(ctx context.Context, orgID, apiKeyID, key string, now time.Time) (bool, error) {
	keyID, err := id.ParseAPIKeyID(apiKeyID)
	if err != nil {
		// An id that cannot exist is a missing key.
		return false, nil
	}
	k, err := e.store.GetAPIKey(ctx, keyID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bastion: api key lookup: %w", err)
	}
	if orgID != "" && k.OrganizationID != orgID {
		return false, nil
	}
	if !k.Usable(now) {
		return false, nil
	}
	return k.HasScope(key), nil
}

func union(sets ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, set := range sets {
		for _, p := range set {
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
