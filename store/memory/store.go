// Package memory provides an in-memory implementation of the Bastion
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/apikey"
	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/entitlement"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/scoperule"
	"github.com/xraph/bastion/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a thread-safe in-memory store for all Bastion entities. Every
// multi-row write happens under the single write lock, so readers never see
// half of an approval.
type Store struct {
	mu sync.RWMutex

	entitlements map[string]*entitlement.Entitlement
	memberships  map[string]*membership.Membership // org/user -> membership
	customRoles  map[string]*role.CustomRole
	bindings     map[string]*role.Binding
	apiKeys      map[string]*apikey.APIKey
	grants       map[string]*grant.Grant
	requests     map[string]*accessrequest.Request
	scopeRules   map[string]*scoperule.Rule
	audit        []*auditlog.Record
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		entitlements: make(map[string]*entitlement.Entitlement),
		memberships:  make(map[string]*membership.Membership),
		customRoles:  make(map[string]*role.CustomRole),
		bindings:     make(map[string]*role.Binding),
		apiKeys:      make(map[string]*apikey.APIKey),
		grants:       make(map[string]*grant.Grant),
		requests:     make(map[string]*accessrequest.Request),
		scopeRules:   make(map[string]*scoperule.Rule),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Entitlement Store
// ──────────────────────────────────────────────────

func (s *Store) ActivateEntitlement(_ context.Context, e *entitlement.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, cur := range s.entitlements {
		if cur.IsActive && cur.OrganizationID == e.OrganizationID && cur.FeatureKey == e.FeatureKey {
			cur.IsActive = false
			cur.DeactivatedAt = &now
			cur.UpdatedAt = now
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.ActivatedAt.IsZero() {
		e.ActivatedAt = now
	}
	e.UpdatedAt = now
	e.IsActive = true
	e.DeactivatedAt = nil
	c := *e
	s.entitlements[e.ID.String()] = &c
	return nil
}

func (s *Store) DeactivateEntitlement(_ context.Context, orgID, featureKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, cur := range s.entitlements {
		if cur.IsActive && cur.OrganizationID == orgID && cur.FeatureKey == featureKey {
			t := at
			cur.IsActive = false
			cur.DeactivatedAt = &t
			cur.UpdatedAt = at
			found = true
		}
	}
	if !found {
		return fmt.Errorf("entitlement %s/%s: %w", orgID, featureKey, store.ErrNotFound)
	}
	return nil
}

func (s *Store) HasActiveEntitlement(_ context.Context, orgID, featureKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entitlements {
		if e.IsActive && e.OrganizationID == orgID && e.FeatureKey == featureKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListActiveFeatureKeys(_ context.Context, orgID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for _, e := range s.entitlements {
		if e.IsActive && e.OrganizationID == orgID {
			keys = append(keys, e.FeatureKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) ListEntitlements(_ context.Context, filter *entitlement.ListFilter) ([]*entitlement.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*entitlement.Entitlement, 0, len(s.entitlements))
	for _, e := range s.entitlements {
		if filter != nil {
			if filter.OrganizationID != "" && e.OrganizationID != filter.OrganizationID {
				continue
			}
			if filter.FeatureKey != "" && e.FeatureKey != filter.FeatureKey {
				continue
			}
			if filter.ActiveOnly && !e.IsActive {
				continue
			}
		}
		c := *e
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	if filter == nil {
		return result, nil
	}
	return paginate(result, filter.Limit, filter.Offset), nil
}

// ──────────────────────────────────────────────────
// Membership Store
// ──────────────────────────────────────────────────

func membershipKey(orgID, userID string) string { return orgID + "/" + userID }

func (s *Store) PutMembership(_ context.Context, m *membership.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	k := membershipKey(m.OrganizationID, m.UserID)
	if cur, ok := s.memberships[k]; ok {
		m.ID = cur.ID
		m.CreatedAt = cur.CreatedAt
	} else if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	c := *m
	s.memberships[k] = &c
	return nil
}

func (s *Store) GetMembership(_ context.Context, orgID, userID string) (*membership.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[membershipKey(orgID, userID)]
	if !ok {
		return nil, fmt.Errorf("membership %s/%s: %w", orgID, userID, store.ErrNotFound)
	}
	c := *m
	return &c, nil
}

func (s *Store) ListMemberships(_ context.Context, filter *membership.ListFilter) ([]*membership.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*membership.Membership, 0, len(s.memberships))
	for _, m := range s.memberships {
		if filter != nil {
			if filter.OrganizationID != "" && m.OrganizationID != filter.OrganizationID {
				continue
			}
			if filter.UserID != "" && m.UserID != filter.UserID {
				continue
			}
			if filter.Role != "" && m.Role != filter.Role {
				continue
			}
			if filter.Status != "" && m.Status != filter.Status {
				continue
			}
		}
		c := *m
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return membershipKey(result[i].OrganizationID, result[i].UserID) < membershipKey(result[j].OrganizationID, result[j].UserID)
	})
	if filter == nil {
		return result, nil
	}
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (s *Store) DeleteMembership(_ context.Context, orgID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memberships, membershipKey(orgID, userID))
	return nil
}

// ──────────────────────────────────────────────────
// Custom role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateCustomRole(_ context.Context, r *role.CustomRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.customRoles {
		if cur.OrganizationID == r.OrganizationID && cur.Key == r.Key {
			return fmt.Errorf("custom role %q: %w", r.Key, store.ErrConflict)
		}
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.customRoles[r.ID.String()] = copyCustomRole(r)
	return nil
}

func (s *Store) GetCustomRole(_ context.Context, roleID id.CustomRoleID) (*role.CustomRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.customRoles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("custom role %s: %w", roleID, store.ErrNotFound)
	}
	return copyCustomRole(r), nil
}

func (s *Store) SetCustomRolePermissions(_ context.Context, roleID id.CustomRoleID, perms []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.customRoles[roleID.String()]
	if !ok {
		return fmt.Errorf("custom role %s: %w", roleID, store.ErrNotFound)
	}
	r.Permissions = append([]string(nil), perms...)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteCustomRole(_ context.Context, roleID id.CustomRoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk := roleID.String()
	delete(s.customRoles, rk)
	for k, b := range s.bindings {
		if b.CustomRoleID.String() == rk {
			delete(s.bindings, k)
		}
	}
	return nil
}

func (s *Store) ListCustomRoles(_ context.Context, orgID string) ([]*role.CustomRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*role.CustomRole
	for _, r := range s.customRoles {
		if r.OrganizationID == orgID {
			result = append(result, copyCustomRole(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (s *Store) BindCustomRole(_ context.Context, b *role.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.customRoles[b.CustomRoleID.String()]
	if !ok || r.OrganizationID != b.OrganizationID {
		return fmt.Errorf("custom role %s: %w", b.CustomRoleID, store.ErrNotFound)
	}
	for _, cur := range s.bindings {
		if cur.OrganizationID == b.OrganizationID && cur.UserID == b.UserID && cur.CustomRoleID == b.CustomRoleID {
			return fmt.Errorf("custom role binding %s/%s: %w", b.UserID, b.CustomRoleID, store.ErrConflict)
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	c := *b
	s.bindings[b.ID.String()] = &c
	return nil
}

func (s *Store) UnbindCustomRole(_ context.Context, orgID, userID string, roleID id.CustomRoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, b := range s.bindings {
		if b.OrganizationID == orgID && b.UserID == userID && b.CustomRoleID == roleID {
			delete(s.bindings, k)
		}
	}
	return nil
}

func (s *Store) ListCustomRolesForUser(_ context.Context, orgID, userID string) ([]*role.CustomRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*role.CustomRole
	for _, b := range s.bindings {
		if b.OrganizationID != orgID || b.UserID != userID {
			continue
		}
		if r, ok := s.customRoles[b.CustomRoleID.String()]; ok {
			result = append(result, copyCustomRole(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// ──────────────────────────────────────────────────
// API key Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAPIKey(_ context.Context, k *apikey.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	k.CreatedAt = now
	k.UpdatedAt = now
	s.apiKeys[k.ID.String()] = copyAPIKey(k)
	return nil
}

func (s *Store) GetAPIKey(_ context.Context, keyID id.APIKeyID) (*apikey.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.apiKeys[keyID.String()]
	if !ok {
		return nil, fmt.Errorf("api key %s: %w", keyID, store.ErrNotFound)
	}
	return copyAPIKey(k), nil
}

func (s *Store) ListAPIKeys(_ context.Context, orgID string) ([]*apikey.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*apikey.APIKey
	for _, k := range s.apiKeys {
		if k.OrganizationID == orgID {
			result = append(result, copyAPIKey(k))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (s *Store) DeactivateAPIKey(_ context.Context, keyID id.APIKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[keyID.String()]
	if !ok {
		return fmt.Errorf("api key %s: %w", keyID, store.ErrNotFound)
	}
	k.IsActive = false
	k.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// Grant Store
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(_ context.Context, g *grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	c := *g
	s.grants[g.ID.String()] = &c
	return nil
}

func (s *Store) HasActiveGrant(_ context.Context, orgID, userID, key string, now time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants {
		if g.OrganizationID == orgID && g.UserID == userID && g.PermissionKey == key && g.ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListActiveGrants(_ context.Context, orgID, userID string, now time.Time) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*grant.Grant
	for _, g := range s.grants {
		if g.OrganizationID == orgID && g.UserID == userID && g.ActiveAt(now) {
			c := *g
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	return result, nil
}

func (s *Store) ListGrants(_ context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*grant.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		if filter != nil {
			if filter.OrganizationID != "" && g.OrganizationID != filter.OrganizationID {
				continue
			}
			if filter.UserID != "" && g.UserID != filter.UserID {
				continue
			}
			if !filter.RequestID.IsNil() && g.RequestID != filter.RequestID {
				continue
			}
		}
		c := *g
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	if filter == nil {
		return result, nil
	}
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (s *Store) DeleteGrant(_ context.Context, grantID id.GrantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[grantID.String()]; !ok {
		return fmt.Errorf("grant %s: %w", grantID, store.ErrNotFound)
	}
	delete(s.grants, grantID.String())
	return nil
}

func (s *Store) DeleteExpiredGrants(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, g := range s.grants {
		if !g.ActiveAt(now) {
			delete(s.grants, k)
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Access request Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAccessRequest(_ context.Context, r *accessrequest.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	s.requests[r.ID.String()] = copyRequest(r)
	return nil
}

func (s *Store) GetAccessRequest(_ context.Context, reqID id.AccessRequestID) (*accessrequest.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[reqID.String()]
	if !ok {
		return nil, fmt.Errorf("access request %s: %w", reqID, store.ErrNotFound)
	}
	return copyRequest(r), nil
}

func (s *Store) ListAccessRequests(_ context.Context, filter *accessrequest.ListFilter) ([]*accessrequest.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*accessrequest.Request, 0, len(s.requests))
	for _, r := range s.requests {
		if filter != nil {
			if filter.OrganizationID != "" && r.OrganizationID != filter.OrganizationID {
				continue
			}
			if filter.UserID != "" && r.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && r.Status != filter.Status {
				continue
			}
		}
		result = append(result, copyRequest(r))
	}
	// IDs are K-sortable, so descending ID order is newest first.
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() > result[j].ID.String() })
	if filter == nil {
		return result, nil
	}
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (s *Store) ApproveAccessRequest(_ context.Context, a *accessrequest.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[a.RequestID.String()]
	if !ok {
		return fmt.Errorf("access request %s: %w", a.RequestID, store.ErrNotFound)
	}
	if !r.IsPending() {
		return fmt.Errorf("access request %s is %s: %w", a.RequestID, r.Status, store.ErrNotPending)
	}
	approvedAt := a.ApprovedAt
	r.Status = accessrequest.StatusApproved
	r.ApproverID = a.ApproverID
	r.ApprovedAt = &approvedAt
	r.ExpiresAt = a.ExpiresAt
	r.UpdatedAt = approvedAt
	for _, g := range a.Grants {
		c := *g
		s.grants[g.ID.String()] = &c
	}
	return nil
}

func (s *Store) DenyAccessRequest(_ context.Context, reqID id.AccessRequestID, approverID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[reqID.String()]
	if !ok {
		return fmt.Errorf("access request %s: %w", reqID, store.ErrNotFound)
	}
	if !r.IsPending() {
		return fmt.Errorf("access request %s is %s: %w", reqID, r.Status, store.ErrNotPending)
	}
	r.Status = accessrequest.StatusDenied
	r.ApproverID = approverID
	r.DeniedAt = &at
	r.UpdatedAt = at
	return nil
}

// ──────────────────────────────────────────────────
// Scope rule Store
// ──────────────────────────────────────────────────

func (s *Store) PutScopeRule(_ context.Context, r *scoperule.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for k, cur := range s.scopeRules {
		if cur.OrganizationID == r.OrganizationID && cur.SubjectType == r.SubjectType && cur.SubjectKey == r.SubjectKey {
			r.ID = cur.ID
			r.CreatedAt = cur.CreatedAt
			delete(s.scopeRules, k)
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.scopeRules[r.ID.String()] = copyRule(r)
	return nil
}

func (s *Store) GetScopeRule(_ context.Context, ruleID id.ScopeRuleID) (*scoperule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.scopeRules[ruleID.String()]
	if !ok {
		return nil, fmt.Errorf("scope rule %s: %w", ruleID, store.ErrNotFound)
	}
	return copyRule(r), nil
}

func (s *Store) ListScopeRulesFor(_ context.Context, orgID string, subjectType scoperule.SubjectType, keys []string) ([]*scoperule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	var result []*scoperule.Rule
	for _, r := range s.scopeRules {
		if r.OrganizationID != orgID || r.SubjectType != subjectType {
			continue
		}
		if _, ok := want[r.SubjectKey]; ok {
			result = append(result, copyRule(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubjectKey < result[j].SubjectKey })
	return result, nil
}

func (s *Store) ListScopeRules(_ context.Context, filter *scoperule.ListFilter) ([]*scoperule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*scoperule.Rule, 0, len(s.scopeRules))
	for _, r := range s.scopeRules {
		if filter != nil {
			if filter.OrganizationID != "" && r.OrganizationID != filter.OrganizationID {
				continue
			}
			if filter.SubjectType != "" && r.SubjectType != filter.SubjectType {
				continue
			}
			if filter.SubjectKey != "" && r.SubjectKey != filter.SubjectKey {
				continue
			}
		}
		result = append(result, copyRule(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	if filter == nil {
		return result, nil
	}
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (s *Store) DeleteScopeRule(_ context.Context, ruleID id.ScopeRuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopeRules, ruleID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) AppendAuditRecord(_ context.Context, r *auditlog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, r.Clone())
	return nil
}

func (s *Store) ListAuditRecords(_ context.Context, filter *auditlog.QueryFilter) ([]*auditlog.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*auditlog.Record, 0, len(s.audit))
	// Walk backwards so the newest record comes first.
	for i := len(s.audit) - 1; i >= 0; i-- {
		r := s.audit[i]
		if !matchAudit(r, filter) {
			continue
		}
		result = append(result, r.Clone())
	}
	if filter == nil {
		return result, nil
	}
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (s *Store) CountAuditRecords(_ context.Context, filter *auditlog.QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.audit {
		if matchAudit(r, filter) {
			n++
		}
	}
	return n, nil
}

func matchAudit(r *auditlog.Record, f *auditlog.QueryFilter) bool {
	if f == nil {
		return true
	}
	if f.OrganizationID != "" && r.OrganizationID != f.OrganizationID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.APIKeyID != "" && r.APIKeyID != f.APIKeyID {
		return false
	}
	if f.Decision != "" && r.Decision != f.Decision {
		return false
	}
	if f.After != nil && !r.CreatedAt.After(*f.After) {
		return false
	}
	if f.Before != nil && !r.CreatedAt.Before(*f.Before) {
		return false
	}
	return true
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyCustomRole(r *role.CustomRole) *role.CustomRole {
	c := *r
	c.Permissions = append([]string(nil), r.Permissions...)
	return &c
}

func copyAPIKey(k *apikey.APIKey) *apikey.APIKey {
	c := *k
	c.Scopes = append([]string(nil), k.Scopes...)
	if k.ExpiresAt != nil {
		t := *k.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func copyRequest(r *accessrequest.Request) *accessrequest.Request {
	c := *r
	c.PermissionKeys = append([]string(nil), r.PermissionKeys...)
	return &c
}

func copyRule(r *scoperule.Rule) *scoperule.Rule {
	c := *r
	c.Constraints = make(map[string][]string, len(r.Constraints))
	for k, v := range r.Constraints {
		c.Constraints[k] = append([]string(nil), v...)
	}
	return &c
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
