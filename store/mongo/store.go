// Package mongo provides a MongoDB implementation of the Bastion composite
// store using the grove mongodriver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

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

// Collection name constants.
const (
	colEntitlements   = "bastion_entitlements"
	colMemberships    = "bastion_memberships"
	colCustomRoles    = "bastion_custom_roles"
	colRoleBindings   = "bastion_role_bindings"
	colAPIKeys        = "bastion_api_keys"
	colGrants         = "bastion_grants"
	colAccessRequests = "bastion_access_requests"
	colScopeRules     = "bastion_scope_rules"
	colAuditRecords   = "bastion_audit_records"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Bastion store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all bastion collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("bastion/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bastion collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colEntitlements: {
			{
				Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "feature_key", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_active": true}),
			},
			{Keys: bson.D{{Key: "organization_id", Value: 1}}},
		},
		colMemberships: {
			{
				Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		colCustomRoles: {
			{
				Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "role_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colRoleBindings: {
			{
				Keys: bson.D{
					{Key: "organization_id", Value: 1},
					{Key: "user_id", Value: 1},
					{Key: "custom_role_id", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "custom_role_id", Value: 1}}},
		},
		colAPIKeys: {
			{Keys: bson.D{{Key: "organization_id", Value: 1}}},
		},
		colGrants: {
			{Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "permission_key", Value: 1},
				{Key: "expires_at", Value: 1},
			}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "request_id", Value: 1}}},
		},
		colAccessRequests: {
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "user_id", Value: 1}}},
		},
		colScopeRules: {
			{
				Keys: bson.D{
					{Key: "organization_id", Value: 1},
					{Key: "subject_type", Value: 1},
					{Key: "subject_key", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
		colAuditRecords: {
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "decision", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Entitlement operations
// ──────────────────────────────────────────────────

// ActivateEntitlement retires the active row for the feature, if any, and
// inserts e. The partial unique index keeps at most one active row.
func (s *Store) ActivateEntitlement(ctx context.Context, e *entitlement.Entitlement) error {
	t := now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t
	}
	if e.ActivatedAt.IsZero() {
		e.ActivatedAt = t
	}
	e.UpdatedAt = t
	e.IsActive = true
	e.DeactivatedAt = nil

	_, err := s.mdb.NewUpdate((*entitlementModel)(nil)).
		Filter(bson.M{"organization_id": e.OrganizationID, "feature_key": e.FeatureKey, "is_active": true}).
		Set("is_active", false).
		Set("deactivated_at", t).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: retire entitlement: %w", err)
	}
	if _, err := s.mdb.NewInsert(entitlementToModel(e)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("entitlement %s/%s: %w", e.OrganizationID, e.FeatureKey, store.ErrConflict)
		}
		return fmt.Errorf("bastion: activate entitlement: %w", err)
	}
	return nil
}

func (s *Store) DeactivateEntitlement(ctx context.Context, orgID, featureKey string, at time.Time) error {
	res, err := s.mdb.NewUpdate((*entitlementModel)(nil)).
		Filter(bson.M{"organization_id": orgID, "feature_key": featureKey, "is_active": true}).
		Set("is_active", false).
		Set("deactivated_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: deactivate entitlement: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("entitlement %s/%s: %w", orgID, featureKey, store.ErrNotFound)
	}
	return nil
}

func (s *Store) HasActiveEntitlement(ctx context.Context, orgID, featureKey string) (bool, error) {
	count, err := s.mdb.NewFind((*entitlementModel)(nil)).
		Filter(bson.M{"organization_id": orgID, "feature_key": featureKey, "is_active": true}).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("bastion: has active entitlement: %w", err)
	}
	return count > 0, nil
}

func (s *Store) ListActiveFeatureKeys(ctx context.Context, orgID string) ([]string, error) {
	var models []entitlementModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"organization_id": orgID, "is_active": true}).
		Sort(bson.D{{Key: "feature_key", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list active feature keys: %w", err)
	}
	keys := make([]string, len(models))
	for i := range models {
		keys[i] = models[i].FeatureKey
	}
	return keys, nil
}

func (s *Store) ListEntitlements(ctx context.Context, filter *entitlement.ListFilter) ([]*entitlement.Entitlement, error) {
	var models []entitlementModel
	f := bson.M{}
	if filter != nil {
		if filter.OrganizationID != "" {
			f["organization_id"] = filter.OrganizationID
		}
		if filter.FeatureKey != "" {
			f["feature_key"] = filter.FeatureKey
		}
		if filter.ActiveOnly {
			f["is_active"] = true
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list entitlements: %w", err)
	}
	result := make([]*entitlement.Entitlement, len(models))
	for i := range models {
		result[i] = entitlementFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Membership operations
// ──────────────────────────────────────────────────

func (s *Store) PutMembership(ctx context.Context, m *membership.Membership) error {
	t := now()
	m.UpdatedAt = t

	existing, err := s.GetMembership(ctx, m.OrganizationID, m.UserID)
	switch {
	case err == nil:
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		mm := membershipToModel(m)
		if _, err := s.mdb.NewUpdate(mm).Filter(bson.M{"_id": mm.ID}).Exec(ctx); err != nil {
			return fmt.Errorf("bastion: update membership: %w", err)
		}
		return nil
	case errors.Is(err, store.ErrNotFound):
		if m.CreatedAt.IsZero() {
			m.CreatedAt = t
		}
		if _, err := s.mdb.NewInsert(membershipToModel(m)).Exec(ctx); err != nil {
			if mongod.IsDuplicateKeyError(err) {
				return fmt.Errorf("membership %s/%s: %w", m.OrganizationID, m.UserID, store.ErrConflict)
			}
			return fmt.Errorf("bastion: create membership: %w", err)
		}
		return nil
	default:
		return err
	}
}

func (s *Store) GetMembership(ctx context.Context, orgID, userID string) (*membership.Membership, error) {
	var m membershipModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"organization_id": orgID, "user_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("membership %s/%s: %w", orgID, userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get membership: %w", err)
	}
	return membershipFromModel(&m), nil
}

func (s *Store) ListMemberships(ctx context.Context, filter *membership.ListFilter) ([]*membership.Membership, error) {
	var models []membershipModel
	f := bson.M{}
	if filter != nil {
		if filter.OrganizationID != "" {
			f["organization_id"] = filter.OrganizationID
		}
		if filter.UserID != "" {
			f["user_id"] = filter.UserID
		}
		if filter.Role != "" {
			f["role"] = filter.Role
		}
		if filter.Status != "" {
			f["status"] = string(filter.Status)
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "organization_id", Value: 1}, {Key: "user_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list memberships: %w", err)
	}
	result := make([]*membership.Membership, len(models))
	for i := range models {
		result[i] = membershipFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeleteMembership(ctx context.Context, orgID, userID string) error {
	_, err := s.mdb.NewDelete((*membershipModel)(nil)).
		Filter(bson.M{"organization_id": orgID, "user_id": userID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete membership: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Custom role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateCustomRole(ctx context.Context, r *role.CustomRole) error {
	t := now()
	r.CreatedAt = t
	r.UpdatedAt = t
	if _, err := s.mdb.NewInsert(customRoleToModel(r)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("custom role %q: %w", r.Key, store.ErrConflict)
		}
		return fmt.Errorf("bastion: create custom role: %w", err)
	}
	return nil
}

func (s *Store) GetCustomRole(ctx context.Context, roleID id.CustomRoleID) (*role.CustomRole, error) {
	var m customRoleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("custom role %s: %w", roleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get custom role: %w", err)
	}
	return customRoleFromModel(&m), nil
}

func (s *Store) SetCustomRolePermissions(ctx context.Context, roleID id.CustomRoleID, perms []string) error {
	res, err := s.mdb.NewUpdate((*customRoleModel)(nil)).
		Filter(bson.M{"_id": roleID.String()}).
		Set("permissions", nonNil(perms)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: set custom role permissions: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("custom role %s: %w", roleID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteCustomRole(ctx context.Context, roleID id.CustomRoleID) error {
	_, err := s.mdb.NewDelete((*roleBindingModel)(nil)).
		Many().
		Filter(bson.M{"custom_role_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete custom role bindings: %w", err)
	}
	_, err = s.mdb.NewDelete((*customRoleModel)(nil)).
		Filter(bson.M{"_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete custom role: %w", err)
	}
	return nil
}

func (s *Store) ListCustomRoles(ctx context.Context, orgID string) ([]*role.CustomRole, error) {
	var models []customRoleModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"organization_id": orgID}).
		Sort(bson.D{{Key: "role_key", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list custom roles: %w", err)
	}
	return customRolesFromModels(models), nil
}

func (s *Store) BindCustomRole(ctx context.Context, b *role.Binding) error {
	r, err := s.GetCustomRole(ctx, b.CustomRoleID)
	if err != nil {
		return err
	}
	if r.OrganizationID != b.OrganizationID {
		return fmt.Errorf("custom role %s: %w", b.CustomRoleID, store.ErrNotFound)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now()
	}
	if _, err := s.mdb.NewInsert(roleBindingToModel(b)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("custom role binding %s/%s: %w", b.UserID, b.CustomRoleID, store.ErrConflict)
		}
		return fmt.Errorf("bastion: bind custom role: %w", err)
	}
	return nil
}

func (s *Store) UnbindCustomRole(ctx context.Context, orgID, userID string, roleID id.CustomRoleID) error {
	_, err := s.mdb.NewDelete((*roleBindingModel)(nil)).
		Filter(bson.M{"organization_id": orgID, "user_id": userID, "custom_role_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: unbind custom role: %w", err)
	}
	return nil
}

func (s *Store) ListCustomRolesForUser(ctx context.Context, orgID, userID string) ([]*role.CustomRole, error) {
	var bindings []roleBindingModel
	err := s.mdb.NewFind(&bindings).
		Filter(bson.M{"organization_id": orgID, "user_id": userID}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list custom roles for user: %w", err)
	}
	if len(bindings) == 0 {
		return []*role.CustomRole{}, nil
	}
	roleIDs := make([]string, len(bindings))
	for i, b := range bindings {
		roleIDs[i] = b.CustomRoleID
	}

	var models []customRoleModel
	err = s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$in": roleIDs}, "organization_id": orgID}).
		Sort(bson.D{{Key: "role_key", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list custom roles for user: %w", err)
	}
	return customRolesFromModels(models), nil
}

func customRolesFromModels(models []customRoleModel) []*role.CustomRole {
	result := make([]*role.CustomRole, len(models))
	for i := range models {
		result[i] = customRoleFromModel(&models[i])
	}
	return result
}

// ──────────────────────────────────────────────────
// API key operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAPIKey(ctx context.Context, k *apikey.APIKey) error {
	t := now()
	k.CreatedAt = t
	k.UpdatedAt = t
	if _, err := s.mdb.NewInsert(apiKeyToModel(k)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create api key: %w", err)
	}
	return nil
}

func (s *Store) GetAPIKey(ctx context.Context, keyID id.APIKeyID) (*apikey.APIKey, error) {
	var m apiKeyModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": keyID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("api key %s: %w", keyID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get api key: %w", err)
	}
	return apiKeyFromModel(&m), nil
}

func (s *Store) ListAPIKeys(ctx context.Context, orgID string) ([]*apikey.APIKey, error) {
	var models []apiKeyModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"organization_id": orgID}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list api keys: %w", err)
	}
	result := make([]*apikey.APIKey, len(models))
	for i := range models {
		result[i] = apiKeyFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) DeactivateAPIKey(ctx context.Context, keyID id.APIKeyID) error {
	res, err := s.mdb.NewUpdate((*apiKeyModel)(nil)).
		Filter(bson.M{"_id": keyID.String()}).
		Set("is_active", false).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: deactivate api key: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("api key %s: %w", keyID, store.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now()
	}
	if _, err := s.mdb.NewInsert(grantToModel(g)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create grant: %w", err)
	}
	return nil
}

func (s *Store) HasActiveGrant(ctx context.Context, orgID, userID, key string, t time.Time) (bool, error) {
	count, err := s.mdb.NewFind((*grantModel)(nil)).
		Filter(bson.M{
			"organization_id": orgID,
			"user_id":         userID,
			"permission_key":  key,
			"expires_at":      bson.M{"$gt": t},
		}).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("bastion: has active grant: %w", err)
	}
	return count > 0, nil
}

func (s *Store) ListActiveGrants(ctx context.Context, orgID, userID string, t time.Time) ([]*grant.Grant, error) {
	var models []grantModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"organization_id": orgID,
			"user_id":         userID,
			"expires_at":      bson.M{"$gt": t},
		}).
		Sort(bson.D{{Key: "expires_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list active grants: %w", err)
	}
	return grantsFromModels(models), nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	f := bson.M{}
	if filter != nil {
		if filter.OrganizationID != "" {
			f["organization_id"] = filter.OrganizationID
		}
		if filter.UserID != "" {
			f["user_id"] = filter.UserID
		}
		if !filter.RequestID.IsNil() {
			f["request_id"] = filter.RequestID.String()
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list grants: %w", err)
	}
	return grantsFromModels(models), nil
}

func (s *Store) DeleteGrant(ctx context.Context, grantID id.GrantID) error {
	res, err := s.mdb.NewDelete((*grantModel)(nil)).
		Filter(bson.M{"_id": grantID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete grant: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("grant %s: %w", grantID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteExpiredGrants(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*grantModel)(nil)).
		Many().
		Filter(bson.M{"expires_at": bson.M{"$lte": t}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: delete expired grants: %w", err)
	}
	return res.DeletedCount(), nil
}

func grantsFromModels(models []grantModel) []*grant.Grant {
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result
}

// ──────────────────────────────────────────────────
// Access request operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAccessRequest(ctx context.Context, r *accessrequest.Request) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	r.UpdatedAt = r.CreatedAt
	if _, err := s.mdb.NewInsert(accessRequestToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create access request: %w", err)
	}
	return nil
}

func (s *Store) GetAccessRequest(ctx context.Context, reqID id.AccessRequestID) (*accessrequest.Request, error) {
	var m accessRequestModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": reqID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("access request %s: %w", reqID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get access request: %w", err)
	}
	return accessRequestFromModel(&m), nil
}

func (s *Store) ListAccessRequests(ctx context.Context, filter *accessrequest.ListFilter) ([]*accessrequest.Request, error) {
	var models []accessRequestModel
	f := bson.M{}
	if filter != nil {
		if filter.OrganizationID != "" {
			f["organization_id"] = filter.OrganizationID
		}
		if filter.UserID != "" {
			f["user_id"] = filter.UserID
		}
		if filter.Status != "" {
			f["status"] = string(filter.Status)
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list access requests: %w", err)
	}
	result := make([]*accessrequest.Request, len(models))
	for i := range models {
		result[i] = accessRequestFromModel(&models[i])
	}
	return result, nil
}

// ApproveAccessRequest runs the status flip and the grant inserts in a
// session transaction. The pending filter on the update makes a concurrent
// second approval match nothing. Requires a replica set.
func (s *Store) ApproveAccessRequest(ctx context.Context, a *accessrequest.Approval) error {
	client := s.mdb.Collection(colAccessRequests).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("bastion: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		res, err := s.mdb.NewUpdate((*accessRequestModel)(nil)).
			Filter(bson.M{"_id": a.RequestID.String(), "status": string(accessrequest.StatusPending)}).
			Set("status", string(accessrequest.StatusApproved)).
			Set("approver_id", a.ApproverID).
			Set("approved_at", a.ApprovedAt).
			Set("expires_at", a.ExpiresAt).
			Set("updated_at", a.ApprovedAt).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("bastion: approve access request: %w", err)
		}
		if res.MatchedCount() == 0 {
			return nil, s.requestStateError(ctx, a.RequestID)
		}
		if len(a.Grants) > 0 {
			models := make([]grantModel, len(a.Grants))
			for i, g := range a.Grants {
				models[i] = *grantToModel(g)
			}
			if _, err := s.mdb.NewInsert(&models).Exec(ctx); err != nil {
				return nil, fmt.Errorf("bastion: insert grants: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

func (s *Store) DenyAccessRequest(ctx context.Context, reqID id.AccessRequestID, approverID string, at time.Time) error {
	res, err := s.mdb.NewUpdate((*accessRequestModel)(nil)).
		Filter(bson.M{"_id": reqID.String(), "status": string(accessrequest.StatusPending)}).
		Set("status", string(accessrequest.StatusDenied)).
		Set("approver_id", approverID).
		Set("denied_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: deny access request: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.requestStateError(ctx, reqID)
	}
	return nil
}

func (s *Store) requestStateError(ctx context.Context, reqID id.AccessRequestID) error {
	r, err := s.GetAccessRequest(ctx, reqID)
	if err != nil {
		return err
	}
	return fmt.Errorf("access request %s is %s: %w", reqID, r.Status, store.ErrNotPending)
}

// ──────────────────────────────────────────────────
// Scope rule operations
// ──────────────────────────────────────────────────

func (s *Store) PutScopeRule(ctx context.Context, r *scoperule.Rule) error {
	t := now()
	r.UpdatedAt = t

	var existing scopeRuleModel
	err := s.mdb.NewFind(&existing).
		Filter(bson.M{
			"organization_id": r.OrganizationID,
			"subject_type":    string(r.SubjectType),
			"subject_key":     r.SubjectKey,
		}).
		Scan(ctx)
	switch {
	case err == nil:
		r.ID, _ = id.ParseScopeRuleID(existing.ID) //nolint:errcheck // stored IDs are always valid
		r.CreatedAt = existing.CreatedAt
		m := scopeRuleToModel(r)
		if _, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx); err != nil {
			return fmt.Errorf("bastion: update scope rule: %w", err)
		}
		return nil
	case isNoDocuments(err):
		if r.CreatedAt.IsZero() {
			r.CreatedAt = t
		}
		if _, err := s.mdb.NewInsert(scopeRuleToModel(r)).Exec(ctx); err != nil {
			if mongod.IsDuplicateKeyError(err) {
				return fmt.Errorf("scope rule %s/%s: %w", r.SubjectType, r.SubjectKey, store.ErrConflict)
			}
			return fmt.Errorf("bastion: create scope rule: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("bastion: put scope rule: %w", err)
	}
}

func (s *Store) GetScopeRule(ctx context.Context, ruleID id.ScopeRuleID) (*scoperule.Rule, error) {
	var m scopeRuleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": ruleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("scope rule %s: %w", ruleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get scope rule: %w", err)
	}
	return scopeRuleFromModel(&m), nil
}

func (s *Store) ListScopeRulesFor(ctx context.Context, orgID string, subjectType scoperule.SubjectType, keys []string) ([]*scoperule.Rule, error) {
	if len(keys) == 0 {
		return []*scoperule.Rule{}, nil
	}
	var models []scopeRuleModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"organization_id": orgID,
			"subject_type":    string(subjectType),
			"subject_key":     bson.M{"$in": keys},
		}).
		Sort(bson.D{{Key: "subject_key", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list scope rules for subject: %w", err)
	}
	return scopeRulesFromModels(models), nil
}

func (s *Store) ListScopeRules(ctx context.Context, filter *scoperule.ListFilter) ([]*scoperule.Rule, error) {
	var models []scopeRuleModel
	f := bson.M{}
	if filter != nil {
		if filter.OrganizationID != "" {
			f["organization_id"] = filter.OrganizationID
		}
		if filter.SubjectType != "" {
			f["subject_type"] = string(filter.SubjectType)
		}
		if filter.SubjectKey != "" {
			f["subject_key"] = filter.SubjectKey
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list scope rules: %w", err)
	}
	return scopeRulesFromModels(models), nil
}

func (s *Store) DeleteScopeRule(ctx context.Context, ruleID id.ScopeRuleID) error {
	_, err := s.mdb.NewDelete((*scopeRuleModel)(nil)).
		Filter(bson.M{"_id": ruleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete scope rule: %w", err)
	}
	return nil
}

func scopeRulesFromModels(models []scopeRuleModel) []*scoperule.Rule {
	result := make([]*scoperule.Rule, len(models))
	for i := range models {
		result[i] = scopeRuleFromModel(&models[i])
	}
	return result
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) AppendAuditRecord(ctx context.Context, r *auditlog.Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	if _, err := s.mdb.NewInsert(auditRecordToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: append audit record: %w", err)
	}
	return nil
}

func auditFilter(filter *auditlog.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.OrganizationID != "" {
		f["organization_id"] = filter.OrganizationID
	}
	if filter.UserID != "" {
		f["user_id"] = filter.UserID
	}
	if filter.APIKeyID != "" {
		f["api_key_id"] = filter.APIKeyID
	}
	if filter.Decision != "" {
		f["decision"] = filter.Decision
	}
	if filter.After != nil || filter.Before != nil {
		dateFilter := bson.M{}
		if filter.After != nil {
			dateFilter["$gte"] = *filter.After
		}
		if filter.Before != nil {
			dateFilter["$lte"] = *filter.Before
		}
		f["created_at"] = dateFilter
	}
	return f
}

func (s *Store) ListAuditRecords(ctx context.Context, filter *auditlog.QueryFilter) ([]*auditlog.Record, error) {
	var models []auditRecordModel
	q := s.mdb.NewFind(&models).
		Filter(auditFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list audit records: %w", err)
	}
	result := make([]*auditlog.Record, len(models))
	for i := range models {
		result[i] = auditRecordFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAuditRecords(ctx context.Context, filter *auditlog.QueryFilter) (int64, error) {
	count, err := s.mdb.NewFind((*auditRecordModel)(nil)).
		Filter(auditFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count audit records: %w", err)
	}
	return count, nil
}
