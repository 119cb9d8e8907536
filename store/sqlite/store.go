package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

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

// Store is a SQLite implementation of the composite Bastion store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: migration failed: %w", err)
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches the SQLite constraint error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ──────────────────────────────────────────────────
// Entitlement operations
// ──────────────────────────────────────────────────

// ActivateEntitlement retires any active row for the same feature and
// inserts e as the active one in a single transaction.
func (s *Store) ActivateEntitlement(ctx context.Context, e *entitlement.Entitlement) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.ActivatedAt.IsZero() {
		e.ActivatedAt = now
	}
	e.UpdatedAt = now
	e.IsActive = true
	e.DeactivatedAt = nil

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	_, err = tx.NewUpdate((*entitlementModel)(nil)).
		Set("is_active = ?", false).
		Set("deactivated_at = ?", now).
		Set("updated_at = ?", now).
		Where("organization_id = ?", e.OrganizationID).
		Where("feature_key = ?", e.FeatureKey).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: retire entitlement: %w", err)
	}
	if _, err := tx.NewInsert(entitlementToModel(e)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("entitlement %s/%s: %w", e.OrganizationID, e.FeatureKey, store.ErrConflict)
		}
		return fmt.Errorf("bastion: activate entitlement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DeactivateEntitlement(ctx context.Context, orgID, featureKey string, at time.Time) error {
	res, err := s.sdb.NewUpdate((*entitlementModel)(nil)).
		Set("is_active = ?", false).
		Set("deactivated_at = ?", at).
		Set("updated_at = ?", at).
		Where("organization_id = ?", orgID).
		Where("feature_key = ?", featureKey).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: deactivate entitlement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bastion: deactivate entitlement rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entitlement %s/%s: %w", orgID, featureKey, store.ErrNotFound)
	}
	return nil
}

func (s *Store) HasActiveEntitlement(ctx context.Context, orgID, featureKey string) (bool, error) {
	count, err := s.sdb.NewSelect((*entitlementModel)(nil)).
		Where("organization_id = ?", orgID).
		Where("feature_key = ?", featureKey).
		Where("is_active = ?", true).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("bastion: has active entitlement: %w", err)
	}
	return count > 0, nil
}

func (s *Store) ListActiveFeatureKeys(ctx context.Context, orgID string) ([]string, error) {
	var models []entitlementModel
	err := s.sdb.NewSelect(&models).
		Where("organization_id = ?", orgID).
		Where("is_active = ?", true).
		OrderExpr("feature_key ASC").
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
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.OrganizationID != "" {
			q = q.Where("organization_id = ?", filter.OrganizationID)
		}
		if filter.FeatureKey != "" {
			q = q.Where("feature_key = ?", filter.FeatureKey)
		}
		if filter.ActiveOnly {
			q = q.Where("is_active = ?", true)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
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
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	_, err := s.sdb.NewInsert(membershipToModel(m)).
		OnConflict("(organization_id, user_id) DO UPDATE SET role = excluded.role, status = excluded.status, updated_at = excluded.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: put membership: %w", err)
	}
	stored, err := s.GetMembership(ctx, m.OrganizationID, m.UserID)
	if err != nil {
		return err
	}
	m.ID = stored.ID
	m.CreatedAt = stored.CreatedAt
	return nil
}

func (s *Store) GetMembership(ctx context.Context, orgID, userID string) (*membership.Membership, error) {
	m := new(membershipModel)
	err := s.sdb.NewSelect(m).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("membership %s/%s: %w", orgID, userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get membership: %w", err)
	}
	return membershipFromModel(m), nil
}

func (s *Store) ListMemberships(ctx context.Context, filter *membership.ListFilter) ([]*membership.Membership, error) {
	var models []membershipModel
	q := s.sdb.NewSelect(&models).OrderExpr("organization_id ASC, user_id ASC")
	if filter != nil {
		if filter.OrganizationID != "" {
			q = q.Where("organization_id = ?", filter.OrganizationID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.Role != "" {
			q = q.Where("role = ?", filter.Role)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
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
	_, err := s.sdb.NewDelete((*membershipModel)(nil)).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID).
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
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m, err := customRoleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: create custom role: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("custom role %q: %w", r.Key, store.ErrConflict)
		}
		return fmt.Errorf("bastion: create custom role: %w", err)
	}
	return nil
}

func (s *Store) GetCustomRole(ctx context.Context, roleID id.CustomRoleID) (*role.CustomRole, error) {
	m := new(customRoleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("custom role %s: %w", roleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get custom role: %w", err)
	}
	r, err := customRoleFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get custom role: %w", err)
	}
	return r, nil
}

func (s *Store) SetCustomRolePermissions(ctx context.Context, roleID id.CustomRoleID, perms []string) error {
	encoded, err := marshalStrings(perms)
	if err != nil {
		return fmt.Errorf("bastion: set custom role permissions: %w", err)
	}
	res, err := s.sdb.NewUpdate((*customRoleModel)(nil)).
		Set("permissions = ?", encoded).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: set custom role permissions: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // zero on error is treated as missing
		return fmt.Errorf("custom role %s: %w", roleID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteCustomRole(ctx context.Context, roleID id.CustomRoleID) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	_, err = tx.NewDelete((*roleBindingModel)(nil)).
		Where("custom_role_id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete custom role bindings: %w", err)
	}
	_, err = tx.NewDelete((*customRoleModel)(nil)).
		Where("id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete custom role: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListCustomRoles(ctx context.Context, orgID string) ([]*role.CustomRole, error) {
	var models []customRoleModel
	err := s.sdb.NewSelect(&models).
		Where("organization_id = ?", orgID).
		OrderExpr("role_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list custom roles: %w", err)
	}
	return customRolesFromModels(models)
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
		b.CreatedAt = time.Now().UTC()
	}
	if _, err := s.sdb.NewInsert(roleBindingToModel(b)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("custom role binding %s/%s: %w", b.UserID, b.CustomRoleID, store.ErrConflict)
		}
		return fmt.Errorf("bastion: bind custom role: %w", err)
	}
	return nil
}

func (s *Store) UnbindCustomRole(ctx context.Context, orgID, userID string, roleID id.CustomRoleID) error {
	_, err := s.sdb.NewDelete((*roleBindingModel)(nil)).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID).
		Where("custom_role_id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: unbind custom role: %w", err)
	}
	return nil
}

func (s *Store) ListCustomRolesForUser(ctx context.Context, orgID, userID string) ([]*role.CustomRole, error) {
	var bindings []roleBindingModel
	err := s.sdb.NewSelect(&bindings).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID).
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
	err = s.sdb.NewSelect(&models).
		Where("id IN (?)", roleIDs).
		Where("organization_id = ?", orgID).
		OrderExpr("role_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list custom roles for user: %w", err)
	}
	return customRolesFromModels(models)
}

func customRolesFromModels(models []customRoleModel) ([]*role.CustomRole, error) {
	result := make([]*role.CustomRole, len(models))
	for i := range models {
		r, err := customRoleFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: decode custom role: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// API key operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAPIKey(ctx context.Context, k *apikey.APIKey) error {
	now := time.Now().UTC()
	k.CreatedAt = now
	k.UpdatedAt = now
	m, err := apiKeyToModel(k)
	if err != nil {
		return fmt.Errorf("bastion: create api key: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create api key: %w", err)
	}
	return nil
}

func (s *Store) GetAPIKey(ctx context.Context, keyID id.APIKeyID) (*apikey.APIKey, error) {
	m := new(apiKeyModel)
	err := s.sdb.NewSelect(m).Where("id = ?", keyID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("api key %s: %w", keyID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get api key: %w", err)
	}
	k, err := apiKeyFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get api key: %w", err)
	}
	return k, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, orgID string) ([]*apikey.APIKey, error) {
	var models []apiKeyModel
	err := s.sdb.NewSelect(&models).
		Where("organization_id = ?", orgID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list api keys: %w", err)
	}
	result := make([]*apikey.APIKey, len(models))
	for i := range models {
		k, err := apiKeyFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list api keys: %w", err)
		}
		result[i] = k
	}
	return result, nil
}

func (s *Store) DeactivateAPIKey(ctx context.Context, keyID id.APIKeyID) error {
	res, err := s.sdb.NewUpdate((*apiKeyModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", keyID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: deactivate api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // zero on error is treated as missing
		return fmt.Errorf("api key %s: %w", keyID, store.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if _, err := s.sdb.NewInsert(grantToModel(g)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create grant: %w", err)
	}
	return nil
}

func (s *Store) HasActiveGrant(ctx context.Context, orgID, userID, key string, now time.Time) (bool, error) {
	count, err := s.sdb.NewSelect((*grantModel)(nil)).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID).
		Where("permission_key = ?", key).
		Where("expires_at > ?", now).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("bastion: has active grant: %w", err)
	}
	return count > 0, nil
}

func (s *Store) ListActiveGrants(ctx context.Context, orgID, userID string, now time.Time) ([]*grant.Grant, error) {
	var models []grantModel
	err := s.sdb.NewSelect(&models).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID).
		Where("expires_at > ?", now).
		OrderExpr("expires_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list active grants: %w", err)
	}
	return grantsFromModels(models), nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.OrganizationID != "" {
			q = q.Where("organization_id = ?", filter.OrganizationID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if !filter.RequestID.IsNil() {
			q = q.Where("request_id = ?", filter.RequestID.String())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list grants: %w", err)
	}
	return grantsFromModels(models), nil
}

func (s *Store) DeleteGrant(ctx context.Context, grantID id.GrantID) error {
	res, err := s.sdb.NewDelete((*grantModel)(nil)).
		Where("id = ?", grantID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete grant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // zero on error is treated as missing
		return fmt.Errorf("grant %s: %w", grantID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteExpiredGrants(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*grantModel)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: delete expired grants: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bastion: delete expired grants rows: %w", err)
	}
	return n, nil
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
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = r.CreatedAt
	m, err := accessRequestToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: create access request: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create access request: %w", err)
	}
	return nil
}

func (s *Store) GetAccessRequest(ctx context.Context, reqID id.AccessRequestID) (*accessrequest.Request, error) {
	m := new(accessRequestModel)
	err := s.sdb.NewSelect(m).Where("id = ?", reqID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("access request %s: %w", reqID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get access request: %w", err)
	}
	r, err := accessRequestFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get access request: %w", err)
	}
	return r, nil
}

func (s *Store) ListAccessRequests(ctx context.Context, filter *accessrequest.ListFilter) ([]*accessrequest.Request, error) {
	var models []accessRequestModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at DESC")
	if filter != nil {
		if filter.OrganizationID != "" {
			q = q.Where("organization_id = ?", filter.OrganizationID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list access requests: %w", err)
	}
	result := make([]*accessrequest.Request, len(models))
	for i := range models {
		r, err := accessRequestFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list access requests: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

// ApproveAccessRequest flips a pending request to approved and inserts its
// grants in one transaction. The status guard in the UPDATE makes a second
// approval match zero rows.
func (s *Store) ApproveAccessRequest(ctx context.Context, a *accessrequest.Approval) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	res, err := tx.NewUpdate((*accessRequestModel)(nil)).
		Set("status = ?", string(accessrequest.StatusApproved)).
		Set("approver_id = ?", a.ApproverID).
		Set("approved_at = ?", a.ApprovedAt).
		Set("expires_at = ?", a.ExpiresAt).
		Set("updated_at = ?", a.ApprovedAt).
		Where("id = ?", a.RequestID.String()).
		Where("status = ?", string(accessrequest.StatusPending)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: approve access request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bastion: approve access request rows: %w", err)
	}
	if n == 0 {
		return s.requestStateError(ctx, a.RequestID)
	}

	if len(a.Grants) > 0 {
		models := make([]grantModel, len(a.Grants))
		for i, g := range a.Grants {
			models[i] = *grantToModel(g)
		}
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("bastion: insert grants: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DenyAccessRequest(ctx context.Context, reqID id.AccessRequestID, approverID string, at time.Time) error {
	res, err := s.sdb.NewUpdate((*accessRequestModel)(nil)).
		Set("status = ?", string(accessrequest.StatusDenied)).
		Set("approver_id = ?", approverID).
		Set("denied_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", reqID.String()).
		Where("status = ?", string(accessrequest.StatusPending)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: deny access request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bastion: deny access request rows: %w", err)
	}
	if n == 0 {
		return s.requestStateError(ctx, reqID)
	}
	return nil
}

// requestStateError explains why a guarded status update matched nothing.
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
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	m, err := scopeRuleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: put scope rule: %w", err)
	}
	_, err = s.sdb.NewInsert(m).
		OnConflict("(organization_id, subject_type, subject_key) DO UPDATE SET constraints = excluded.constraints, updated_at = excluded.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: put scope rule: %w", err)
	}

	stored := new(scopeRuleModel)
	err = s.sdb.NewSelect(stored).
		Where("organization_id = ?", r.OrganizationID).
		Where("subject_type = ?", string(r.SubjectType)).
		Where("subject_key = ?", r.SubjectKey).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("bastion: put scope rule: %w", err)
	}
	r.ID, _ = id.ParseScopeRuleID(stored.ID) //nolint:errcheck // stored IDs are always valid
	r.CreatedAt = stored.CreatedAt
	return nil
}

func (s *Store) GetScopeRule(ctx context.Context, ruleID id.ScopeRuleID) (*scoperule.Rule, error) {
	m := new(scopeRuleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", ruleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("scope rule %s: %w", ruleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("bastion: get scope rule: %w", err)
	}
	r, err := scopeRuleFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion: get scope rule: %w", err)
	}
	return r, nil
}

func (s *Store) ListScopeRulesFor(ctx context.Context, orgID string, subjectType scoperule.SubjectType, keys []string) ([]*scoperule.Rule, error) {
	if len(keys) == 0 {
		return []*scoperule.Rule{}, nil
	}
	var models []scopeRuleModel
	err := s.sdb.NewSelect(&models).
		Where("organization_id = ?", orgID).
		Where("subject_type = ?", string(subjectType)).
		Where("subject_key IN (?)", keys).
		OrderExpr("subject_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list scope rules for subject: %w", err)
	}
	return scopeRulesFromModels(models)
}

func (s *Store) ListScopeRules(ctx context.Context, filter *scoperule.ListFilter) ([]*scoperule.Rule, error) {
	var models []scopeRuleModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.OrganizationID != "" {
			q = q.Where("organization_id = ?", filter.OrganizationID)
		}
		if filter.SubjectType != "" {
			q = q.Where("subject_type = ?", string(filter.SubjectType))
		}
		if filter.SubjectKey != "" {
			q = q.Where("subject_key = ?", filter.SubjectKey)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list scope rules: %w", err)
	}
	return scopeRulesFromModels(models)
}

func (s *Store) DeleteScopeRule(ctx context.Context, ruleID id.ScopeRuleID) error {
	_, err := s.sdb.NewDelete((*scopeRuleModel)(nil)).
		Where("id = ?", ruleID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: delete scope rule: %w", err)
	}
	return nil
}

func scopeRulesFromModels(models []scopeRuleModel) ([]*scoperule.Rule, error) {
	result := make([]*scoperule.Rule, len(models))
	for i := range models {
		r, err := scopeRuleFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: decode scope rule: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) AppendAuditRecord(ctx context.Context, r *auditlog.Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m, err := auditRecordToModel(r)
	if err != nil {
		return fmt.Errorf("bastion: append audit record: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: append audit record: %w", err)
	}
	return nil
}

func (s *Store) ListAuditRecords(ctx context.Context, filter *auditlog.QueryFilter) ([]*auditlog.Record, error) {
	var models []auditRecordModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if filter != nil {
		if filter.OrganizationID != "" {
			q = q.Where("organization_id = ?", filter.OrganizationID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.APIKeyID != "" {
			q = q.Where("api_key_id = ?", filter.APIKeyID)
		}
		if filter.Decision != "" {
			q = q.Where("decision = ?", filter.Decision)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list audit records: %w", err)
	}
	result := make([]*auditlog.Record, len(models))
	for i := range models {
		r, err := auditRecordFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("bastion: list audit records: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountAuditRecords(ctx context.Context, filter *auditlog.QueryFilter) (int64, error) {
	q := s.sdb.NewSelect((*auditRecordModel)(nil))
	if filter != nil {
		if filter.OrganizationID != "" {
			q = q.Where("organization_id = ?", filter.OrganizationID)
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.APIKeyID != "" {
			q = q.Where("api_key_id = ?", filter.APIKeyID)
		}
		if filter.Decision != "" {
			q = q.Where("decision = ?", filter.Decision)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count audit records: %w", err)
	}
	return count, nil
}
