package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/apikey"
	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/entitlement"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/scoperule"
)

// ──────────────────────────────────────────────────
// Entitlement model
// ──────────────────────────────────────────────────

type entitlementModel struct {
	grove.BaseModel `grove:"table:bastion_entitlements"`
	ID              string     `grove:"id,pk" bson:"_id"`
	OrganizationID  string     `grove:"organization_id" bson:"organization_id"`
	FeatureKey      string     `grove:"feature_key" bson:"feature_key"`
	PlanTier        string     `grove:"plan_tier" bson:"plan_tier"`
	IsActive        bool       `grove:"is_active" bson:"is_active"`
	ActivatedAt     time.Time  `grove:"activated_at" bson:"activated_at"`
	DeactivatedAt   *time.Time `grove:"deactivated_at" bson:"deactivated_at,omitempty"`
	CreatedAt       time.Time  `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `grove:"updated_at" bson:"updated_at"`
}

func entitlementToModel(e *entitlement.Entitlement) *entitlementModel {
	return &entitlementModel{
		ID:             e.ID.String(),
		OrganizationID: e.OrganizationID,
		FeatureKey:     e.FeatureKey,
		PlanTier:       e.PlanTier,
		IsActive:       e.IsActive,
		ActivatedAt:    e.ActivatedAt,
		DeactivatedAt:  e.DeactivatedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func entitlementFromModel(m *entitlementModel) *entitlement.Entitlement {
	eid, _ := id.ParseEntitlementID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &entitlement.Entitlement{
		ID:             eid,
		OrganizationID: m.OrganizationID,
		FeatureKey:     m.FeatureKey,
		PlanTier:       m.PlanTier,
		IsActive:       m.IsActive,
		ActivatedAt:    m.ActivatedAt,
		DeactivatedAt:  m.DeactivatedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Membership model
// ──────────────────────────────────────────────────

type membershipModel struct {
	grove.BaseModel `grove:"table:bastion_memberships"`
	ID              string    `grove:"id,pk" bson:"_id"`
	OrganizationID  string    `grove:"organization_id" bson:"organization_id"`
	UserID          string    `grove:"user_id" bson:"user_id"`
	Role            string    `grove:"role" bson:"role"`
	Status          string    `grove:"status" bson:"status"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at" bson:"updated_at"`
}

func membershipToModel(m *membership.Membership) *membershipModel {
	return &membershipModel{
		ID:             m.ID.String(),
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Role:           m.Role,
		Status:         string(m.Status),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func membershipFromModel(m *membershipModel) *membership.Membership {
	mid, _ := id.ParseMembershipID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &membership.Membership{
		ID:             mid,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Role:           m.Role,
		Status:         membership.Status(m.Status),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Custom role models
// ──────────────────────────────────────────────────

type customRoleModel struct {
	grove.BaseModel `grove:"table:bastion_custom_roles"`
	ID              string    `grove:"id,pk" bson:"_id"`
	OrganizationID  string    `grove:"organization_id" bson:"organization_id"`
	RoleKey         string    `grove:"role_key" bson:"role_key"`
	Label           string    `grove:"label" bson:"label"`
	Permissions     []string  `grove:"permissions" bson:"permissions"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at" bson:"updated_at"`
}

func customRoleToModel(r *role.CustomRole) *customRoleModel {
	return &customRoleModel{
		ID:             r.ID.String(),
		OrganizationID: r.OrganizationID,
		RoleKey:        r.Key,
		Label:          r.Label,
		Permissions:    nonNil(r.Permissions),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func customRoleFromModel(m *customRoleModel) *role.CustomRole {
	rid, _ := id.ParseCustomRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &role.CustomRole{
		ID:             rid,
		OrganizationID: m.OrganizationID,
		Key:            m.RoleKey,
		Label:          m.Label,
		Permissions:    nonNil(m.Permissions),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type roleBindingModel struct {
	grove.BaseModel `grove:"table:bastion_role_bindings"`
	ID              string    `grove:"id,pk" bson:"_id"`
	OrganizationID  string    `grove:"organization_id" bson:"organization_id"`
	UserID          string    `grove:"user_id" bson:"user_id"`
	CustomRoleID    string    `grove:"custom_role_id" bson:"custom_role_id"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
}

func roleBindingToModel(b *role.Binding) *roleBindingModel {
	return &roleBindingModel{
		ID:             b.ID.String(),
		OrganizationID: b.OrganizationID,
		UserID:         b.UserID,
		CustomRoleID:   b.CustomRoleID.String(),
		CreatedAt:      b.CreatedAt,
	}
}

// ──────────────────────────────────────────────────
// API key model
// ──────────────────────────────────────────────────

type apiKeyModel struct {
	grove.BaseModel `grove:"table:bastion_api_keys"`
	ID              string     `grove:"id,pk" bson:"_id"`
	OrganizationID  string     `grove:"organization_id" bson:"organization_id"`
	Name            string     `grove:"name" bson:"name"`
	Scopes          []string   `grove:"scopes" bson:"scopes"`
	IsActive        bool       `grove:"is_active" bson:"is_active"`
	ExpiresAt       *time.Time `grove:"expires_at" bson:"expires_at,omitempty"`
	CreatedAt       time.Time  `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `grove:"updated_at" bson:"updated_at"`
}

func apiKeyToModel(k *apikey.APIKey) *apiKeyModel {
	return &apiKeyModel{
		ID:             k.ID.String(),
		OrganizationID: k.OrganizationID,
		Name:           k.Name,
		Scopes:         nonNil(k.Scopes),
		IsActive:       k.IsActive,
		ExpiresAt:      k.ExpiresAt,
		CreatedAt:      k.CreatedAt,
		UpdatedAt:      k.UpdatedAt,
	}
}

func apiKeyFromModel(m *apiKeyModel) *apikey.APIKey {
	kid, _ := id.ParseAPIKeyID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &apikey.APIKey{
		ID:             kid,
		OrganizationID: m.OrganizationID,
		Name:           m.Name,
		Scopes:         nonNil(m.Scopes),
		IsActive:       m.IsActive,
		ExpiresAt:      m.ExpiresAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Grant model
// ──────────────────────────────────────────────────

type grantModel struct {
	grove.BaseModel `grove:"table:bastion_grants"`
	ID              string    `grove:"id,pk" bson:"_id"`
	OrganizationID  string    `grove:"organization_id" bson:"organization_id"`
	UserID          string    `grove:"user_id" bson:"user_id"`
	PermissionKey   string    `grove:"permission_key" bson:"permission_key"`
	ExpiresAt       time.Time `grove:"expires_at" bson:"expires_at"`
	RequestID       *string   `grove:"request_id" bson:"request_id,omitempty"`
	GrantedBy       string    `grove:"granted_by" bson:"granted_by"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
}

func grantToModel(g *grant.Grant) *grantModel {
	m := &grantModel{
		ID:             g.ID.String(),
		OrganizationID: g.OrganizationID,
		UserID:         g.UserID,
		PermissionKey:  g.PermissionKey,
		ExpiresAt:      g.ExpiresAt,
		GrantedBy:      g.GrantedBy,
		CreatedAt:      g.CreatedAt,
	}
	if !g.RequestID.IsNil() {
		s := g.RequestID.String()
		m.RequestID = &s
	}
	return m
}

func grantFromModel(m *grantModel) *grant.Grant {
	gid, _ := id.ParseGrantID(m.ID) //nolint:errcheck // stored IDs are always valid
	g := &grant.Grant{
		ID:             gid,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		PermissionKey:  m.PermissionKey,
		ExpiresAt:      m.ExpiresAt,
		GrantedBy:      m.GrantedBy,
		CreatedAt:      m.CreatedAt,
	}
	if m.RequestID != nil {
		g.RequestID, _ = id.ParseAccessRequestID(*m.RequestID) //nolint:errcheck // stored IDs are always valid
	}
	return g
}

// ──────────────────────────────────────────────────
// Access request model
// ──────────────────────────────────────────────────

type accessRequestModel struct {
	grove.BaseModel `grove:"table:bastion_access_requests"`
	ID              string     `grove:"id,pk" bson:"_id"`
	OrganizationID  string     `grove:"organization_id" bson:"organization_id"`
	UserID          string     `grove:"user_id" bson:"user_id"`
	PermissionKeys  []string   `grove:"permission_keys" bson:"permission_keys"`
	Reason          string     `grove:"reason" bson:"reason"`
	Status          string     `grove:"status" bson:"status"`
	DurationHours   int        `grove:"duration_hours" bson:"duration_hours"`
	ApproverID      string     `grove:"approver_id" bson:"approver_id"`
	ApprovedAt      *time.Time `grove:"approved_at" bson:"approved_at,omitempty"`
	DeniedAt        *time.Time `grove:"denied_at" bson:"denied_at,omitempty"`
	ExpiresAt       time.Time  `grove:"expires_at" bson:"expires_at"`
	CreatedAt       time.Time  `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `grove:"updated_at" bson:"updated_at"`
}

func accessRequestToModel(r *accessrequest.Request) *accessRequestModel {
	return &accessRequestModel{
		ID:             r.ID.String(),
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		PermissionKeys: nonNil(r.PermissionKeys),
		Reason:         r.Reason,
		Status:         string(r.Status),
		DurationHours:  r.DurationHours,
		ApproverID:     r.ApproverID,
		ApprovedAt:     r.ApprovedAt,
		DeniedAt:       r.DeniedAt,
		ExpiresAt:      r.ExpiresAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func accessRequestFromModel(m *accessRequestModel) *accessrequest.Request {
	rid, _ := id.ParseAccessRequestID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &accessrequest.Request{
		ID:             rid,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		PermissionKeys: nonNil(m.PermissionKeys),
		Reason:         m.Reason,
		Status:         accessrequest.Status(m.Status),
		DurationHours:  m.DurationHours,
		ApproverID:     m.ApproverID,
		ApprovedAt:     m.ApprovedAt,
		DeniedAt:       m.DeniedAt,
		ExpiresAt:      m.ExpiresAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Scope rule model
// ──────────────────────────────────────────────────

type scopeRuleModel struct {
	grove.BaseModel `grove:"table:bastion_scope_rules"`
	ID              string              `grove:"id,pk" bson:"_id"`
	OrganizationID  string              `grove:"organization_id" bson:"organization_id"`
	SubjectType     string              `grove:"subject_type" bson:"subject_type"`
	SubjectKey      string              `grove:"subject_key" bson:"subject_key"`
	Constraints     map[string][]string `grove:"constraints" bson:"constraints,omitempty"`
	CreatedAt       time.Time           `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time           `grove:"updated_at" bson:"updated_at"`
}

func scopeRuleToModel(r *scoperule.Rule) *scopeRuleModel {
	return &scopeRuleModel{
		ID:             r.ID.String(),
		OrganizationID: r.OrganizationID,
		SubjectType:    string(r.SubjectType),
		SubjectKey:     r.SubjectKey,
		Constraints:    r.Constraints,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func scopeRuleFromModel(m *scopeRuleModel) *scoperule.Rule {
	rid, _ := id.ParseScopeRuleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &scoperule.Rule{
		ID:             rid,
		OrganizationID: m.OrganizationID,
		SubjectType:    scoperule.SubjectType(m.SubjectType),
		SubjectKey:     m.SubjectKey,
		Constraints:    m.Constraints,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Audit record model
// ──────────────────────────────────────────────────

type auditRecordModel struct {
	grove.BaseModel `grove:"table:bastion_audit_records"`
	ID              string         `grove:"id,pk" bson:"_id"`
	OrganizationID  string         `grove:"organization_id" bson:"organization_id"`
	UserID          string         `grove:"user_id" bson:"user_id"`
	APIKeyID        string         `grove:"api_key_id" bson:"api_key_id"`
	EntitlementKey  string         `grove:"entitlement_key" bson:"entitlement_key"`
	PermissionKey   string         `grove:"permission_key" bson:"permission_key"`
	Resource        string         `grove:"resource" bson:"resource"`
	Action          string         `grove:"action" bson:"action"`
	Attributes      map[string]any `grove:"attributes" bson:"attributes,omitempty"`
	Allowed         bool           `grove:"allowed" bson:"allowed"`
	Decision        string         `grove:"decision" bson:"decision"`
	Reason          string         `grove:"reason" bson:"reason"`
	RequestIP       string         `grove:"request_ip" bson:"request_ip"`
	UserAgent       string         `grove:"user_agent" bson:"user_agent"`
	TraceID         string         `grove:"trace_id" bson:"trace_id"`
	EvalTimeNs      int64          `grove:"eval_time_ns" bson:"eval_time_ns"`
	CreatedAt       time.Time      `grove:"created_at" bson:"created_at"`
}

func auditRecordToModel(r *auditlog.Record) *auditRecordModel {
	return &auditRecordModel{
		ID:             r.ID.String(),
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		APIKeyID:       r.APIKeyID,
		EntitlementKey: r.EntitlementKey,
		PermissionKey:  r.PermissionKey,
		Resource:       r.Resource,
		Action:         r.Action,
		Attributes:     r.Attributes,
		Allowed:        r.Allowed,
		Decision:       r.Decision,
		Reason:         r.Reason,
		RequestIP:      r.RequestIP,
		UserAgent:      r.UserAgent,
		TraceID:        r.TraceID,
		EvalTimeNs:     r.EvalTimeNs,
		CreatedAt:      r.CreatedAt,
	}
}

func auditRecordFromModel(m *auditRecordModel) *auditlog.Record {
	aid, _ := id.ParseAuditRecordID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &auditlog.Record{
		ID:             aid,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		APIKeyID:       m.APIKeyID,
		EntitlementKey: m.EntitlementKey,
		PermissionKey:  m.PermissionKey,
		Resource:       m.Resource,
		Action:         m.Action,
		Attributes:     m.Attributes,
		Allowed:        m.Allowed,
		Decision:       m.Decision,
		Reason:         m.Reason,
		RequestIP:      m.RequestIP,
		UserAgent:      m.UserAgent,
		TraceID:        m.TraceID,
		EvalTimeNs:     m.EvalTimeNs,
		CreatedAt:      m.CreatedAt,
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
