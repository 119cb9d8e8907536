package sqlite

import (
	"encoding/json"
	"fmt"
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
	ID              string     `grove:"id,pk"`
	OrganizationID  string     `grove:"organization_id,notnull"`
	FeatureKey      string     `grove:"feature_key,notnull"`
	PlanTier        string     `grove:"plan_tier"`
	IsActive        bool       `grove:"is_active,notnull"`
	ActivatedAt     time.Time  `grove:"activated_at,notnull"`
	DeactivatedAt   *time.Time `grove:"deactivated_at"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
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
	ID              string    `grove:"id,pk"`
	OrganizationID  string    `grove:"organization_id,notnull"`
	UserID          string    `grove:"user_id,notnull"`
	Role            string    `grove:"role,notnull"`
	Status          string    `grove:"status,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
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
	ID              string    `grove:"id,pk"`
	OrganizationID  string    `grove:"organization_id,notnull"`
	RoleKey         string    `grove:"role_key,notnull"`
	Label           string    `grove:"label"`
	Permissions     string    `grove:"permissions"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func customRoleToModel(r *role.CustomRole) (*customRoleModel, error) {
	perms, err := marshalStrings(r.Permissions)
	if err != nil {
		return nil, fmt.Errorf("marshal custom role permissions: %w", err)
	}
	return &customRoleModel{
		ID:             r.ID.String(),
		OrganizationID: r.OrganizationID,
		RoleKey:        r.Key,
		Label:          r.Label,
		Permissions:    perms,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func customRoleFromModel(m *customRoleModel) (*role.CustomRole, error) {
	rid, _ := id.ParseCustomRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	perms, err := unmarshalStrings(m.Permissions)
	if err != nil {
		return nil, fmt.Errorf("unmarshal custom role permissions: %w", err)
	}
	return &role.CustomRole{
		ID:             rid,
		OrganizationID: m.OrganizationID,
		Key:            m.RoleKey,
		Label:          m.Label,
		Permissions:    perms,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

type roleBindingModel struct {
	grove.BaseModel `grove:"table:bastion_role_bindings"`
	ID              string    `grove:"id,pk"`
	OrganizationID  string    `grove:"organization_id,notnull"`
	UserID          string    `grove:"user_id,notnull"`
	CustomRoleID    string    `grove:"custom_role_id,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
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
	ID              string     `grove:"id,pk"`
	OrganizationID  string     `grove:"organization_id,notnull"`
	Name            string     `grove:"name"`
	Scopes          string     `grove:"scopes"` // JSON text
	IsActive        bool       `grove:"is_active,notnull"`
	ExpiresAt       *time.Time `grove:"expires_at"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
}

func apiKeyToModel(k *apikey.APIKey) (*apiKeyModel, error) {
	scopes, err := marshalStrings(k.Scopes)
	if err != nil {
		return nil, fmt.Errorf("marshal api key scopes: %w", err)
	}
	return &apiKeyModel{
		ID:             k.ID.String(),
		OrganizationID: k.OrganizationID,
		Name:           k.Name,
		Scopes:         scopes,
		IsActive:       k.IsActive,
		ExpiresAt:      k.ExpiresAt,
		CreatedAt:      k.CreatedAt,
		UpdatedAt:      k.UpdatedAt,
	}, nil
}

func apiKeyFromModel(m *apiKeyModel) (*apikey.APIKey, error) {
	kid, _ := id.ParseAPIKeyID(m.ID) //nolint:errcheck // stored IDs are always valid
	scopes, err := unmarshalStrings(m.Scopes)
	if err != nil {
		return nil, fmt.Errorf("unmarshal api key scopes: %w", err)
	}
	return &apikey.APIKey{
		ID:             kid,
		OrganizationID: m.OrganizationID,
		Name:           m.Name,
		Scopes:         scopes,
		IsActive:       m.IsActive,
		ExpiresAt:      m.ExpiresAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Grant model
// ──────────────────────────────────────────────────

type grantModel struct {
	grove.BaseModel `grove:"table:bastion_grants"`
	ID              string    `grove:"id,pk"`
	OrganizationID  string    `grove:"organization_id,notnull"`
	UserID          string    `grove:"user_id,notnull"`
	PermissionKey   string    `grove:"permission_key,notnull"`
	ExpiresAt       time.Time `grove:"expires_at,notnull"`
	RequestID       *string   `grove:"request_id"`
	GrantedBy       string    `grove:"granted_by"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
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
	ID              string     `grove:"id,pk"`
	OrganizationID  string     `grove:"organization_id,notnull"`
	UserID          string     `grove:"user_id,notnull"`
	PermissionKeys  string     `grove:"permission_keys,notnull"` // JSON text
	Reason          string     `grove:"reason"`
	Status          string     `grove:"status,notnull"`
	DurationHours   int        `grove:"duration_hours,notnull"`
	ApproverID      string     `grove:"approver_id"`
	ApprovedAt      *time.Time `grove:"approved_at"`
	DeniedAt        *time.Time `grove:"denied_at"`
	ExpiresAt       time.Time  `grove:"expires_at,notnull"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
}

func accessRequestToModel(r *accessrequest.Request) (*accessRequestModel, error) {
	keys, err := marshalStrings(r.PermissionKeys)
	if err != nil {
		return nil, fmt.Errorf("marshal access request keys: %w", err)
	}
	return &accessRequestModel{
		ID:             r.ID.String(),
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		PermissionKeys: keys,
		Reason:         r.Reason,
		Status:         string(r.Status),
		DurationHours:  r.DurationHours,
		ApproverID:     r.ApproverID,
		ApprovedAt:     r.ApprovedAt,
		DeniedAt:       r.DeniedAt,
		ExpiresAt:      r.ExpiresAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func accessRequestFromModel(m *accessRequestModel) (*accessrequest.Request, error) {
	rid, _ := id.ParseAccessRequestID(m.ID) //nolint:errcheck // stored IDs are always valid
	keys, err := unmarshalStrings(m.PermissionKeys)
	if err != nil {
		return nil, fmt.Errorf("unmarshal access request keys: %w", err)
	}
	return &accessrequest.Request{
		ID:             rid,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		PermissionKeys: keys,
		Reason:         m.Reason,
		Status:         accessrequest.Status(m.Status),
		DurationHours:  m.DurationHours,
		ApproverID:     m.ApproverID,
		ApprovedAt:     m.ApprovedAt,
		DeniedAt:       m.DeniedAt,
		ExpiresAt:      m.ExpiresAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Scope rule model
// ──────────────────────────────────────────────────

type scopeRuleModel struct {
	grove.BaseModel `grove:"table:bastion_scope_rules"`
	ID              string    `grove:"id,pk"`
	OrganizationID  string    `grove:"organization_id,notnull"`
	SubjectType     string    `grove:"subject_type,notnull"`
	SubjectKey      string    `grove:"subject_key,notnull"`
	Constraints     string    `grove:"constraints,notnull"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func scopeRuleToModel(r *scoperule.Rule) (*scopeRuleModel, error) {
	constraints, err := json.Marshal(r.Constraints)
	if err != nil {
		return nil, fmt.Errorf("marshal scope rule constraints: %w", err)
	}
	return &scopeRuleModel{
		ID:             r.ID.String(),
		OrganizationID: r.OrganizationID,
		SubjectType:    string(r.SubjectType),
		SubjectKey:     r.SubjectKey,
		Constraints:    string(constraints),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func scopeRuleFromModel(m *scopeRuleModel) (*scoperule.Rule, error) {
	rid, _ := id.ParseScopeRuleID(m.ID) //nolint:errcheck // stored IDs are always valid
	var constraints map[string][]string
	if m.Constraints != "" {
		if err := json.Unmarshal([]byte(m.Constraints), &constraints); err != nil {
			return nil, fmt.Errorf("unmarshal scope rule constraints: %w", err)
		}
	}
	return &scoperule.Rule{
		ID:             rid,
		OrganizationID: m.OrganizationID,
		SubjectType:    scoperule.SubjectType(m.SubjectType),
		SubjectKey:     m.SubjectKey,
		Constraints:    constraints,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Audit record model
// ──────────────────────────────────────────────────

type auditRecordModel struct {
	grove.BaseModel `grove:"table:bastion_audit_records"`
	ID              string    `grove:"id,pk"`
	OrganizationID  string    `grove:"organization_id,notnull"`
	UserID          string    `grove:"user_id"`
	APIKeyID        string    `grove:"api_key_id"`
	EntitlementKey  string    `grove:"entitlement_key"`
	PermissionKey   string    `grove:"permission_key"`
	Resource        string    `grove:"resource"`
	Action          string    `grove:"action"`
	Attributes      string    `grove:"attributes"` // JSON text
	Allowed         bool      `grove:"allowed,notnull"`
	Decision        string    `grove:"decision,notnull"`
	Reason          string    `grove:"reason"`
	RequestIP       string    `grove:"request_ip"`
	UserAgent       string    `grove:"user_agent"`
	TraceID         string    `grove:"trace_id"`
	EvalTimeNs      int64     `grove:"eval_time_ns,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func auditRecordToModel(r *auditlog.Record) (*auditRecordModel, error) {
	attrs, err := json.Marshal(r.Attributes)
	if err != nil {
		return nil, fmt.Errorf("marshal audit attributes: %w", err)
	}
	return &auditRecordModel{
		ID:             r.ID.String(),
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		APIKeyID:       r.APIKeyID,
		EntitlementKey: r.EntitlementKey,
		PermissionKey:  r.PermissionKey,
		Resource:       r.Resource,
		Action:         r.Action,
		Attributes:     string(attrs),
		Allowed:        r.Allowed,
		Decision:       r.Decision,
		Reason:         r.Reason,
		RequestIP:      r.RequestIP,
		UserAgent:      r.UserAgent,
		TraceID:        r.TraceID,
		EvalTimeNs:     r.EvalTimeNs,
		CreatedAt:      r.CreatedAt,
	}, nil
}

func auditRecordFromModel(m *auditRecordModel) (*auditlog.Record, error) {
	aid, _ := id.ParseAuditRecordID(m.ID) //nolint:errcheck // stored IDs are always valid
	var attrs map[string]any
	if m.Attributes != "" && m.Attributes != "null" {
		if err := json.Unmarshal([]byte(m.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("unmarshal audit attributes: %w", err)
		}
	}
	return &auditlog.Record{
		ID:             aid,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		APIKeyID:       m.APIKeyID,
		EntitlementKey: m.EntitlementKey,
		PermissionKey:  m.PermissionKey,
		Resource:       m.Resource,
		Action:         m.Action,
		Attributes:     attrs,
		Allowed:        m.Allowed,
		Decision:       m.Decision,
		Reason:         m.Reason,
		RequestIP:      m.RequestIP,
		UserAgent:      m.UserAgent,
		TraceID:        m.TraceID,
		EvalTimeNs:     m.EvalTimeNs,
		CreatedAt:      m.CreatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// JSON helpers
// ──────────────────────────────────────────────────

func marshalStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalStrings(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}
