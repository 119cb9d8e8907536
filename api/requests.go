package api

// ──────────────────────────────────────────────────
// Decision requests
// ──────────────────────────────────────────────────

// CheckRequest is the request body for an access decision.
type CheckRequest struct {
	OrganizationID string         `json:"organization_id" description:"Organization the request acts within"`
	UserID         string         `json:"user_id,omitempty" description:"User principal (exclusive with api_key_id)"`
	APIKeyID       string         `json:"api_key_id,omitempty" description:"API key principal (exclusive with user_id)"`
	EntitlementKey string         `json:"entitlement_key,omitempty" description:"Feature the organization must have enabled"`
	PermissionKey  string         `json:"permission_key,omitempty" description:"Permission the principal must hold"`
	Resource       string         `json:"resource,omitempty" description:"Resource label recorded in the audit log"`
	Action         string         `json:"action,omitempty" description:"Action label recorded in the audit log"`
	Attributes     map[string]any `json:"attributes,omitempty" description:"Request attributes checked against scope rules"`
	TraceID        string         `json:"trace_id,omitempty" description:"Caller trace identifier"`
}

// ──────────────────────────────────────────────────
// Elevation requests
// ──────────────────────────────────────────────────

// RequestAccessRequest is the body for filing an elevation request.
type RequestAccessRequest struct {
	OrganizationID string   `json:"organization_id" description:"Organization ID"`
	UserID         string   `json:"user_id" description:"Requesting user"`
	PermissionKeys []string `json:"permission_keys" description:"Permission keys requested"`
	Reason         string   `json:"reason,omitempty" description:"Justification shown to approvers"`
	DurationHours  int      `json:"duration_hours" description:"Requested duration in hours"`
}

// ApproveAccessRequest is the body for approving an elevation request.
type ApproveAccessRequest struct {
	ApproverID    string   `json:"approver_id" description:"Approving user"`
	GrantedKeys   []string `json:"granted_keys" description:"Permission keys to grant"`
	DurationHours int      `json:"duration_hours" description:"Grant duration in hours from approval"`
}

// DenyAccessRequest is the body for denying an elevation request.
type DenyAccessRequest struct {
	ApproverID string `json:"approver_id" description:"Denying user"`
}

// GetAccessRequestRequest is the path parameter for an access request.
type GetAccessRequestRequest struct {
	RequestID string `path:"requestId" description:"Access request ID"`
}

// ListAccessRequestsRequest holds query parameters for listing access requests.
type ListAccessRequestsRequest struct {
	OrganizationID string `query:"organization_id" description:"Filter by organization"`
	UserID         string `query:"user_id" description:"Filter by user"`
	Status         string `query:"status" description:"Filter by status (pending, approved, denied)"`
	Limit          int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset         int    `query:"offset" description:"Results to skip"`
}

// ListGrantsRequest holds query parameters for listing grants.
type ListGrantsRequest struct {
	OrganizationID string `query:"organization_id" description:"Filter by organization"`
	UserID         string `query:"user_id" description:"Filter by user"`
	RequestID      string `query:"request_id" description:"Filter by originating access request"`
	Limit          int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset         int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Introspection requests
// ──────────────────────────────────────────────────

// UserPermissionsRequest is the path parameters for user introspection.
type UserPermissionsRequest struct {
	OrgID  string `path:"orgId" description:"Organization ID"`
	UserID string `path:"userId" description:"User ID"`
}

// OrgRequest is the path parameter for organization-scoped routes.
type OrgRequest struct {
	OrgID string `path:"orgId" description:"Organization ID"`
}

// ──────────────────────────────────────────────────
// Entitlement requests
// ──────────────────────────────────────────────────

// ActivateEntitlementRequest is the body for enabling a feature.
type ActivateEntitlementRequest struct {
	FeatureKey string `json:"feature_key" description:"Feature key (e.g. loads.ltl)"`
	PlanTier   string `json:"plan_tier,omitempty" description:"Plan tier that carries the feature"`
}

// FeatureRequest is the path parameters for a single entitlement.
type FeatureRequest struct {
	OrgID      string `path:"orgId" description:"Organization ID"`
	FeatureKey string `path:"featureKey" description:"Feature key"`
}

// ListEntitlementsRequest holds query parameters for listing entitlement rows.
type ListEntitlementsRequest struct {
	FeatureKey string `query:"feature_key" description:"Filter by feature key"`
	ActiveOnly bool   `query:"active_only" description:"Only return active rows"`
	Limit      int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset     int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Membership requests
// ──────────────────────────────────────────────────

// PutMembershipRequest is the body for creating or replacing a membership.
type PutMembershipRequest struct {
	Role   string `json:"role" description:"Built-in role key"`
	Status string `json:"status,omitempty" description:"active, invited or suspended (default: active)"`
}

// ListMembershipsRequest holds query parameters for listing memberships.
type ListMembershipsRequest struct {
	Role   string `query:"role" description:"Filter by role"`
	Status string `query:"status" description:"Filter by status"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Custom role requests
// ──────────────────────────────────────────────────

// CreateCustomRoleRequest is the body for creating a custom role.
type CreateCustomRoleRequest struct {
	Key         string   `json:"key" description:"Role key, unique within the organization"`
	Label       string   `json:"label,omitempty" description:"Display label"`
	Permissions []string `json:"permissions" description:"Permission keys the role adds"`
}

// SetCustomRolePermissionsRequest is the body for replacing a role's permissions.
type SetCustomRolePermissionsRequest struct {
	Permissions []string `json:"permissions" description:"Replacement permission keys"`
}

// BindCustomRoleRequest is the body for assigning a custom role to a user.
type BindCustomRoleRequest struct {
	UserID string `json:"user_id" description:"User ID"`
}

// ──────────────────────────────────────────────────
// API key requests
// ──────────────────────────────────────────────────

// CreateAPIKeyRequest is the body for issuing an API key.
type CreateAPIKeyRequest struct {
	Name      string   `json:"name" description:"Key name"`
	Scopes    []string `json:"scopes" description:"Permission keys the key may exercise"`
	ExpiresAt string   `json:"expires_at,omitempty" description:"RFC3339 expiry (omit for no expiry)"`
}

// ──────────────────────────────────────────────────
// Scope rule requests
// ──────────────────────────────────────────────────

// PutScopeRuleRequest is the body for creating or replacing a scope rule.
type PutScopeRuleRequest struct {
	SubjectType string              `json:"subject_type" description:"role or user"`
	SubjectKey  string              `json:"subject_key" description:"Role key or user ID"`
	Constraints map[string][]string `json:"constraints" description:"Attribute name to allowed values"`
}

// ListScopeRulesRequest holds query parameters for listing scope rules.
type ListScopeRulesRequest struct {
	SubjectType string `query:"subject_type" description:"Filter by subject type"`
	SubjectKey  string `query:"subject_key" description:"Filter by subject key"`
	Limit       int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset      int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// ListAuditRecordsRequest holds query parameters for querying audit records.
type ListAuditRecordsRequest struct {
	OrgID    string `path:"orgId" description:"Organization ID"`
	UserID   string `query:"user_id" description:"Filter by user"`
	APIKeyID string `query:"api_key_id" description:"Filter by API key"`
	Decision string `query:"decision" description:"Filter by decision code"`
	After    string `query:"after" description:"RFC3339 lower bound"`
	Before   string `query:"before" description:"RFC3339 upper bound"`
	Limit    int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset   int    `query:"offset" description:"Results to skip"`
}
