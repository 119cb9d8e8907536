// Package bastion decides whether a principal acting within an organization
// may do something. A decision combines feature entitlements, permissions
// from built-in roles, custom roles and temporary grants, and attribute
// constraints. Every decision is audited.
//
//	eng, err := bastion.NewEngine(
//	    bastion.WithStore(memStore),
//	    bastion.WithRoleTable(role.Table{"broker_admin": {"load.create"}}),
//	)
//	d := eng.Check(ctx, &bastion.DecisionRequest{
//	    OrganizationID: "org1",
//	    UserID:         "u1",
//	    EntitlementKey: "loads.ltl",
//	    PermissionKey:  "load.create",
//	})
package bastion

import "net/http"

// Code classifies a decision. Every denial carries a code naming the check
// that failed.
type Code string

const (
	// CodeAllow means every requested check passed.
	CodeAllow Code = "allow"

	// CodeDenyEntitlement means the organization lacks the feature.
	CodeDenyEntitlement Code = "deny_entitlement"

	// CodeDenyPermission means the principal lacks the permission.
	CodeDenyPermission Code = "deny_permission"

	// CodeDenyAttributes means the request attributes are outside the
	// principal's scope rules.
	CodeDenyAttributes Code = "deny_attributes"

	// CodeDenyInvalidPrincipal means both or neither of user and API key
	// were supplied.
	CodeDenyInvalidPrincipal Code = "deny_invalid_principal"

	// CodeDenyInvalidRequest means the request is malformed.
	CodeDenyInvalidRequest Code = "deny_invalid_request"

	// CodeDenyInternal means a checker failed and the engine closed.
	CodeDenyInternal Code = "deny_internal"
)

// Gate status discriminators let API consumers tell "upgrade your plan"
// apart from "you lack access".
const (
	StatusFeatureNotEnabled = "feature_not_enabled"
	StatusForbidden         = "forbidden"
	StatusInvalidRequest    = "invalid_request"
)

// DecisionRequest describes one access question. Exactly one of UserID and
// APIKeyID must be set. EntitlementKey, PermissionKey and Attributes are
// each optional; only the requested checks run.
type DecisionRequest struct {
	OrganizationID string          `json:"organization_id"`
	UserID         string          `json:"user_id,omitempty"`
	APIKeyID       string          `json:"api_key_id,omitempty"`
	EntitlementKey string          `json:"entitlement_key,omitempty"`
	PermissionKey  string          `json:"permission_key,omitempty"`
	Resource       string          `json:"resource,omitempty"`
	Action         string          `json:"action,omitempty"`
	Attributes     map[string]any  `json:"attributes,omitempty"`
	Metadata       RequestMetadata `json:"metadata,omitzero"`
}

// RequestMetadata is caller context copied into the audit record.
type RequestMetadata struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// Missing identifies exactly which requested check failed.
type Missing struct {
	Entitlement string         `json:"entitlement,omitempty"`
	Permission  string         `json:"permission,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Decision is the outcome of a DecisionRequest.
type Decision struct {
	Allowed    bool     `json:"allowed"`
	Code       Code     `json:"decision"`
	Reason     string   `json:"reason,omitempty"`
	Missing    *Missing `json:"missing,omitempty"`
	AuditID    string   `json:"audit_id,omitempty"`
	EvalTimeNs int64    `json:"eval_time_ns"`
}

// Status returns the gate discriminator for a denial, or "" when allowed.
func (d *Decision) Status() string {
	switch d.Code {
	case CodeAllow:
		return ""
	case CodeDenyEntitlement:
		return StatusFeatureNotEnabled
	case CodeDenyInvalidPrincipal, CodeDenyInvalidRequest:
		return StatusInvalidRequest
	default:
		return StatusForbidden
	}
}

// HTTPStatus maps the decision to the status code a gate responds with.
func (d *Decision) HTTPStatus() int {
	switch d.Status() {
	case "":
		return http.StatusOK
	case StatusFeatureNotEnabled:
		return http.StatusPaymentRequired
	case StatusInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusForbidden
	}
}
