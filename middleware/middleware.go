// Package middleware provides the Bastion access gate as Forge middleware.
package middleware

import (
	"encoding/json"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

// Header names consulted when the Forge context carries no principal or
// organization.
const (
	HeaderAPIKeyID       = "X-API-Key-ID"
	HeaderOrganizationID = "X-Organization-ID"
	HeaderTraceID        = "X-Trace-ID"
)

// Requirement names the checks a route needs. Empty fields are skipped.
type Requirement struct {
	Entitlement string
	Permission  string
	Resource    string
	Action      string

	// Attributes extracts request attributes for scope rule checks.
	Attributes func(ctx forge.Context) map[string]any
}

// Feature is a Requirement on an entitlement only.
func Feature(key string) Requirement { return Requirement{Entitlement: key} }

// Permission is a Requirement on a permission only.
func Permission(key string) Requirement { return Requirement{Permission: key} }

// Require gates the route on req. The principal is the Forge user (from
// Authsome) or, failing that, the X-API-Key-ID header. A denial writes a
// 402 feature_not_enabled or 403 forbidden JSON body and halts the chain.
func Require(eng *bastion.Engine, req Requirement) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			d := eng.Check(ctx.Context(), decisionRequest(ctx, req))
			if !d.Allowed {
				return denyResponse(ctx, d)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if ANY of the requirements pass. On denial
// the last decision is reported.
func RequireAny(eng *bastion.Engine, reqs ...Requirement) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			var last *bastion.Decision
			for _, r := range reqs {
				d := eng.Check(ctx.Context(), decisionRequest(ctx, r))
				if d.Allowed {
					return next(ctx)
				}
				last = d
			}
			if last == nil {
				last = noRequirement()
			}
			return denyResponse(ctx, last)
		}
	}
}

// RequireAll allows the request only if ALL requirements pass. The first
// denial is reported and later requirements are not checked.
func RequireAll(eng *bastion.Engine, reqs ...Requirement) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			if len(reqs) == 0 {
				return denyResponse(ctx, noRequirement())
			}
			for _, r := range reqs {
				d := eng.Check(ctx.Context(), decisionRequest(ctx, r))
				if !d.Allowed {
					return denyResponse(ctx, d)
				}
			}
			return next(ctx)
		}
	}
}

func noRequirement() *bastion.Decision {
	return &bastion.Decision{Code: bastion.CodeDenyInvalidRequest, Reason: "No requirement configured"}
}

// decisionRequest builds the engine request from the route requirement and
// the caller identity.
func decisionRequest(ctx forge.Context, req Requirement) *bastion.DecisionRequest {
	dr := &bastion.DecisionRequest{
		EntitlementKey: req.Entitlement,
		PermissionKey:  req.Permission,
		Resource:       req.Resource,
		Action:         req.Action,
	}
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		dr.UserID = userID
	}
	if hr := ctx.Request(); hr != nil {
		if dr.UserID == "" {
			dr.APIKeyID = hr.Header.Get(HeaderAPIKeyID)
		}
		if s, ok := forge.ScopeFrom(ctx.Context()); !ok || s.OrgID() == "" {
			dr.OrganizationID = hr.Header.Get(HeaderOrganizationID)
		}
		dr.Metadata = bastion.RequestMetadata{
			IP:        hr.RemoteAddr,
			UserAgent: hr.UserAgent(),
			TraceID:   hr.Header.Get(HeaderTraceID),
		}
	}
	if req.Attributes != nil {
		dr.Attributes = req.Attributes(ctx)
	}
	return dr
}

type denyBody struct {
	Status   string           `json:"status"`
	Decision string           `json:"decision"`
	Reason   string           `json:"reason,omitempty"`
	Missing  *bastion.Missing `json:"missing,omitempty"`
}

func denyResponse(ctx forge.Context, d *bastion.Decision) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(d.HTTPStatus())
	return json.NewEncoder(ctx.Response()).Encode(denyBody{
		Status:   d.Status(),
		Decision: string(d.Code),
		Reason:   d.Reason,
		Missing:  d.Missing,
	})
}
