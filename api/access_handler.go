package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

func (a *API) registerAccessRoutes(router forge.Router) error {
	g := router.Group("/v1/access", forge.WithGroupTags("access"))

	if err := g.POST("/check", a.check,
		forge.WithSummary("Access check"),
		forge.WithDescription("Evaluates entitlement, permission and attribute checks and returns the decision."),
		forge.WithOperationID("accessCheck"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decision", CheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/enforce", a.enforce,
		forge.WithSummary("Enforce access"),
		forge.WithDescription("Returns 200 if allowed, 402 if the feature is not enabled, 403 if forbidden."),
		forge.WithOperationID("accessEnforce"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", CheckResponse{}),
		forge.WithErrorResponses(),
	)
}

// check always answers 200; the decision is in the body.
func (a *API) check(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	d := a.eng.Check(ctx.Context(), toDecisionRequest(ctx, req))
	resp := toCheckResponse(d)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) enforce(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	d := a.eng.Check(ctx.Context(), toDecisionRequest(ctx, req))
	resp := toCheckResponse(d)
	return resp, ctx.JSON(d.HTTPStatus(), resp)
}

func toDecisionRequest(ctx forge.Context, r *CheckRequest) *bastion.DecisionRequest {
	md := bastion.RequestMetadata{TraceID: r.TraceID}
	if hr := ctx.Request(); hr != nil {
		md.IP = hr.RemoteAddr
		md.UserAgent = hr.UserAgent()
	}
	return &bastion.DecisionRequest{
		OrganizationID: r.OrganizationID,
		UserID:         r.UserID,
		APIKeyID:       r.APIKeyID,
		EntitlementKey: r.EntitlementKey,
		PermissionKey:  r.PermissionKey,
		Resource:       r.Resource,
		Action:         r.Action,
		Attributes:     r.Attributes,
		Metadata:       md,
	}
}
