package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
)

func (a *API) registerElevationRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("elevation"))

	if err := g.POST("/access-requests", a.requestAccess,
		forge.WithSummary("Request temporary access"),
		forge.WithDescription("Files a pending elevation request. Nothing is granted until approval."),
		forge.WithOperationID("requestAccess"),
		forge.WithRequestSchema(RequestAccessRequest{}),
		forge.WithResponseSchema(http.StatusCreated, "Request filed", WorkflowResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/access-requests", a.listAccessRequests,
		forge.WithSummary("List access requests"),
		forge.WithOperationID("listAccessRequests"),
		forge.WithRequestSchema(ListAccessRequestsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Access request list", []*accessrequest.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/access-requests/:requestId", a.getAccessRequest,
		forge.WithSummary("Get access request"),
		forge.WithOperationID("getAccessRequest"),
		forge.WithResponseSchema(http.StatusOK, "Access request", &accessrequest.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/access-requests/:requestId/approve", a.approveAccess,
		forge.WithSummary("Approve access request"),
		forge.WithDescription("Approves a pending request and creates its grants atomically. Returns 409 if already processed."),
		forge.WithOperationID("approveAccess"),
		forge.WithRequestSchema(ApproveAccessRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Approved", WorkflowResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/access-requests/:requestId/deny", a.denyAccess,
		forge.WithSummary("Deny access request"),
		forge.WithOperationID("denyAccess"),
		forge.WithRequestSchema(DenyAccessRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Denied", WorkflowResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/grants", a.listGrants,
		forge.WithSummary("List grants"),
		forge.WithOperationID("listGrants"),
		forge.WithRequestSchema(ListGrantsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Grant list", []*grant.Grant{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/grants/:grantId", a.revokeGrant,
		forge.WithSummary("Revoke grant"),
		forge.WithDescription("Removes a temporary grant before its expiry."),
		forge.WithOperationID("revokeGrant"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) requestAccess(ctx forge.Context, req *RequestAccessRequest) (*WorkflowResponse, error) {
	r, err := a.eng.RequestTemporaryAccess(ctx.Context(),
		req.OrganizationID, req.UserID, req.PermissionKeys, req.Reason, req.DurationHours)
	if err != nil {
		return workflowFailure(ctx, err)
	}
	resp := &WorkflowResponse{Success: true, RequestID: r.ID.String()}
	return resp, ctx.JSON(http.StatusCreated, resp)
}

func (a *API) listAccessRequests(ctx forge.Context, req *ListAccessRequestsRequest) ([]*accessrequest.Request, error) {
	list, err := a.eng.ListAccessRequests(ctx.Context(), &accessrequest.ListFilter{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Status:         accessrequest.Status(req.Status),
		Limit:          defaultLimit(req.Limit),
		Offset:         req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return list, ctx.JSON(http.StatusOK, list)
}

func (a *API) getAccessRequest(ctx forge.Context, _ *GetAccessRequestRequest) (*accessrequest.Request, error) {
	reqID, err := id.ParseAccessRequestID(ctx.Param("requestId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid access request ID: %v", err))
	}
	r, err := a.eng.GetAccessRequest(ctx.Context(), reqID)
	if err != nil {
		return nil, mapError(err)
	}
	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) approveAccess(ctx forge.Context, req *ApproveAccessRequest) (*WorkflowResponse, error) {
	reqID, err := id.ParseAccessRequestID(ctx.Param("requestId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid access request ID: %v", err))
	}
	grants, err := a.eng.ApproveTemporaryAccess(ctx.Context(), reqID, req.ApproverID, req.GrantedKeys, req.DurationHours)
	if err != nil {
		return workflowFailure(ctx, err)
	}
	resp := &WorkflowResponse{Success: true, RequestID: reqID.String()}
	for _, g := range grants {
		resp.GrantIDs = append(resp.GrantIDs, g.ID.String())
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) denyAccess(ctx forge.Context, req *DenyAccessRequest) (*WorkflowResponse, error) {
	reqID, err := id.ParseAccessRequestID(ctx.Param("requestId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid access request ID: %v", err))
	}
	if err := a.eng.DenyTemporaryAccess(ctx.Context(), reqID, req.ApproverID); err != nil {
		return workflowFailure(ctx, err)
	}
	resp := &WorkflowResponse{Success: true, RequestID: reqID.String()}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listGrants(ctx forge.Context, req *ListGrantsRequest) ([]*grant.Grant, error) {
	filter := &grant.ListFilter{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Limit:          defaultLimit(req.Limit),
		Offset:         req.Offset,
	}
	if req.RequestID != "" {
		rid, err := id.ParseAccessRequestID(req.RequestID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid request_id: %v", err))
		}
		filter.RequestID = rid
	}
	grants, err := a.eng.Store().ListGrants(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	return grants, ctx.JSON(http.StatusOK, grants)
}

func (a *API) revokeGrant(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	grantID, err := id.ParseGrantID(ctx.Param("grantId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid grant ID: %v", err))
	}
	if err := a.eng.RevokeGrant(ctx.Context(), grantID); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

// workflowFailure writes a {success:false} envelope. Internal errors are
// not echoed to the caller.
func workflowFailure(ctx forge.Context, err error) (*WorkflowResponse, error) {
	status := workflowStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	resp := &WorkflowResponse{Success: false, Error: msg}
	return resp, ctx.JSON(status, resp)
}
