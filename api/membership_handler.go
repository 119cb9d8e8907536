package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
)

func (a *API) registerMembershipRoutes(router forge.Router) error {
	g := router.Group("/v1/organizations", forge.WithGroupTags("memberships"))

	if err := g.PUT("/:orgId/members/:userId", a.putMembership,
		forge.WithSummary("Put membership"),
		forge.WithDescription("Creates or replaces the user's membership and built-in role."),
		forge.WithOperationID("putMembership"),
		forge.WithRequestSchema(PutMembershipRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Membership", &membership.Membership{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/:orgId/members", a.listMemberships,
		forge.WithSummary("List memberships"),
		forge.WithOperationID("listMemberships"),
		forge.WithRequestSchema(ListMembershipsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Membership list", []*membership.Membership{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/:orgId/members/:userId", a.deleteMembership,
		forge.WithSummary("Remove membership"),
		forge.WithOperationID("deleteMembership"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) putMembership(ctx forge.Context, req *PutMembershipRequest) (*membership.Membership, error) {
	if req.Role == "" {
		return nil, forge.BadRequest("role is required")
	}
	if _, ok := a.eng.Roles()[req.Role]; !ok {
		return nil, forge.BadRequest("unknown role: " + req.Role)
	}
	status := membership.Status(req.Status)
	switch status {
	case "":
		status = membership.StatusActive
	case membership.StatusActive, membership.StatusInvited, membership.StatusSuspended:
	default:
		return nil, forge.BadRequest("status must be active, invited or suspended")
	}

	now := time.Now().UTC()
	m := &membership.Membership{
		ID:             id.NewMembershipID(),
		OrganizationID: ctx.Param("orgId"),
		UserID:         ctx.Param("userId"),
		Role:           req.Role,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.eng.Store().PutMembership(ctx.Context(), m); err != nil {
		return nil, mapError(err)
	}
	return m, ctx.JSON(http.StatusOK, m)
}

func (a *API) listMemberships(ctx forge.Context, req *ListMembershipsRequest) ([]*membership.Membership, error) {
	list, err := a.eng.Store().ListMemberships(ctx.Context(), &membership.ListFilter{
		OrganizationID: ctx.Param("orgId"),
		Role:           req.Role,
		Status:         membership.Status(req.Status),
		Limit:          defaultLimit(req.Limit),
		Offset:         req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return list, ctx.JSON(http.StatusOK, list)
}

func (a *API) deleteMembership(ctx forge.Context, _ *UserPermissionsRequest) (*struct{}, error) {
	if err := a.eng.Store().DeleteMembership(ctx.Context(), ctx.Param("orgId"), ctx.Param("userId")); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}
