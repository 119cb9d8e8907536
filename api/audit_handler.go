package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/auditlog"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := router.Group("/v1/organizations", forge.WithGroupTags("audit"))

	return g.GET("/:orgId/audit-records", a.listAuditRecords,
		forge.WithSummary("Query audit records"),
		forge.WithDescription("Returns decision audit records, newest first, with optional filters."),
		forge.WithOperationID("listAuditRecords"),
		forge.WithRequestSchema(ListAuditRecordsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit record page", ListResponse[*auditlog.Record]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listAuditRecords(ctx forge.Context, req *ListAuditRecordsRequest) (*ListResponse[*auditlog.Record], error) {
	filter := &auditlog.QueryFilter{
		OrganizationID: ctx.Param("orgId"),
		UserID:         req.UserID,
		APIKeyID:       req.APIKeyID,
		Decision:       req.Decision,
		Limit:          defaultLimit(req.Limit),
		Offset:         req.Offset,
	}

	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return nil, forge.BadRequest("invalid after timestamp")
		}
		filter.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return nil, forge.BadRequest("invalid before timestamp")
		}
		filter.Before = &t
	}

	records, err := a.eng.Store().ListAuditRecords(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountAuditRecords(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*auditlog.Record]{
		Items:  records,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}
