package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/entitlement"
	"github.com/xraph/bastion/id"
)

func (a *API) registerEntitlementRoutes(router forge.Router) error {
	g := router.Group("/v1/organizations", forge.WithGroupTags("entitlements"))

	if err := g.POST("/:orgId/entitlements", a.activateEntitlement,
		forge.WithSummary("Activate entitlement"),
		forge.WithDescription("Enables a feature for the organization. Replaces any active row for the same feature."),
		forge.WithOperationID("activateEntitlement"),
		forge.WithRequestSchema(ActivateEntitlementRequest{}),
		forge.WithCreatedResponse(&entitlement.Entitlement{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/:orgId/entitlements/:featureKey", a.deactivateEntitlement,
		forge.WithSummary("Deactivate entitlement"),
		forge.WithDescription("Disables a feature. The row is kept for history."),
		forge.WithOperationID("deactivateEntitlement"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/:orgId/entitlement-records", a.listEntitlements,
		forge.WithSummary("List entitlement records"),
		forge.WithDescription("Lists active and deactivated entitlement rows."),
		forge.WithOperationID("listEntitlements"),
		forge.WithRequestSchema(ListEntitlementsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Entitlement list", []*entitlement.Entitlement{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) activateEntitlement(ctx forge.Context, req *ActivateEntitlementRequest) (*entitlement.Entitlement, error) {
	orgID := ctx.Param("orgId")
	if req.FeatureKey == "" {
		return nil, forge.BadRequest("feature_key is required")
	}

	now := time.Now().UTC()
	e := &entitlement.Entitlement{
		ID:             id.NewEntitlementID(),
		OrganizationID: orgID,
		FeatureKey:     req.FeatureKey,
		PlanTier:       req.PlanTier,
		IsActive:       true,
		ActivatedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.eng.Store().ActivateEntitlement(ctx.Context(), e); err != nil {
		return nil, mapError(err)
	}
	return e, ctx.JSON(http.StatusCreated, e)
}

func (a *API) deactivateEntitlement(ctx forge.Context, _ *FeatureRequest) (*struct{}, error) {
	err := a.eng.Store().DeactivateEntitlement(ctx.Context(),
		ctx.Param("orgId"), ctx.Param("featureKey"), time.Now().UTC())
	if err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listEntitlements(ctx forge.Context, req *ListEntitlementsRequest) ([]*entitlement.Entitlement, error) {
	list, err := a.eng.Store().ListEntitlements(ctx.Context(), &entitlement.ListFilter{
		OrganizationID: ctx.Param("orgId"),
		FeatureKey:     req.FeatureKey,
		ActiveOnly:     req.ActiveOnly,
		Limit:          defaultLimit(req.Limit),
		Offset:         req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return list, ctx.JSON(http.StatusOK, list)
}
