package api

import (
	"net/http"

	"github.com/xraph/forge"
)

func (a *API) registerIntrospectionRoutes(router forge.Router) error {
	g := router.Group("/v1/organizations", forge.WithGroupTags("introspection"))

	if err := g.GET("/:orgId/users/:userId/permissions", a.userPermissions,
		forge.WithSummary("Effective user permissions"),
		forge.WithDescription("Returns the sorted union of role, custom role and unexpired grant permissions."),
		forge.WithOperationID("getUserPermissions"),
		forge.WithResponseSchema(http.StatusOK, "Permission keys", []string{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/:orgId/entitlements", a.orgEntitlements,
		forge.WithSummary("Active organization entitlements"),
		forge.WithOperationID("getOrganizationEntitlements"),
		forge.WithResponseSchema(http.StatusOK, "Feature keys", []string{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) userPermissions(ctx forge.Context, _ *UserPermissionsRequest) ([]string, error) {
	keys, err := a.eng.GetUserPermissions(ctx.Context(), ctx.Param("orgId"), ctx.Param("userId"))
	if err != nil {
		return nil, mapError(err)
	}
	return keys, ctx.JSON(http.StatusOK, keys)
}

func (a *API) orgEntitlements(ctx forge.Context, _ *OrgRequest) ([]string, error) {
	keys, err := a.eng.GetOrganizationEntitlements(ctx.Context(), ctx.Param("orgId"))
	if err != nil {
		return nil, mapError(err)
	}
	return keys, ctx.JSON(http.StatusOK, keys)
}
