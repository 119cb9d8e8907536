package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

func (a *API) registerCustomRoleRoutes(router forge.Router) error {
	g := router.Group("/v1/organizations", forge.WithGroupTags("roles"))

	if err := g.POST("/:orgId/roles", a.createCustomRole,
		forge.WithSummary("Create custom role"),
		forge.WithDescription("Creates an organization role whose permissions add to its holders' built-in role."),
		forge.WithOperationID("createCustomRole"),
		forge.WithRequestSchema(CreateCustomRoleRequest{}),
		forge.WithCreatedResponse(&role.CustomRole{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/:orgId/roles", a.listCustomRoles,
		forge.WithSummary("List custom roles"),
		forge.WithOperationID("listCustomRoles"),
		forge.WithResponseSchema(http.StatusOK, "Custom role list", []*role.CustomRole{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/:orgId/roles/:roleId/permissions", a.setCustomRolePermissions,
		forge.WithSummary("Replace custom role permissions"),
		forge.WithOperationID("setCustomRolePermissions"),
		forge.WithRequestSchema(SetCustomRolePermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated role", &role.CustomRole{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/:orgId/roles/:roleId", a.deleteCustomRole,
		forge.WithSummary("Delete custom role"),
		forge.WithDescription("Deletes the role and all of its bindings."),
		forge.WithOperationID("deleteCustomRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/:orgId/roles/:roleId/members", a.bindCustomRole,
		forge.WithSummary("Assign custom role"),
		forge.WithOperationID("bindCustomRole"),
		forge.WithRequestSchema(BindCustomRoleRequest{}),
		forge.WithCreatedResponse(&role.Binding{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/:orgId/roles/:roleId/members/:userId", a.unbindCustomRole,
		forge.WithSummary("Unassign custom role"),
		forge.WithOperationID("unbindCustomRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) createCustomRole(ctx forge.Context, req *CreateCustomRoleRequest) (*role.CustomRole, error) {
	if req.Key == "" {
		return nil, forge.BadRequest("key is required")
	}
	for _, p := range req.Permissions {
		if p == "" {
			return nil, forge.BadRequest("permissions cannot contain empty keys")
		}
	}

	now := time.Now().UTC()
	r := &role.CustomRole{
		ID:             id.NewCustomRoleID(),
		OrganizationID: ctx.Param("orgId"),
		Key:            req.Key,
		Label:          req.Label,
		Permissions:    append([]string{}, req.Permissions...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.eng.Store().CreateCustomRole(ctx.Context(), r); err != nil {
		return nil, mapError(err)
	}
	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) listCustomRoles(ctx forge.Context, _ *OrgRequest) ([]*role.CustomRole, error) {
	roles, err := a.eng.Store().ListCustomRoles(ctx.Context(), ctx.Param("orgId"))
	if err != nil {
		return nil, mapError(err)
	}
	return roles, ctx.JSON(http.StatusOK, roles)
}

func (a *API) setCustomRolePermissions(ctx forge.Context, req *SetCustomRolePermissionsRequest) (*role.CustomRole, error) {
	r, err := a.orgCustomRole(ctx.Context(), ctx.Param("orgId"), ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}
	if err := a.eng.Store().SetCustomRolePermissions(ctx.Context(), r.ID, req.Permissions); err != nil {
		return nil, mapError(err)
	}
	r.Permissions = append([]string{}, req.Permissions...)
	r.UpdatedAt = time.Now().UTC()
	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) deleteCustomRole(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	r, err := a.orgCustomRole(ctx.Context(), ctx.Param("orgId"), ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}
	if err := a.eng.Store().DeleteCustomRole(ctx.Context(), r.ID); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) bindCustomRole(ctx forge.Context, req *BindCustomRoleRequest) (*role.Binding, error) {
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}
	r, err := a.orgCustomRole(ctx.Context(), ctx.Param("orgId"), ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}
	b := &role.Binding{
		ID:             id.NewRoleBindingID(),
		OrganizationID: r.OrganizationID,
		UserID:         req.UserID,
		CustomRoleID:   r.ID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.eng.Store().BindCustomRole(ctx.Context(), b); err != nil {
		return nil, mapError(err)
	}
	return b, ctx.JSON(http.StatusCreated, b)
}

func (a *API) unbindCustomRole(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	r, err := a.orgCustomRole(ctx.Context(), ctx.Param("orgId"), ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}
	if err := a.eng.Store().UnbindCustomRole(ctx.Context(), r.OrganizationID, ctx.Param("userId"), r.ID); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}

// orgCustomRole loads a custom role and hides roles owned by other
// organizations behind a not-found.
func (a *API) orgCustomRole(ctx context.Context, orgID, rawID string) (*role.CustomRole, error) {
	roleID, err := id.ParseCustomRoleID(rawID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}
	r, err := a.eng.Store().GetCustomRole(ctx, roleID)
	if err != nil {
		return nil, mapError(err)
	}
	if r.OrganizationID != orgID {
		return nil, mapError(fmt.Errorf("custom role %s: %w", roleID, store.ErrNotFound))
	}
	return r, nil
}
