package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/apikey"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/store"
)

func (a *API) registerAPIKeyRoutes(router forge.Router) error {
	g := router.Group("/v1/organizations", forge.WithGroupTags("api-keys"))

	if err := g.POST("/:orgId/api-keys", a.createAPIKey,
		forge.WithSummary("Create API key"),
		forge.WithDescription("Issues a machine principal whose scopes are its complete permission set."),
		forge.WithOperationID("createAPIKey"),
		forge.WithRequestSchema(CreateAPIKeyRequest{}),
		forge.WithCreatedResponse(&apikey.APIKey{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/:orgId/api-keys", a.listAPIKeys,
		forge.WithSummary("List API keys"),
		forge.WithOperationID("listAPIKeys"),
		forge.WithResponseSchema(http.StatusOK, "API key list", []*apikey.APIKey{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/:orgId/api-keys/:keyId", a.revokeAPIKey,
		forge.WithSummary("Revoke API key"),
		forge.WithDescription("Marks the key inactive. Later decisions for it are denied."),
		forge.WithOperationID("revokeAPIKey"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) createAPIKey(ctx forge.Context, req *CreateAPIKeyRequest) (*apikey.APIKey, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	now := time.Now().UTC()
	k := &apikey.APIKey{
		ID:             id.NewAPIKeyID(),
		OrganizationID: ctx.Param("orgId"),
		Name:           req.Name,
		Scopes:         append([]string{}, req.Scopes...),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return nil, forge.BadRequest("invalid expires_at timestamp")
		}
		t = t.UTC()
		k.ExpiresAt = &t
	}
	if err := a.eng.Store().CreateAPIKey(ctx.Context(), k); err != nil {
		return nil, mapError(err)
	}
	return k, ctx.JSON(http.StatusCreated, k)
}

func (a *API) listAPIKeys(ctx forge.Context, _ *OrgRequest) ([]*apikey.APIKey, error) {
	keys, err := a.eng.Store().ListAPIKeys(ctx.Context(), ctx.Param("orgId"))
	if err != nil {
		return nil, mapError(err)
	}
	return keys, ctx.JSON(http.StatusOK, keys)
}

func (a *API) revokeAPIKey(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	keyID, err := id.ParseAPIKeyID(ctx.Param("keyId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid API key ID: %v", err))
	}
	k, err := a.eng.Store().GetAPIKey(ctx.Context(), keyID)
	if err != nil {
		return nil, mapError(err)
	}
	if k.OrganizationID != ctx.Param("orgId") {
		return nil, mapError(fmt.Errorf("api key %s: %w", keyID, store.ErrNotFound))
	}
	if err := a.eng.Store().DeactivateAPIKey(ctx.Context(), keyID); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}
