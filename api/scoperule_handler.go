package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/scoperule"
	"github.com/xraph/bastion/store"
)

func (a *API) registerScopeRuleRoutes(router forge.Router) error {
	g := router.Group("/v1/organizations", forge.WithGroupTags("scope-rules"))

	if err := g.PUT("/:orgId/scope-rules", a.putScopeRule,
		forge.WithSummary("Put scope rule"),
		forge.WithDescription("Creates or replaces the attribute constraints for a role or user."),
		forge.WithOperationID("putScopeRule"),
		forge.WithRequestSchema(PutScopeRuleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Scope rule", &scoperule.Rule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/:orgId/scope-rules", a.listScopeRules,
		forge.WithSummary("List scope rules"),
		forge.WithOperationID("listScopeRules"),
		forge.WithRequestSchema(ListScopeRulesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Scope rule list", []*scoperule.Rule{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/:orgId/scope-rules/:ruleId", a.deleteScopeRule,
		forge.WithSummary("Delete scope rule"),
		forge.WithOperationID("deleteScopeRule"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) putScopeRule(ctx forge.Context, req *PutScopeRuleRequest) (*scoperule.Rule, error) {
	st := scoperule.SubjectType(req.SubjectType)
	if !st.Valid() {
		return nil, forge.BadRequest("subject_type must be 'role' or 'user'")
	}
	if req.SubjectKey == "" {
		return nil, forge.BadRequest("subject_key is required")
	}
	if len(req.Constraints) == 0 {
		return nil, forge.BadRequest("constraints cannot be empty")
	}

	now := time.Now().UTC()
	r := &scoperule.Rule{
		ID:             id.NewScopeRuleID(),
		OrganizationID: ctx.Param("orgId"),
		SubjectType:    st,
		SubjectKey:     req.SubjectKey,
		Constraints:    req.Constraints,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.eng.Store().PutScopeRule(ctx.Context(), r); err != nil {
		return nil, mapError(err)
	}
	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) listScopeRules(ctx forge.Context, req *ListScopeRulesRequest) ([]*scoperule.Rule, error) {
	rules, err := a.eng.Store().ListScopeRules(ctx.Context(), &scoperule.ListFilter{
		OrganizationID: ctx.Param("orgId"),
		SubjectType:    scoperule.SubjectType(req.SubjectType),
		SubjectKey:     req.SubjectKey,
		Limit:          defaultLimit(req.Limit),
		Offset:         req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return rules, ctx.JSON(http.StatusOK, rules)
}

func (a *API) deleteScopeRule(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	ruleID, err := id.ParseScopeRuleID(ctx.Param("ruleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid scope rule ID: %v", err))
	}
	r, err := a.eng.Store().GetScopeRule(ctx.Context(), ruleID)
	if err != nil {
		return nil, mapError(err)
	}
	if r.OrganizationID != ctx.Param("orgId") {
		return nil, mapError(fmt.Errorf("scope rule %s: %w", ruleID, store.ErrNotFound))
	}
	if err := a.eng.Store().DeleteScopeRule(ctx.Context(), ruleID); err != nil {
		return nil, mapError(err)
	}
	return nil, ctx.NoContent(http.StatusNoContent)
}
