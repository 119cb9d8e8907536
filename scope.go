package bastion

import (
	"context"

	"github.com/xraph/forge"
)

type contextKey int

const ctxKeyOrganizationID contextKey = iota

// WithOrganization returns a context carrying the organization a request
// acts within. Use this for standalone mode (without Forge).
func WithOrganization(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, ctxKeyOrganizationID, orgID)
}

// organizationFromContext returns the organization from forge.Scope, falling
// back to the standalone context value.
func organizationFromContext(ctx context.Context) string {
	if s, ok := forge.ScopeFrom(ctx); ok && s.OrgID() != "" {
		return s.OrgID()
	}
	v, _ := ctx.Value(ctxKeyOrganizationID).(string)
	return v
}
