// Package plugin defines the plugin system for Bastion.
// Plugins are notified of decisions and elevation workflow events and can
// react with metrics, tracing, notifications and the like.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Decision hooks
// ──────────────────────────────────────────────────

// BeforeDecision is called before a decision request is evaluated.
// The req parameter is *bastion.DecisionRequest (passed as any to avoid an
// import cycle).
type BeforeDecision interface {
	OnBeforeDecision(ctx context.Context, req any) error
}

// AfterDecision is called once a decision has been made and audited.
// The req parameter is *bastion.DecisionRequest; decision is *bastion.Decision.
type AfterDecision interface {
	OnAfterDecision(ctx context.Context, req, decision any) error
}

// ──────────────────────────────────────────────────
// Elevation hooks
// ──────────────────────────────────────────────────

// AccessRequested is called after a pending access request is stored.
type AccessRequested interface {
	OnAccessRequested(ctx context.Context, r *accessrequest.Request) error
}

// AccessApproved is called after an approval and its grants are committed.
type AccessApproved interface {
	OnAccessApproved(ctx context.Context, r *accessrequest.Request, grants []*grant.Grant) error
}

// AccessDenied is called after a request is denied.
type AccessDenied interface {
	OnAccessDenied(ctx context.Context, r *accessrequest.Request) error
}

// GrantRevoked is called after a grant is revoked before its expiry.
type GrantRevoked interface {
	OnGrantRevoked(ctx context.Context, grantID id.GrantID) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
