package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
)

// entry pairs a hook with the plugin name for logging.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeDecision  []entry[BeforeDecision]
	afterDecision   []entry[AfterDecision]
	accessRequested []entry[AccessRequested]
	accessApproved  []entry[AccessApproved]
	accessDenied    []entry[AccessDenied]
	grantRevoked    []entry[GrantRevoked]
	shutdown        []entry[Shutdown]
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeDecision); ok {
		r.beforeDecision = append(r.beforeDecision, entry[BeforeDecision]{name, h})
	}
	if h, ok := p.(AfterDecision); ok {
		r.afterDecision = append(r.afterDecision, entry[AfterDecision]{name, h})
	}
	if h, ok := p.(AccessRequested); ok {
		r.accessRequested = append(r.accessRequested, entry[AccessRequested]{name, h})
	}
	if h, ok := p.(AccessApproved); ok {
		r.accessApproved = append(r.accessApproved, entry[AccessApproved]{name, h})
	}
	if h, ok := p.(AccessDenied); ok {
		r.accessDenied = append(r.accessDenied, entry[AccessDenied]{name, h})
	}
	if h, ok := p.(GrantRevoked); ok {
		r.grantRevoked = append(r.grantRevoked, entry[GrantRevoked]{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// EmitBeforeDecision notifies all plugins that implement BeforeDecision.
func (r *Registry) EmitBeforeDecision(ctx context.Context, req any) {
	for _, e := range r.beforeDecision {
		r.call("OnBeforeDecision", e.name, func() error { return e.hook.OnBeforeDecision(ctx, req) })
	}
}

// EmitAfterDecision notifies all plugins that implement AfterDecision.
func (r *Registry) EmitAfterDecision(ctx context.Context, req, decision any) {
	for _, e := range r.afterDecision {
		r.call("OnAfterDecision", e.name, func() error { return e.hook.OnAfterDecision(ctx, req, decision) })
	}
}

// EmitAccessRequested notifies all plugins that implement AccessRequested.
func (r *Registry) EmitAccessRequested(ctx context.Context, req *accessrequest.Request) {
	for _, e := range r.accessRequested {
		r.call("OnAccessRequested", e.name, func() error { return e.hook.OnAccessRequested(ctx, req) })
	}
}

// EmitAccessApproved notifies all plugins that implement AccessApproved.
func (r *Registry) EmitAccessApproved(ctx context.Context, req *accessrequest.Request, grants []*grant.Grant) {
	for _, e := range r.accessApproved {
		r.call("OnAccessApproved", e.name, func() error { return e.hook.OnAccessApproved(ctx, req, grants) })
	}
}

// EmitAccessDenied notifies all plugins that implement AccessDenied.
func (r *Registry) EmitAccessDenied(ctx context.Context, req *accessrequest.Request) {
	for _, e := range r.accessDenied {
		r.call("OnAccessDenied", e.name, func() error { return e.hook.OnAccessDenied(ctx, req) })
	}
}

// EmitGrantRevoked notifies all plugins that implement GrantRevoked.
func (r *Registry) EmitGrantRevoked(ctx context.Context, grantID id.GrantID) {
	for _, e := range r.grantRevoked {
		r.call("OnGrantRevoked", e.name, func() error { return e.hook.OnGrantRevoked(ctx, grantID) })
	}
}

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		r.call("OnShutdown", e.name, func() error { return e.hook.OnShutdown(ctx) })
	}
}

// call runs one hook. Errors and panics are logged and never reach the
// caller.
func (r *Registry) call(hook, pluginName string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logHookError(hook, pluginName, fmt.Errorf("panic: %v", rec))
		}
	}()
	if err := fn(); err != nil {
		r.logHookError(hook, pluginName, err)
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors never reach the caller.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
