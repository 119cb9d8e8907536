package bastion

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/plugin"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithRoleTable sets the built-in role to permission table. The engine keeps
// its own copy.
func WithRoleTable(t role.Table) Option { return func(e *Engine) { e.roles = t.Clone() } }

// WithAuditSink replaces the default store-backed audit sink.
func WithAuditSink(s auditlog.Sink) Option { return func(e *Engine) { e.sink = s } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithClock sets the clock decisions and expiries are evaluated against.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithTracer sets the OpenTelemetry tracer for decision spans.
func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) {
		if e.plugins == nil {
			e.plugins = plugin.NewRegistry(e.logger)
		}
		e.plugins.Register(x)
	}
}
