package bastion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/plugin"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

const tracerName = "github.com/xraph/bastion"

// Reason strings. They are stable so calling UIs can match on them.
const (
	reasonInternal         = "internal error during access check"
	reasonAmbiguous        = "Ambiguous principal: exactly one of user_id or api_key_id is required"
	reasonNoOrganization   = "Organization is required"
	reasonAllowed          = "All requested checks passed"
	reasonFeatureFmt       = "Feature not enabled: %s"
	reasonPermissionFmt    = "Permission denied: %s"
	reasonAttributesPrefix = "ABAC attributes not allowed: "
)

// Engine is the access decision engine. It holds no per-decision state; the
// store is the only source of truth and nothing is cached, so a change to an
// entitlement, membership or grant is visible to the next call.
type Engine struct {
	store   store.Store
	roles   role.Table
	sink    auditlog.Sink
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock
	tracer  trace.Tracer
	limiter *requestLimiter
	config  Config
}

// NewEngine creates a new Bastion engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		roles:  role.Table{},
		logger: slog.Default(),
		clock:  RealClock(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("bastion: store is required")
	}
	if e.sink == nil {
		e.sink = auditlog.NewStoreSink(e.store)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	e.limiter = newRequestLimiter(e.config.ElevationRequestsPerHour)
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Roles returns the built-in role table.
func (e *Engine) Roles() role.Table { return e.roles }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Check evaluates req and returns the decision. It never returns an error:
// checker failures become a deny with CodeDenyInternal. Exactly one audit
// record is emitted per call.
func (e *Engine) Check(ctx context.Context, req *DecisionRequest) *Decision {
	start := time.Now()
	now := e.clock.Now()

	r := DecisionRequest{}
	if req != nil {
		r = *req
	}
	if r.OrganizationID == "" {
		r.OrganizationID = organizationFromContext(ctx)
	}
	r.Attributes = auditlog.CloneAttributes(r.Attributes)

	ctx, span := e.tracer.Start(ctx, "bastion.Check", trace.WithAttributes(
		attribute.String("bastion.organization_id", r.OrganizationID),
		attribute.String("bastion.entitlement_key", r.EntitlementKey),
		attribute.String("bastion.permission_key", r.PermissionKey),
	))
	defer span.End()

	if e.plugins != nil {
		e.plugins.EmitBeforeDecision(ctx, &r)
	}

	d := e.safeDecide(ctx, &r, now)
	d.EvalTimeNs = time.Since(start).Nanoseconds()

	e.audit(ctx, &r, d, now)

	span.SetAttributes(
		attribute.Bool("bastion.allowed", d.Allowed),
		attribute.String("bastion.decision", string(d.Code)),
	)
	if d.Code == CodeDenyInternal {
		span.SetStatus(codes.Error, reasonInternal)
	}

	if e.plugins != nil {
		e.plugins.EmitAfterDecision(ctx, &r, d)
	}
	return d
}

// Enforce is the gate form of Check. It returns nil on allow and a
// *DeniedError carrying the decision otherwise.
func (e *Engine) Enforce(ctx context.Context, req *DecisionRequest) error {
	d := e.Check(ctx, req)
	if d.Allowed {
		return nil
	}
	return &DeniedError{Decision: d}
}

// safeDecide runs decide and turns a panicking checker into an internal
// denial.
func (e *Engine) safeDecide(ctx context.Context, req *DecisionRequest, now time.Time) (d *Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			d = e.internal(ctx, "panic", req, fmt.Errorf("checker panic: %v", rec))
		}
	}()
	return e.decide(ctx, req, now)
}

// decide runs the checks in order and stops at the first denial.
func (e *Engine) decide(ctx context.Context, req *DecisionRequest, now time.Time) *Decision {
	if req.OrganizationID == "" {
		return &Decision{Code: CodeDenyInvalidRequest, Reason: reasonNoOrganization}
	}
	hasUser, hasKey := req.UserID != "", req.APIKeyID != ""
	if hasUser == hasKey {
		return &Decision{Code: CodeDenyInvalidPrincipal, Reason: reasonAmbiguous}
	}

	if req.EntitlementKey != "" {
		ok, err := e.store.HasActiveEntitlement(ctx, req.OrganizationID, req.EntitlementKey)
		if err != nil {
			return e.internal(ctx, "entitlement", req, err)
		}
		if !ok {
			return &Decision{
				Code:    CodeDenyEntitlement,
				Reason:  fmt.Sprintf(reasonFeatureFmt, req.EntitlementKey),
				Missing: &Missing{Entitlement: req.EntitlementKey},
			}
		}
	}

	if req.PermissionKey != "" {
		var ok bool
		var err error
		if hasUser {
			ok, err = e.hasPermission(ctx, req.OrganizationID, req.UserID, req.PermissionKey, now)
		} else {
			ok, err = e.apiKeyPermission(ctx, req.OrganizationID, req.APIKeyID, req.PermissionKey, now)
		}
		if err != nil {
			return e.internal(ctx, "permission", req, err)
		}
		if !ok {
			return &Decision{
				Code:    CodeDenyPermission,
				Reason:  fmt.Sprintf(reasonPermissionFmt, req.PermissionKey),
				Missing: &Missing{Permission: req.PermissionKey},
			}
		}
	}

	if len(req.Attributes) > 0 && hasUser {
		ok, err := e.checkAttributes(ctx, req.OrganizationID, req.UserID, req.Attributes)
		if err != nil {
			return e.internal(ctx, "attributes", req, err)
		}
		if !ok {
			return &Decision{
				Code:    CodeDenyAttributes,
				Reason:  reasonAttributesPrefix + encodeAttributes(req.Attributes),
				Missing: &Missing{Attributes: req.Attributes},
			}
		}
	}

	return &Decision{Allowed: true, Code: CodeAllow, Reason: reasonAllowed}
}

func (e *Engine) internal(ctx context.Context, stage string, req *DecisionRequest, err error) *Decision {
	e.logger.ErrorContext(ctx, "access check failed",
		slog.String("stage", stage),
		slog.String("organization_id", req.OrganizationID),
		slog.String("user_id", req.UserID),
		slog.String("api_key_id", req.APIKeyID),
		slog.String("error", err.Error()),
	)
	trace.SpanFromContext(ctx).RecordError(err)
	return &Decision{Code: CodeDenyInternal, Reason: reasonInternal}
}

// audit emits the decision's record. A sink failure is logged and the
// decision stands. Caller cancellation does not abort the write.
func (e *Engine) audit(ctx context.Context, req *DecisionRequest, d *Decision, now time.Time) {
	rec := &auditlog.Record{
		ID:             id.NewAuditRecordID(),
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		APIKeyID:       req.APIKeyID,
		EntitlementKey: req.EntitlementKey,
		PermissionKey:  req.PermissionKey,
		Resource:       req.Resource,
		Action:         req.Action,
		Attributes:     auditlog.CloneAttributes(req.Attributes),
		Allowed:        d.Allowed,
		Decision:       string(d.Code),
		Reason:         d.Reason,
		RequestIP:      req.Metadata.IP,
		UserAgent:      req.Metadata.UserAgent,
		TraceID:        traceID(ctx, req.Metadata.TraceID),
		EvalTimeNs:     d.EvalTimeNs,
		CreatedAt:      now,
	}
	d.AuditID = rec.ID.String()

	if err := e.emit(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.ErrorContext(ctx, "audit emission failed",
			slog.String("audit_id", rec.ID.String()),
			slog.String("decision", rec.Decision),
			slog.String("error", fmt.Errorf("%w: %w", ErrAuditWrite, err).Error()),
		)
	}
}

func (e *Engine) emit(ctx context.Context, rec *auditlog.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return e.sink.Emit(ctx, rec)
}

// traceID prefers the caller's id, then the active span's, then mints one.
func traceID(ctx context.Context, supplied string) string {
	if supplied != "" {
		return supplied
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ulid.Make().String()
}

func encodeAttributes(attrs map[string]any) string {
	b, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Sprint(attrs)
	}
	return string(b)
}
