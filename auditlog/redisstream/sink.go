// Package redisstream publishes decision audit records to a Redis stream so
// an external pipeline can consume them.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/bastion/auditlog"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "bastion:audit"

// Sink appends each record to a Redis stream with XADD.
type Sink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// Option configures a Sink.
type Option func(*Sink)

// WithStream sets the stream key.
func WithStream(name string) Option { return func(s *Sink) { s.stream = name } }

// WithMaxLen caps the stream length approximately. Zero leaves it uncapped.
func WithMaxLen(n int64) Option { return func(s *Sink) { s.maxLen = n } }

// New returns a sink publishing through client.
func New(client *redis.Client, opts ...Option) *Sink {
	s := &Sink{client: client, stream: DefaultStream}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ auditlog.Sink = (*Sink)(nil)

// Emit publishes r.
func (s *Sink) Emit(ctx context.Context, r *auditlog.Record) error {
	values, err := fields(r)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redisstream: xadd %s: %w", s.stream, err)
	}
	return nil
}

// fields flattens a record into stream entry fields. Attributes are JSON.
func fields(r *auditlog.Record) (map[string]any, error) {
	attrs := "{}"
	if len(r.Attributes) > 0 {
		b, err := json.Marshal(r.Attributes)
		if err != nil {
			return nil, fmt.Errorf("redisstream: marshal attributes: %w", err)
		}
		attrs = string(b)
	}
	return map[string]any{
		"id":              r.ID.String(),
		"organization_id": r.OrganizationID,
		"user_id":         r.UserID,
		"api_key_id":      r.APIKeyID,
		"entitlement_key": r.EntitlementKey,
		"permission_key":  r.PermissionKey,
		"resource":        r.Resource,
		"action":          r.Action,
		"attributes":      attrs,
		"allowed":         strconv.FormatBool(r.Allowed),
		"decision":        r.Decision,
		"reason":          r.Reason,
		"request_ip":      r.RequestIP,
		"user_agent":      r.UserAgent,
		"trace_id":        r.TraceID,
		"eval_time_ns":    strconv.FormatInt(r.EvalTimeNs, 10),
		"created_at":      r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}
