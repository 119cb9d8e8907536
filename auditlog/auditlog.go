// Package auditlog defines the decision audit record, the sink interface the
// engine emits through, and the store that backs the default sink.
package auditlog

import (
	"context"
	"maps"
	"time"

	"github.com/xraph/bastion/id"
)

// Record captures one access decision. Records are append-only.
type Record struct {
	ID             id.AuditRecordID `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	UserID         string           `json:"user_id,omitempty" db:"user_id"`
	APIKeyID       string           `json:"api_key_id,omitempty" db:"api_key_id"`
	EntitlementKey string           `json:"entitlement_key,omitempty" db:"entitlement_key"`
	PermissionKey  string           `json:"permission_key,omitempty" db:"permission_key"`
	Resource       string           `json:"resource,omitempty" db:"resource"`
	Action         string           `json:"action,omitempty" db:"action"`
	Attributes     map[string]any   `json:"attributes,omitempty" db:"attributes"`
	Allowed        bool             `json:"allowed" db:"allowed"`
	Decision       string           `json:"decision" db:"decision"`
	Reason         string           `json:"reason,omitempty" db:"reason"`
	RequestIP      string           `json:"request_ip,omitempty" db:"request_ip"`
	UserAgent      string           `json:"user_agent,omitempty" db:"user_agent"`
	TraceID        string           `json:"trace_id,omitempty" db:"trace_id"`
	EvalTimeNs     int64            `json:"eval_time_ns" db:"eval_time_ns"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// Clone returns a copy of r that shares no attribute storage with it.
func (r *Record) Clone() *Record {
	c := *r
	c.Attributes = CloneAttributes(r.Attributes)
	return &c
}

// CloneAttributes deep-copies an attribute map. Nested lists and maps are
// copied; scalars are shared.
func CloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := maps.Clone(attrs)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		return CloneAttributes(t)
	default:
		return v
	}
}

// QueryFilter contains filters for listing audit records.
type QueryFilter struct {
	OrganizationID string     `json:"organization_id,omitempty"`
	UserID         string     `json:"user_id,omitempty"`
	APIKeyID       string     `json:"api_key_id,omitempty"`
	Decision       string     `json:"decision,omitempty"`
	After          *time.Time `json:"after,omitempty"`
	Before         *time.Time `json:"before,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	Offset         int        `json:"offset,omitempty"`
}

// Store defines persistence operations for audit records. There is no
// update or delete.
type Store interface {
	// AppendAuditRecord persists a record.
	AppendAuditRecord(ctx context.Context, r *Record) error

	// ListAuditRecords returns records matching the filter, newest first.
	ListAuditRecords(ctx context.Context, filter *QueryFilter) ([]*Record, error)

	// CountAuditRecords returns the number of records matching the filter.
	CountAuditRecords(ctx context.Context, filter *QueryFilter) (int64, error)
}
