package api

import "github.com/xraph/bastion"

// CheckResponse is the response for an access decision.
type CheckResponse struct {
	Allowed    bool             `json:"allowed" description:"Whether the request is allowed"`
	Decision   string           `json:"decision" description:"Decision code"`
	Status     string           `json:"status,omitempty" description:"Gate discriminator (feature_not_enabled, forbidden, invalid_request)"`
	Reason     string           `json:"reason,omitempty" description:"Human-readable reason"`
	Missing    *bastion.Missing `json:"missing,omitempty" description:"The check that failed"`
	AuditID    string           `json:"audit_id,omitempty" description:"Audit record ID"`
	EvalTimeNs int64            `json:"eval_time_ns" description:"Evaluation time in nanoseconds"`
}

// WorkflowResponse is the envelope returned by elevation workflow routes.
type WorkflowResponse struct {
	Success   bool     `json:"success" description:"Whether the operation succeeded"`
	RequestID string   `json:"request_id,omitempty" description:"Created access request ID"`
	GrantIDs  []string `json:"grant_ids,omitempty" description:"Grants created by an approval"`
	Error     string   `json:"error,omitempty" description:"Failure reason"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}

func toCheckResponse(d *bastion.Decision) *CheckResponse {
	return &CheckResponse{
		Allowed:    d.Allowed,
		Decision:   string(d.Code),
		Status:     d.Status(),
		Reason:     d.Reason,
		Missing:    d.Missing,
		AuditID:    d.AuditID,
		EvalTimeNs: d.EvalTimeNs,
	}
}
