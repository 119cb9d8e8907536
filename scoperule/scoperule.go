// Package scoperule defines ABAC scope rules: per-subject constraints on the
// attribute values a request may carry.
package scoperule

import (
	"context"
	"time"

	"github.com/xraph/bastion/id"
)

// SubjectType says whether a rule binds to a role key or to one user.
type SubjectType string

const (
	SubjectRole SubjectType = "role"
	SubjectUser SubjectType = "user"
)

// Valid reports whether t is a known subject type.
func (t SubjectType) Valid() bool { return t == SubjectRole || t == SubjectUser }

// Rule constrains request attributes for one subject. Constraints maps an
// attribute name to its allowed values.
type Rule struct {
	ID             id.ScopeRuleID      `json:"id" db:"id"`
	OrganizationID string              `json:"organization_id" db:"organization_id"`
	SubjectType    SubjectType         `json:"subject_type" db:"subject_type"`
	SubjectKey     string              `json:"subject_key" db:"subject_key"`
	Constraints    map[string][]string `json:"constraints" db:"constraints"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// Allowed returns the allowed values for attr and whether the rule
// constrains attr at all.
func (r *Rule) Allowed(attr string) ([]string, bool) {
	vals, ok := r.Constraints[attr]
	return vals, ok
}

// ListFilter contains filters for listing rules.
type ListFilter struct {
	OrganizationID string      `json:"organization_id,omitempty"`
	SubjectType    SubjectType `json:"subject_type,omitempty"`
	SubjectKey     string      `json:"subject_key,omitempty"`
	Limit          int         `json:"limit,omitempty"`
	Offset         int         `json:"offset,omitempty"`
}

// Store defines persistence operations for scope rules.
type Store interface {
	// PutScopeRule creates or replaces the rule for
	// (organization, subject type, subject key).
	PutScopeRule(ctx context.Context, r *Rule) error

	// GetScopeRule retrieves a rule by ID.
	GetScopeRule(ctx context.Context, ruleID id.ScopeRuleID) (*Rule, error)

	// ListScopeRulesFor returns the rules bound to any of keys under the
	// subject type.
	ListScopeRulesFor(ctx context.Context, orgID string, subjectType SubjectType, keys []string) ([]*Rule, error)

	// ListScopeRules returns rules matching the filter.
	ListScopeRules(ctx context.Context, filter *ListFilter) ([]*Rule, error)

	// DeleteScopeRule removes a rule by ID.
	DeleteScopeRule(ctx context.Context, ruleID id.ScopeRuleID) error
}
