// Package id defines TypeID-based identity types for all Bastion entities.
//
// Entities share a single ID struct whose prefix names the entity type.
// IDs are K-sortable (UUIDv7-based) and render as "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Bastion entity types.
const (
	PrefixEntitlement   Prefix = "ent"
	PrefixMembership    Prefix = "mbr"
	PrefixCustomRole    Prefix = "crole"
	PrefixRoleBinding   Prefix = "crbind"
	PrefixAPIKey        Prefix = "akey"
	PrefixGrant         Prefix = "tgrant"
	PrefixAccessRequest Prefix = "areq"
	PrefixScopeRule     Prefix = "abac"
	PrefixAuditRecord   Prefix = "audit"
)

// ID is the primary identifier type for all Bastion entities.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "role_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Entity aliases
// ──────────────────────────────────────────────────

// EntitlementID identifies an entitlement row (prefix: "ent").
type EntitlementID = ID

// MembershipID identifies an organization membership (prefix: "mbr").
type MembershipID = ID

// CustomRoleID identifies an organization-defined role (prefix: "crole").
type CustomRoleID = ID

// RoleBindingID identifies a user to custom role binding (prefix: "crbind").
type RoleBindingID = ID

// APIKeyID identifies a machine principal (prefix: "akey").
type APIKeyID = ID

// GrantID identifies a temporary permission grant (prefix: "tgrant").
type GrantID = ID

// AccessRequestID identifies an elevation request (prefix: "areq").
type AccessRequestID = ID

// ScopeRuleID identifies an ABAC scope rule (prefix: "abac").
type ScopeRuleID = ID

// AuditRecordID identifies a decision audit record (prefix: "audit").
type AuditRecordID = ID

// ──────────────────────────────────────────────────
// Constructors
// ──────────────────────────────────────────────────

func NewEntitlementID() ID   { return New(PrefixEntitlement) }
func NewMembershipID() ID    { return New(PrefixMembership) }
func NewCustomRoleID() ID    { return New(PrefixCustomRole) }
func NewRoleBindingID() ID   { return New(PrefixRoleBinding) }
func NewAPIKeyID() ID        { return New(PrefixAPIKey) }
func NewGrantID() ID         { return New(PrefixGrant) }
func NewAccessRequestID() ID { return New(PrefixAccessRequest) }
func NewScopeRuleID() ID     { return New(PrefixScopeRule) }
func NewAuditRecordID() ID   { return New(PrefixAuditRecord) }

// ──────────────────────────────────────────────────
// Parsers
// ──────────────────────────────────────────────────

// ParseEntitlementID parses a string and validates the "ent" prefix.
func ParseEntitlementID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEntitlement) }

// ParseMembershipID parses a string and validates the "mbr" prefix.
func ParseMembershipID(s string) (ID, error) { return ParseWithPrefix(s, PrefixMembership) }

// ParseCustomRoleID parses a string and validates the "crole" prefix.
func ParseCustomRoleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixCustomRole) }

// ParseRoleBindingID parses a string and validates the "crbind" prefix.
func ParseRoleBindingID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRoleBinding) }

// ParseAPIKeyID parses a string and validates the "akey" prefix.
func ParseAPIKeyID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAPIKey) }

// ParseGrantID parses a string and validates the "tgrant" prefix.
func ParseGrantID(s string) (ID, error) { return ParseWithPrefix(s, PrefixGrant) }

// ParseAccessRequestID parses a string and validates the "areq" prefix.
func ParseAccessRequestID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAccessRequest) }

// ParseScopeRuleID parses a string and validates the "abac" prefix.
func ParseScopeRuleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixScopeRule) }

// ParseAuditRecordID parses a string and validates the "audit" prefix.
func ParseAuditRecordID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAuditRecord) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
