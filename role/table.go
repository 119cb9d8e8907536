package role

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Table maps built-in role names to their permission keys. It is read-only
// once handed to an engine.
type Table map[string][]string

// Permissions returns the permission keys of a built-in role. Unknown roles
// have none.
func (t Table) Permissions(role string) []string {
	return t[role]
}

// Grants reports whether the built-in role carries perm.
func (t Table) Grants(role, perm string) bool {
	for _, p := range t[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Roles returns the role names in sorted order.
func (t Table) Roles() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for name, perms := range t {
		out[name] = append([]string(nil), perms...)
	}
	return out
}

type tableDocument struct {
	Roles map[string][]string `yaml:"roles"`
}

// ParseTable decodes a YAML role table of the form:
//
//	roles:
//	  broker_admin: [load.create, load.read]
//	  dispatcher: [load.read]
func ParseTable(data []byte) (Table, error) {
	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("role: parse table: %w", err)
	}
	t := make(Table, len(doc.Roles))
	for name, perms := range doc.Roles {
		if name == "" {
			return nil, fmt.Errorf("role: parse table: empty role name")
		}
		for _, p := range perms {
			if p == "" {
				return nil, fmt.Errorf("role: parse table: role %q has an empty permission key", name)
			}
		}
		t[name] = append([]string(nil), perms...)
	}
	return t, nil
}

// LoadTableFile reads a YAML role table from disk.
func LoadTableFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("role: read table: %w", err)
	}
	return ParseTable(data)
}
