package bastion

import (
	"context"
	"fmt"

	"github.com/xraph/bastion/scoperule"
)

// CheckAttributes reports whether every attribute in attrs is allowed by the
// user's scope rules. Rules bound to the user override rules bound to the
// user's roles for the same attribute. Role rules are the union over the
// active built-in role and every bound custom role. With no applicable rule
// at all, or an attribute no rule constrains, the answer is false.
func (e *Engine) CheckAttributes(ctx context.Context, orgID, userID string, attrs map[string]any) (bool, error) {
	if orgID == "" || userID == "" {
		return false, fmt.Errorf("%w: organization and user are required", ErrInvalidRequest)
	}
	if len(attrs) == 0 {
		return false, fmt.Errorf("%w: attributes are required", ErrInvalidRequest)
	}
	return e.checkAttributes(ctx, orgID, userID, attrs)
}

func (e *Engine) checkAttributes(ctx context.Context, orgID, userID string, attrs map[string]any) (bool, error) {
	roleKeys, err := e.subjectRoleKeys(ctx, orgID, userID)
	if err != nil {
		return false, err
	}
	var roleRules []*scoperule.Rule
	if len(roleKeys) > 0 {
		roleRules, err = e.store.ListScopeRulesFor(ctx, orgID, scoperule.SubjectRole, roleKeys)
		if err != nil {
			return false, fmt.Errorf("bastion: role scope rules: %w", err)
		}
	}
	userRules, err := e.store.ListScopeRulesFor(ctx, orgID, scoperule.SubjectUser, []string{userID})
	if err != nil {
		return false, fmt.Errorf("bastion: user scope rules: %w", err)
	}
	if len(roleRules) == 0 && len(userRules) == 0 {
		return false, nil
	}

	for name, raw := range attrs {
		allowed, constrained := allowedValues(name, userRules)
		if !constrained {
			allowed, constrained = allowedValues(name, roleRules)
		}
		if !constrained {
			return false, nil
		}
		values, ok := attributeValues(raw, !e.config.SingleValuedAttributes)
		if !ok {
			return false, nil
		}
		for _, v := range values {
			if _, hit := allowed[v]; !hit {
				return false, nil
			}
		}
	}
	return true, nil
}

// subjectRoleKeys returns the role keys scope rules can bind to: the active
// built-in role and the keys of bound custom roles.
func (e *Engine) subjectRoleKeys(ctx context.Context, orgID, userID string) ([]string, error) {
	var keys []string
	builtin, err := e.activeRole(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if builtin != "" {
		keys = append(keys, builtin)
	}
	custom, err := e.store.ListCustomRolesForUser(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("bastion: custom role lookup: %w", err)
	}
	for _, r := range custom {
		keys = append(keys, r.Key)
	}
	return keys, nil
}

// allowedValues unions the allowed values for attr across rules. The second
// result is false when no rule constrains attr.
func allowedValues(attr string, rules []*scoperule.Rule) (map[string]struct{}, bool) {
	var set map[string]struct{}
	for _, r := range rules {
		vals, ok := r.Allowed(attr)
		if !ok {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(vals))
		}
		for _, v := range vals {
			set[v] = struct{}{}
		}
	}
	return set, set != nil
}

// attributeValues normalizes a request attribute to its string forms.
// Lists are accepted only when multi is set and must be non-empty.
func attributeValues(raw any, multi bool) ([]string, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case string:
		return []string{v}, true
	case []string:
		if !multi || len(v) == 0 {
			return nil, false
		}
		return v, true
	case []any:
		if !multi || len(v) == 0 {
			return nil, false
		}
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := scalarString(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		s, ok := scalarString(v)
		if !ok {
			return nil, false
		}
		return []string{s}, true
	}
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(s), true
	default:
		return "", false
	}
}
