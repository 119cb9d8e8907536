package bastion

import (
	"context"
	"reflect"
	"testing"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/scoperule"
)

func TestAttributeValues(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		multi  bool
		want   []string
		wantOK bool
	}{
		{"string", "us", true, []string{"us"}, true},
		{"int", 42, true, []string{"42"}, true},
		{"bool", true, false, []string{"true"}, true},
		{"string list", []string{"us", "ca"}, true, []string{"us", "ca"}, true},
		{"any list", []any{"us", 7}, true, []string{"us", "7"}, true},
		{"list when single valued", []string{"us"}, false, nil, false},
		{"empty list", []any{}, true, nil, false},
		{"nested list", []any{[]string{"us"}}, true, nil, false},
		{"map", map[string]string{"a": "b"}, true, nil, false},
		{"nil", nil, true, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := attributeValues(tt.raw, tt.multi)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("values = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoleRulesUnionBuiltinAndCustom(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "dispatcher", membership.StatusActive)

	cr := &role.CustomRole{ID: id.NewCustomRoleID(), OrganizationID: "org1", Key: "west_desk", Permissions: []string{"load.read"}}
	if err := env.store.CreateCustomRole(ctx, cr); err != nil {
		t.Fatal(err)
	}
	if err := env.store.BindCustomRole(ctx, &role.Binding{ID: id.NewRoleBindingID(), OrganizationID: "org1", UserID: "u1", CustomRoleID: cr.ID}); err != nil {
		t.Fatal(err)
	}
	for key, regions := range map[string][]string{"dispatcher": {"us"}, "west_desk": {"ca"}} {
		if err := env.store.PutScopeRule(ctx, &scoperule.Rule{
			ID: id.NewScopeRuleID(), OrganizationID: "org1",
			SubjectType: scoperule.SubjectRole, SubjectKey: key,
			Constraints: map[string][]string{"region": regions},
		}); err != nil {
			t.Fatal(err)
		}
	}

	for region, want := range map[string]bool{"us": true, "ca": true, "eu": false} {
		ok, err := env.eng.CheckAttributes(ctx, "org1", "u1", map[string]any{"region": region})
		if err != nil {
			t.Fatal(err)
		}
		if ok != want {
			t.Fatalf("region %s: got %v, want %v", region, ok, want)
		}
	}
	ok, err := env.eng.CheckAttributes(ctx, "org1", "u1", map[string]any{"region": []string{"us", "ca"}})
	if err != nil || !ok {
		t.Fatalf("values spread over both roles should pass, got %v %v", ok, err)
	}
}

func TestInactiveMemberLosesRoleRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "dispatcher", membership.StatusInvited)
	if err := env.store.PutScopeRule(ctx, &scoperule.Rule{
		ID: id.NewScopeRuleID(), OrganizationID: "org1",
		SubjectType: scoperule.SubjectRole, SubjectKey: "dispatcher",
		Constraints: map[string][]string{"region": {"us"}},
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := env.eng.CheckAttributes(ctx, "org1", "u1", map[string]any{"region": "us"})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("invited member should not inherit role scope rules")
	}
}

func TestSingleValuedAttributes(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t, WithConfig(Config{SingleValuedAttributes: true}))
	env.member(t, "org1", "u1", "dispatcher", membership.StatusActive)
	if err := env.store.PutScopeRule(ctx, &scoperule.Rule{
		ID: id.NewScopeRuleID(), OrganizationID: "org1",
		SubjectType: scoperule.SubjectUser, SubjectKey: "u1",
		Constraints: map[string][]string{"region": {"us", "ca"}},
	}); err != nil {
		t.Fatal(err)
	}

	if ok, _ := env.eng.CheckAttributes(ctx, "org1", "u1", map[string]any{"region": "ca"}); !ok {
		t.Fatal("scalar value should be allowed")
	}
	if ok, _ := env.eng.CheckAttributes(ctx, "org1", "u1", map[string]any{"region": []string{"us"}}); ok {
		t.Fatal("lists should be rejected when attributes are single valued")
	}
}
