package bastion

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/role"
)

func TestUnion(t *testing.T) {
	tests := []struct {
		name string
		in   [][]string
		want []string
	}{
		{"empty", nil, []string{}},
		{"dedupes across sets", [][]string{{"b", "a"}, {"a", "c"}}, []string{"a", "b", "c"}},
		{"drops blanks", [][]string{{"", "x"}, {""}}, []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := union(tt.in...); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("union = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEffectivePermissionsCombineSources(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "dispatcher", membership.StatusActive)
	now := env.clock.Now()

	cr := &role.CustomRole{ID: id.NewCustomRoleID(), OrganizationID: "org1", Key: "billing", Permissions: []string{"invoice.read"}}
	if err := env.store.CreateCustomRole(ctx, cr); err != nil {
		t.Fatal(err)
	}
	if err := env.store.BindCustomRole(ctx, &role.Binding{ID: id.NewRoleBindingID(), OrganizationID: "org1", UserID: "u1", CustomRoleID: cr.ID}); err != nil {
		t.Fatal(err)
	}
	for _, g := range []*grant.Grant{
		{ID: id.NewGrantID(), OrganizationID: "org1", UserID: "u1", PermissionKey: "load.approve", ExpiresAt: now.Add(time.Hour)},
		{ID: id.NewGrantID(), OrganizationID: "org1", UserID: "u1", PermissionKey: "load.cancel", ExpiresAt: now.Add(-time.Minute)},
		{ID: id.NewGrantID(), OrganizationID: "org2", UserID: "u1", PermissionKey: "load.delete", ExpiresAt: now.Add(time.Hour)},
	} {
		if err := env.store.CreateGrant(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	got, err := env.eng.EffectivePermissions(ctx, "org1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"invoice.read", "load.approve", "load.read"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("effective set = %v, want %v", got, want)
	}

	for key, wantOK := range map[string]bool{
		"load.read":    true,
		"invoice.read": true,
		"load.approve": true,
		"load.cancel":  false,
		"load.delete":  false,
		"load.create":  false,
	} {
		ok, err := env.eng.HasPermission(ctx, "org1", "u1", key)
		if err != nil {
			t.Fatalf("%s: %v", key, err)
		}
		if ok != wantOK {
			t.Fatalf("HasPermission(%s) = %v, want %v", key, ok, wantOK)
		}
	}
}

func TestGrantOutlivesMembershipStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "broker_admin", membership.StatusSuspended)
	g := &grant.Grant{ID: id.NewGrantID(), OrganizationID: "org1", UserID: "u1", PermissionKey: "load.approve", ExpiresAt: env.clock.Now().Add(time.Hour)}
	if err := env.store.CreateGrant(ctx, g); err != nil {
		t.Fatal(err)
	}

	got, err := env.eng.EffectivePermissions(ctx, "org1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"load.approve"}) {
		t.Fatalf("suspended member should keep only the grant, got %v", got)
	}

	env.clock.Advance(time.Hour)
	got, err = env.eng.EffectivePermissions(ctx, "org1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("grant should lapse at expiry, got %v", got)
	}
}

func TestEffectivePermissionsValidation(t *testing.T) {
	env := newTestEngine(t)
	if _, err := env.eng.EffectivePermissions(context.Background(), "", "u1"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := env.eng.HasPermission(context.Background(), "org1", "", "load.read"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
