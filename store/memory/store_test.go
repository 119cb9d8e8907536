package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/apikey"
	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/entitlement"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/scoperule"
	"github.com/xraph/bastion/store"
)

func TestEntitlementActivationReplacesActiveRow(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &entitlement.Entitlement{ID: id.NewEntitlementID(), OrganizationID: "org1", FeatureKey: "loads.ltl", PlanTier: "starter"}
	if err := s.ActivateEntitlement(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := &entitlement.Entitlement{ID: id.NewEntitlementID(), OrganizationID: "org1", FeatureKey: "loads.ltl", PlanTier: "pro"}
	if err := s.ActivateEntitlement(ctx, second); err != nil {
		t.Fatal(err)
	}

	active, _ := s.ListEntitlements(ctx, &entitlement.ListFilter{OrganizationID: "org1", ActiveOnly: true})
	if len(active) != 1 || active[0].PlanTier != "pro" {
		t.Fatalf("expected exactly the pro row active, got %+v", active)
	}
	all, _ := s.ListEntitlements(ctx, &entitlement.ListFilter{OrganizationID: "org1"})
	if len(all) != 2 {
		t.Fatalf("expected history to be kept, got %d rows", len(all))
	}

	if err := s.DeactivateEntitlement(ctx, "org1", "loads.ltl", time.Now()); err != nil {
		t.Fatal(err)
	}
	ok, _ := s.HasActiveEntitlement(ctx, "org1", "loads.ltl")
	if ok {
		t.Fatal("entitlement should be inactive")
	}
	if err := s.DeactivateEntitlement(ctx, "org1", "loads.ltl", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMembershipUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()

	m := &membership.Membership{ID: id.NewMembershipID(), OrganizationID: "org1", UserID: "u1", Role: "viewer", Status: membership.StatusActive}
	if err := s.PutMembership(ctx, m); err != nil {
		t.Fatal(err)
	}
	firstID := m.ID
	if err := s.PutMembership(ctx, &membership.Membership{ID: id.NewMembershipID(), OrganizationID: "org1", UserID: "u1", Role: "broker_admin", Status: membership.StatusActive}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetMembership(ctx, "org1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != "broker_admin" || got.ID != firstID {
		t.Fatalf("upsert should replace role and keep id, got %+v", got)
	}
	if _, err := s.GetMembership(ctx, "org2", "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCustomRoleBindings(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &role.CustomRole{ID: id.NewCustomRoleID(), OrganizationID: "org1", Key: "auditor", Permissions: []string{"invoice.read"}}
	if err := s.CreateCustomRole(ctx, r); err != nil {
		t.Fatal(err)
	}
	dup := &role.CustomRole{ID: id.NewCustomRoleID(), OrganizationID: "org1", Key: "auditor"}
	if err := s.CreateCustomRole(ctx, dup); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	b := &role.Binding{ID: id.NewRoleBindingID(), OrganizationID: "org1", UserID: "u1", CustomRoleID: r.ID}
	if err := s.BindCustomRole(ctx, b); err != nil {
		t.Fatal(err)
	}
	roles, _ := s.ListCustomRolesForUser(ctx, "org1", "u1")
	if len(roles) != 1 || roles[0].Key != "auditor" {
		t.Fatalf("unexpected roles %+v", roles)
	}

	// Cross-organization binding is refused.
	other := &role.Binding{ID: id.NewRoleBindingID(), OrganizationID: "org2", UserID: "u1", CustomRoleID: r.ID}
	if err := s.BindCustomRole(ctx, other); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteCustomRole(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	roles, _ = s.ListCustomRolesForUser(ctx, "org1", "u1")
	if len(roles) != 0 {
		t.Fatal("bindings should be removed with the role")
	}
}

func TestGrantExpiryIsStrict(t *testing.T) {
	ctx := context.Background()
	s := New()
	expiry := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	g := &grant.Grant{ID: id.NewGrantID(), OrganizationID: "org1", UserID: "u1", PermissionKey: "invoice.export", ExpiresAt: expiry}
	if err := s.CreateGrant(ctx, g); err != nil {
		t.Fatal(err)
	}

	if ok, _ := s.HasActiveGrant(ctx, "org1", "u1", "invoice.export", expiry.Add(-time.Second)); !ok {
		t.Error("grant should be active before expiry")
	}
	if ok, _ := s.HasActiveGrant(ctx, "org1", "u1", "invoice.export", expiry); ok {
		t.Error("grant must not be active at expiry")
	}
	if ok, _ := s.HasActiveGrant(ctx, "org2", "u1", "invoice.export", expiry.Add(-time.Second)); ok {
		t.Error("grant must not leak across organizations")
	}

	n, _ := s.DeleteExpiredGrants(ctx, expiry)
	if n != 1 {
		t.Fatalf("expected 1 purged grant, got %d", n)
	}
}

func TestApproveAccessRequestOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	req := &accessrequest.Request{
		ID:             id.NewAccessRequestID(),
		OrganizationID: "org1",
		UserID:         "u1",
		PermissionKeys: []string{"invoice.export"},
		Status:         accessrequest.StatusPending,
		DurationHours:  2,
	}
	if err := s.CreateAccessRequest(ctx, req); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	approval := func() *accessrequest.Approval {
		return &accessrequest.Approval{
			RequestID:  req.ID,
			ApproverID: "admin1",
			ApprovedAt: now,
			ExpiresAt:  now.Add(2 * time.Hour),
			Grants: []*grant.Grant{{
				ID: id.NewGrantID(), OrganizationID: "org1", UserID: "u1",
				PermissionKey: "invoice.export", ExpiresAt: now.Add(2 * time.Hour), RequestID: req.ID,
			}},
		}
	}

	if err := s.ApproveAccessRequest(ctx, approval()); err != nil {
		t.Fatal(err)
	}
	if err := s.ApproveAccessRequest(ctx, approval()); !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	grants, _ := s.ListGrants(ctx, &grant.ListFilter{RequestID: req.ID})
	if len(grants) != 1 {
		t.Fatalf("expected one grant, got %d", len(grants))
	}
	if err := s.DenyAccessRequest(ctx, req.ID, "admin2", now); !errors.Is(err, store.ErrNotPending) {
		t.Fatalf("expected ErrNotPending on deny after approve, got %v", err)
	}
	got, _ := s.GetAccessRequest(ctx, req.ID)
	if got.Status != accessrequest.StatusApproved || got.ApproverID != "admin1" || got.ApprovedAt == nil {
		t.Fatalf("unexpected request state %+v", got)
	}
}

func TestConcurrentApprovalGrantsOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	req := &accessrequest.Request{ID: id.NewAccessRequestID(), OrganizationID: "org1", UserID: "u1", Status: accessrequest.StatusPending}
	_ = s.CreateAccessRequest(ctx, req)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := time.Now()
			err := s.ApproveAccessRequest(ctx, &accessrequest.Approval{
				RequestID: req.ID, ApproverID: "admin", ApprovedAt: now, ExpiresAt: now.Add(time.Hour),
				Grants: []*grant.Grant{{ID: id.NewGrantID(), OrganizationID: "org1", UserID: "u1", PermissionKey: "p", ExpiresAt: now.Add(time.Hour)}},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one approval to succeed, got %d", succeeded)
	}
	grants, _ := s.ListGrants(ctx, &grant.ListFilter{OrganizationID: "org1"})
	if len(grants) != 1 {
		t.Fatalf("expected one grant, got %d", len(grants))
	}
}

func TestAPIKeyDeactivate(t *testing.T) {
	ctx := context.Background()
	s := New()
	k := &apikey.APIKey{ID: id.NewAPIKeyID(), OrganizationID: "org1", Scopes: []string{"load.read"}, IsActive: true}
	if err := s.CreateAPIKey(ctx, k); err != nil {
		t.Fatal(err)
	}
	if err := s.DeactivateAPIKey(ctx, k.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetAPIKey(ctx, k.ID)
	if got.IsActive {
		t.Fatal("key should be inactive")
	}
}

func TestScopeRuleUpsertAndLookup(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &scoperule.Rule{ID: id.NewScopeRuleID(), OrganizationID: "org1", SubjectType: scoperule.SubjectRole, SubjectKey: "broker", Constraints: map[string][]string{"region": {"us"}}}
	_ = s.PutScopeRule(ctx, r)
	replacement := &scoperule.Rule{ID: id.NewScopeRuleID(), OrganizationID: "org1", SubjectType: scoperule.SubjectRole, SubjectKey: "broker", Constraints: map[string][]string{"region": {"eu"}}}
	_ = s.PutScopeRule(ctx, replacement)

	rules, _ := s.ListScopeRulesFor(ctx, "org1", scoperule.SubjectRole, []string{"broker", "other"})
	if len(rules) != 1 {
		t.Fatalf("expected one rule after upsert, got %d", len(rules))
	}
	if rules[0].ID != r.ID || rules[0].Constraints["region"][0] != "eu" {
		t.Fatalf("upsert should keep id and replace constraints, got %+v", rules[0])
	}
	if rules, _ := s.ListScopeRulesFor(ctx, "org1", scoperule.SubjectUser, []string{"broker"}); len(rules) != 0 {
		t.Fatal("subject type must be part of the lookup")
	}
}

func TestAuditNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now()
	for i, d := range []string{"allow", "deny_permission", "allow"} {
		_ = s.AppendAuditRecord(ctx, &auditlog.Record{ID: id.NewAuditRecordID(), OrganizationID: "org1", Decision: d, CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}
	list, _ := s.ListAuditRecords(ctx, &auditlog.QueryFilter{OrganizationID: "org1", Limit: 2})
	if len(list) != 2 || !list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Fatalf("expected newest first, got %+v", list)
	}
	n, _ := s.CountAuditRecords(ctx, &auditlog.QueryFilter{Decision: "allow"})
	if n != 2 {
		t.Fatalf("expected 2 allow records, got %d", n)
	}
}
