package bastion

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/bastion/apikey"
	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/entitlement"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/scoperule"
	"github.com/xraph/bastion/store/memory"
)

var testRoles = role.Table{
	"broker_admin": {"load.create", "load.read"},
	"dispatcher":   {"load.read"},
}

type recordingSink struct {
	mu      sync.Mutex
	records []*auditlog.Record
	err     error
}

func (s *recordingSink) Emit(_ context.Context, r *auditlog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *recordingSink) last() *auditlog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[len(s.records)-1]
}

// failingStore fails the lookups the checkers depend on.
type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) HasActiveEntitlement(context.Context, string, string) (bool, error) {
	return false, f.err
}

func (f *failingStore) GetMembership(context.Context, string, string) (*membership.Membership, error) {
	return nil, f.err
}

type testEnv struct {
	eng   *Engine
	store *memory.Store
	sink  *recordingSink
	clock *ManualClock
}

func newTestEngine(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	s := memory.New()
	sink := &recordingSink{}
	clk := NewManualClock(time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC))
	base := []Option{WithStore(s), WithRoleTable(testRoles), WithAuditSink(sink), WithClock(clk)}
	eng, err := NewEngine(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{eng: eng, store: s, sink: sink, clock: clk}
}

func (env *testEnv) entitle(t *testing.T, org, feature string) {
	t.Helper()
	err := env.store.ActivateEntitlement(context.Background(), &entitlement.Entitlement{
		ID: id.NewEntitlementID(), OrganizationID: org, FeatureKey: feature, PlanTier: "pro",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) member(t *testing.T, org, user, roleName string, status membership.Status) {
	t.Helper()
	err := env.store.PutMembership(context.Background(), &membership.Membership{
		ID: id.NewMembershipID(), OrganizationID: org, UserID: user, Role: roleName, Status: status,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestEntitlementAndPermissionScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.entitle(t, "org1", "loads.ltl")
	env.member(t, "org1", "u1", "broker_admin", membership.StatusActive)

	d := env.eng.Check(ctx, &DecisionRequest{
		OrganizationID: "org1", UserID: "u1",
		EntitlementKey: "loads.ltl", PermissionKey: "load.create",
	})
	if !d.Allowed || d.Code != CodeAllow {
		t.Fatalf("expected allow, got %+v", d)
	}

	d = env.eng.Check(ctx, &DecisionRequest{
		OrganizationID: "org1", UserID: "u1",
		EntitlementKey: "loads.ocean", PermissionKey: "load.create",
	})
	if d.Allowed {
		t.Fatal("expected deny")
	}
	if d.Reason != "Feature not enabled: loads.ocean" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
	if d.Missing == nil || d.Missing.Entitlement != "loads.ocean" {
		t.Fatalf("unexpected missing %+v", d.Missing)
	}
	if d.Status() != StatusFeatureNotEnabled || d.HTTPStatus() != http.StatusPaymentRequired {
		t.Fatalf("expected 402 feature_not_enabled, got %d %s", d.HTTPStatus(), d.Status())
	}
	if env.sink.count() != 2 {
		t.Fatalf("expected one audit record per decision, got %d", env.sink.count())
	}
}

func TestEntitlementToggleIsImmediate(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.entitle(t, "org1", "loads.ltl")

	ok, err := env.eng.HasEntitlement(ctx, "org1", "loads.ltl")
	if err != nil || !ok {
		t.Fatalf("expected entitlement, got %v %v", ok, err)
	}
	if err := env.store.DeactivateEntitlement(ctx, "org1", "loads.ltl", env.clock.Now()); err != nil {
		t.Fatal(err)
	}
	ok, err = env.eng.HasEntitlement(ctx, "org1", "loads.ltl")
	if err != nil || ok {
		t.Fatalf("expected no entitlement after deactivation, got %v %v", ok, err)
	}

	if _, err := env.eng.HasEntitlement(ctx, "", "loads.ltl"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestPermissionDenied(t *testing.T) {
	env := newTestEngine(t)
	env.member(t, "org1", "u2", "dispatcher", membership.StatusActive)

	d := env.eng.Check(context.Background(), &DecisionRequest{OrganizationID: "org1", UserID: "u2", PermissionKey: "load.create"})
	if d.Allowed || d.Code != CodeDenyPermission {
		t.Fatalf("expected permission denial, got %+v", d)
	}
	if d.Reason != "Permission denied: load.create" || d.Missing.Permission != "load.create" {
		t.Fatalf("unexpected denial %+v", d)
	}
	if d.HTTPStatus() != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", d.HTTPStatus())
	}
}

func TestInactiveMembershipGrantsNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "broker_admin", membership.StatusSuspended)

	perms, err := env.eng.EffectivePermissions(ctx, "org1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(perms) != 0 {
		t.Fatalf("suspended member should have no permissions, got %v", perms)
	}
	perms, err = env.eng.EffectivePermissions(ctx, "org1", "nobody")
	if err != nil || len(perms) != 0 {
		t.Fatalf("user without membership should have an empty set, got %v %v", perms, err)
	}
}

func TestCustomRolesAreAdditive(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "dispatcher", membership.StatusActive)

	cr := &role.CustomRole{ID: id.NewCustomRoleID(), OrganizationID: "org1", Key: "billing", Permissions: []string{"invoice.read", "load.read"}}
	if err := env.store.CreateCustomRole(ctx, cr); err != nil {
		t.Fatal(err)
	}
	if err := env.store.BindCustomRole(ctx, &role.Binding{ID: id.NewRoleBindingID(), OrganizationID: "org1", UserID: "u1", CustomRoleID: cr.ID}); err != nil {
		t.Fatal(err)
	}

	perms, err := env.eng.GetUserPermissions(ctx, "org1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(perms, ",") != "invoice.read,load.read" {
		t.Fatalf("unexpected effective set %v", perms)
	}
	ok, err := env.eng.HasPermission(ctx, "org1", "u1", "invoice.read")
	if err != nil || !ok {
		t.Fatalf("custom role permission should apply, got %v %v", ok, err)
	}
	if _, err := env.eng.HasPermission(ctx, "org1", "u1", ""); !errors.Is(err, ErrInvalidPermissionKey) {
		t.Fatalf("expected ErrInvalidPermissionKey, got %v", err)
	}
}

func TestAmbiguousPrincipal(t *testing.T) {
	env := newTestEngine(t)
	for name, req := range map[string]*DecisionRequest{
		"both":    {OrganizationID: "org1", UserID: "u1", APIKeyID: "akey_x", PermissionKey: "load.read"},
		"neither": {OrganizationID: "org1", PermissionKey: "load.read"},
	} {
		t.Run(name, func(t *testing.T) {
			d := env.eng.Check(context.Background(), req)
			if d.Allowed || d.Code != CodeDenyInvalidPrincipal {
				t.Fatalf("expected invalid principal, got %+v", d)
			}
			if !strings.Contains(d.Reason, "Ambiguous principal") {
				t.Fatalf("unexpected reason %q", d.Reason)
			}
			if d.Status() != StatusInvalidRequest || d.HTTPStatus() != http.StatusBadRequest {
				t.Fatalf("expected invalid_request/400, got %s/%d", d.Status(), d.HTTPStatus())
			}
		})
	}
}

func TestAPIKeyPath(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	now := env.clock.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	mk := func(active bool, expires *time.Time, org string) string {
		k := &apikey.APIKey{ID: id.NewAPIKeyID(), OrganizationID: org, Scopes: []string{"load.read"}, IsActive: active, ExpiresAt: expires}
		if err := env.store.CreateAPIKey(ctx, k); err != nil {
			t.Fatal(err)
		}
		return k.ID.String()
	}

	tests := []struct {
		name  string
		keyID string
		perm  string
		want  bool
	}{
		{"active in scope", mk(true, &future, "org1"), "load.read", true},
		{"active out of scope", mk(true, nil, "org1"), "load.create", false},
		{"inactive", mk(false, nil, "org1"), "load.read", false},
		{"expired but active", mk(true, &past, "org1"), "load.read", false},
		{"expires exactly now", mk(true, &now, "org1"), "load.read", false},
		{"other organization", mk(true, nil, "org2"), "load.read", false},
		{"missing", id.NewAPIKeyID().String(), "load.read", false},
		{"malformed", "not-a-key", "load.read", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := env.eng.Check(ctx, &DecisionRequest{OrganizationID: "org1", APIKeyID: tt.keyID, PermissionKey: tt.perm})
			if d.Allowed != tt.want {
				t.Fatalf("Allowed = %v, want %v (%+v)", d.Allowed, tt.want, d)
			}
		})
	}

	if _, err := env.eng.HasAPIKeyPermission(ctx, "akey_x", ""); !errors.Is(err, ErrInvalidPermissionKey) {
		t.Fatalf("expected ErrInvalidPermissionKey, got %v", err)
	}
}

func TestAttributesWithoutRulesDeny(t *testing.T) {
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "broker_admin", membership.StatusActive)

	d := env.eng.Check(context.Background(), &DecisionRequest{
		OrganizationID: "org1", UserID: "u1",
		Attributes: map[string]any{"region": "us"},
	})
	if d.Allowed || d.Code != CodeDenyAttributes {
		t.Fatalf("expected ABAC denial, got %+v", d)
	}
	if !strings.Contains(d.Reason, "ABAC attributes not allowed") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
	if d.Missing == nil || d.Missing.Attributes["region"] != "us" {
		t.Fatalf("unexpected missing %+v", d.Missing)
	}
}

func TestAttributeRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "broker_admin", membership.StatusActive)
	_ = env.store.PutScopeRule(ctx, &scoperule.Rule{
		ID: id.NewScopeRuleID(), OrganizationID: "org1",
		SubjectType: scoperule.SubjectRole, SubjectKey: "broker_admin",
		Constraints: map[string][]string{"region": {"us", "ca"}, "lob": {"ltl"}},
	})

	tests := []struct {
		name  string
		attrs map[string]any
		want  bool
	}{
		{"allowed value", map[string]any{"region": "us"}, true},
		{"two allowed attributes", map[string]any{"region": "ca", "lob": "ltl"}, true},
		{"disallowed value", map[string]any{"region": "eu"}, false},
		{"unconstrained attribute", map[string]any{"tier": "gold"}, false},
		{"multi-valued all allowed", map[string]any{"region": []any{"us", "ca"}}, true},
		{"multi-valued one disallowed", map[string]any{"region": []string{"us", "eu"}}, false},
		{"empty list", map[string]any{"region": []string{}}, false},
		{"nil value", map[string]any{"region": nil}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := env.eng.Check(ctx, &DecisionRequest{OrganizationID: "org1", UserID: "u1", Attributes: tt.attrs})
			if d.Allowed != tt.want {
				t.Fatalf("Allowed = %v, want %v (%+v)", d.Allowed, tt.want, d)
			}
		})
	}
}

func TestUserRuleOverridesRoleRule(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "broker_admin", membership.StatusActive)
	_ = env.store.PutScopeRule(ctx, &scoperule.Rule{
		ID: id.NewScopeRuleID(), OrganizationID: "org1",
		SubjectType: scoperule.SubjectRole, SubjectKey: "broker_admin",
		Constraints: map[string][]string{"region": {"us"}, "lob": {"ltl"}},
	})
	_ = env.store.PutScopeRule(ctx, &scoperule.Rule{
		ID: id.NewScopeRuleID(), OrganizationID: "org1",
		SubjectType: scoperule.SubjectUser, SubjectKey: "u1",
		Constraints: map[string][]string{"region": {"eu"}},
	})

	if ok, _ := env.eng.CheckAttributes(ctx, "org1", "u1", map[string]any{"region": "eu"}); !ok {
		t.Error("user rule should allow eu")
	}
	if ok, _ := env.eng.CheckAttributes(ctx, "org1", "u1", map[string]any{"region": "us"}); ok {
		t.Error("user rule should override the role rule for region")
	}
	if ok, _ := env.eng.CheckAttributes(ctx, "org1", "u1", map[string]any{"lob": "ltl"}); !ok {
		t.Error("role rule should still apply to attributes the user rule does not constrain")
	}
	if _, err := env.eng.CheckAttributes(ctx, "org1", "u1", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty attributes, got %v", err)
	}
}

func TestAttributesSkippedForAPIKeys(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	k := &apikey.APIKey{ID: id.NewAPIKeyID(), OrganizationID: "org1", Scopes: []string{"load.read"}, IsActive: true}
	_ = env.store.CreateAPIKey(ctx, k)

	d := env.eng.Check(ctx, &DecisionRequest{
		OrganizationID: "org1", APIKeyID: k.ID.String(), PermissionKey: "load.read",
		Attributes: map[string]any{"region": "us"},
	})
	if !d.Allowed {
		t.Fatalf("attributes apply to user principals only, got %+v", d)
	}
}

func TestStoreFailureFailsClosed(t *testing.T) {
	s := &failingStore{Store: memory.New(), err: errors.New("connection reset")}
	sink := &recordingSink{}
	eng, err := NewEngine(WithStore(s), WithAuditSink(sink), WithRoleTable(testRoles))
	if err != nil {
		t.Fatal(err)
	}

	for name, req := range map[string]*DecisionRequest{
		"entitlement": {OrganizationID: "org1", UserID: "u1", EntitlementKey: "loads.ltl"},
		"permission":  {OrganizationID: "org1", UserID: "u1", PermissionKey: "load.read"},
		"attributes":  {OrganizationID: "org1", UserID: "u1", Attributes: map[string]any{"region": "us"}},
	} {
		t.Run(name, func(t *testing.T) {
			d := eng.Check(context.Background(), req)
			if d.Allowed || d.Code != CodeDenyInternal || d.Reason != "internal error during access check" {
				t.Fatalf("expected internal denial, got %+v", d)
			}
			if sink.last().Decision != string(CodeDenyInternal) {
				t.Fatalf("internal denial must be audited, got %+v", sink.last())
			}
		})
	}

	if ok, err := eng.HasEntitlement(context.Background(), "org1", "loads.ltl"); ok || err == nil {
		t.Fatalf("expected false with error, got %v %v", ok, err)
	}
}

func TestAuditFailureDoesNotChangeDecision(t *testing.T) {
	env := newTestEngine(t)
	env.sink.err = errors.New("sink down")
	env.member(t, "org1", "u1", "dispatcher", membership.StatusActive)

	d := env.eng.Check(context.Background(), &DecisionRequest{OrganizationID: "org1", UserID: "u1", PermissionKey: "load.read"})
	if !d.Allowed {
		t.Fatalf("audit failure must not flip the decision, got %+v", d)
	}
	if env.sink.count() != 1 {
		t.Fatalf("expected one emission attempt, got %d", env.sink.count())
	}
}

func TestAuditRecordShape(t *testing.T) {
	env := newTestEngine(t)
	d := env.eng.Check(context.Background(), &DecisionRequest{
		OrganizationID: "org1", UserID: "u1", PermissionKey: "load.create",
		Resource: "load", Action: "create",
		Metadata: RequestMetadata{IP: "10.0.0.1", UserAgent: "curl/8", TraceID: "trace-123"},
	})
	rec := env.sink.last()
	if rec.ID.String() != d.AuditID {
		t.Fatalf("decision should reference its audit record, %q != %q", rec.ID, d.AuditID)
	}
	if rec.OrganizationID != "org1" || rec.UserID != "u1" || rec.PermissionKey != "load.create" {
		t.Fatalf("unexpected principal fields %+v", rec)
	}
	if rec.Resource != "load" || rec.Action != "create" || rec.RequestIP != "10.0.0.1" || rec.UserAgent != "curl/8" || rec.TraceID != "trace-123" {
		t.Fatalf("unexpected request fields %+v", rec)
	}
	if rec.Allowed || rec.Decision != string(CodeDenyPermission) || rec.Reason != d.Reason {
		t.Fatalf("unexpected verdict fields %+v", rec)
	}
	if !rec.CreatedAt.Equal(env.clock.Now()) {
		t.Fatalf("record should be stamped with the decision instant, got %v", rec.CreatedAt)
	}

	env.eng.Check(context.Background(), &DecisionRequest{OrganizationID: "org1", UserID: "u1"})
	if env.sink.last().TraceID == "" {
		t.Fatal("a trace id should be minted when none is supplied")
	}
}

func TestDefaultSinkWritesToStore(t *testing.T) {
	s := memory.New()
	eng, err := NewEngine(WithStore(s))
	if err != nil {
		t.Fatal(err)
	}
	eng.Check(context.Background(), &DecisionRequest{OrganizationID: "org1", UserID: "u1", PermissionKey: "load.read"})
	n, _ := s.CountAuditRecords(context.Background(), &auditlog.QueryFilter{OrganizationID: "org1"})
	if n != 1 {
		t.Fatalf("expected 1 stored audit record, got %d", n)
	}
}

func TestEnforce(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "broker_admin", membership.StatusActive)

	if err := env.eng.Enforce(ctx, &DecisionRequest{OrganizationID: "org1", UserID: "u1", PermissionKey: "load.create"}); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}

	err := env.eng.Enforce(ctx, &DecisionRequest{OrganizationID: "org1", UserID: "u1", EntitlementKey: "loads.ocean"})
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *DeniedError, got %v", err)
	}
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatal("DeniedError should wrap ErrAccessDenied")
	}
	if denied.Status() != StatusFeatureNotEnabled || denied.HTTPStatus() != http.StatusPaymentRequired {
		t.Fatalf("unexpected gate status %s/%d", denied.Status(), denied.HTTPStatus())
	}

	err = env.eng.Enforce(ctx, &DecisionRequest{OrganizationID: "org1", UserID: "u1", PermissionKey: "billing.manage"})
	if !errors.As(err, &denied) || denied.Status() != StatusForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestOrganizationFromContext(t *testing.T) {
	env := newTestEngine(t)
	env.member(t, "org1", "u1", "dispatcher", membership.StatusActive)

	ctx := WithOrganization(context.Background(), "org1")
	d := env.eng.Check(ctx, &DecisionRequest{UserID: "u1", PermissionKey: "load.read"})
	if !d.Allowed {
		t.Fatalf("organization should come from context, got %+v", d)
	}

	d = env.eng.Check(context.Background(), &DecisionRequest{UserID: "u1", PermissionKey: "load.read"})
	if d.Code != CodeDenyInvalidRequest || d.HTTPStatus() != http.StatusBadRequest {
		t.Fatalf("expected invalid request without organization, got %+v", d)
	}
}

func TestNilRequestIsDenied(t *testing.T) {
	env := newTestEngine(t)
	d := env.eng.Check(context.Background(), nil)
	if d.Allowed {
		t.Fatal("nil request must be denied")
	}
	if env.sink.count() != 1 {
		t.Fatal("nil request must still be audited")
	}
}

func TestGetOrganizationEntitlementsSorted(t *testing.T) {
	env := newTestEngine(t)
	env.entitle(t, "org1", "loads.ltl")
	env.entitle(t, "org1", "invoices")
	env.entitle(t, "org2", "loads.ocean")

	keys, err := env.eng.GetOrganizationEntitlements(context.Background(), "org1")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(keys, ",") != "invoices,loads.ltl" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestAuditRecordIsolatedFromCallerAttributes(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	eng, err := NewEngine(WithStore(s), WithRoleTable(testRoles))
	if err != nil {
		t.Fatal(err)
	}

	attrs := map[string]any{"region": "us", "lanes": []any{"east", "west"}}
	d := eng.Check(ctx, &DecisionRequest{OrganizationID: "org1", UserID: "u1", Attributes: attrs})
	if d.Code != CodeDenyAttributes {
		t.Fatalf("expected attribute denial, got %+v", d)
	}

	attrs["region"] = "eu"
	attrs["lanes"].([]any)[0] = "north"
	d.Missing.Attributes["region"] = "ca"

	recs, err := s.ListAuditRecords(ctx, &auditlog.QueryFilter{OrganizationID: "org1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	got := recs[0].Attributes
	if got["region"] != "us" {
		t.Fatalf("stored region changed after the call: %v", got["region"])
	}
	if lanes := got["lanes"].([]any); lanes[0] != "east" {
		t.Fatalf("stored lanes changed after the call: %v", lanes)
	}

	got["region"] = "mx"
	again, _ := s.ListAuditRecords(ctx, &auditlog.QueryFilter{OrganizationID: "org1"})
	if again[0].Attributes["region"] != "us" {
		t.Fatalf("listed record shares storage with the store: %v", again[0].Attributes)
	}
}

// panickingStore panics inside the entitlement lookup.
type panickingStore struct {
	*memory.Store
}

func (panickingStore) HasActiveEntitlement(context.Context, string, string) (bool, error) {
	panic("driver blew up")
}

func TestPanickingCheckerFailsClosed(t *testing.T) {
	sink := &recordingSink{}
	eng, err := NewEngine(WithStore(panickingStore{Store: memory.New()}), WithAuditSink(sink))
	if err != nil {
		t.Fatal(err)
	}

	req := &DecisionRequest{OrganizationID: "org1", UserID: "u1", EntitlementKey: "loads.ltl"}
	d := eng.Check(context.Background(), req)
	if d.Allowed || d.Code != CodeDenyInternal {
		t.Fatalf("expected internal denial, got %+v", d)
	}
	if sink.count() != 1 || sink.last().Decision != string(CodeDenyInternal) {
		t.Fatalf("internal denial must be audited once, got %d records", sink.count())
	}

	var denied *DeniedError
	if err := eng.Enforce(context.Background(), req); !errors.As(err, &denied) || denied.Decision.Code != CodeDenyInternal {
		t.Fatalf("expected DeniedError with internal code, got %v", err)
	}
}

func TestPanickingSinkDoesNotChangeDecision(t *testing.T) {
	s := memory.New()
	sink := auditlog.SinkFunc(func(context.Context, *auditlog.Record) error { panic("sink exploded") })
	eng, err := NewEngine(WithStore(s), WithRoleTable(testRoles), WithAuditSink(sink))
	if err != nil {
		t.Fatal(err)
	}
	d := eng.Check(context.Background(), &DecisionRequest{OrganizationID: "org1", UserID: "u1", PermissionKey: "load.read"})
	if d.Allowed || d.Code != CodeDenyPermission {
		t.Fatalf("expected the permission denial to stand, got %+v", d)
	}
}
