package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/entitlement"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store/memory"
)

// counterValue returns the value of the counter family name whose label
// matches labelValue, or -1 when absent.
func counterValue(t *testing.T, reg *prometheus.Registry, name, labelValue string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue == "" && len(m.GetLabel()) == 0 {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}

func TestNew_RejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestPlugin_CountsDecisionsAndElevation(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	p, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}

	s := memory.New()
	eng, err := bastion.NewEngine(
		bastion.WithStore(s),
		bastion.WithRoleTable(role.Table{"dispatcher": {"load.read"}}),
		bastion.WithPlugin(p),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ActivateEntitlement(ctx, &entitlement.Entitlement{
		ID: id.NewEntitlementID(), OrganizationID: "org1", FeatureKey: "loads.ltl",
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutMembership(ctx, &membership.Membership{
		ID: id.NewMembershipID(), OrganizationID: "org1", UserID: "u1",
		Role: "dispatcher", Status: membership.StatusActive,
	}); err != nil {
		t.Fatal(err)
	}

	eng.Check(ctx, &bastion.DecisionRequest{OrganizationID: "org1", UserID: "u1", EntitlementKey: "loads.ltl", PermissionKey: "load.read"})
	eng.Check(ctx, &bastion.DecisionRequest{OrganizationID: "org1", UserID: "u1", EntitlementKey: "loads.ocean"})
	eng.Check(ctx, &bastion.DecisionRequest{OrganizationID: "org1", UserID: "u1", PermissionKey: "load.approve"})

	if got := counterValue(t, reg, "bastion_decisions_total", string(bastion.CodeAllow)); got != 1 {
		t.Fatalf("expected 1 allow, got %v", got)
	}
	if got := counterValue(t, reg, "bastion_decisions_total", string(bastion.CodeDenyEntitlement)); got != 1 {
		t.Fatalf("expected 1 entitlement denial, got %v", got)
	}
	if got := counterValue(t, reg, "bastion_decisions_total", string(bastion.CodeDenyPermission)); got != 1 {
		t.Fatalf("expected 1 permission denial, got %v", got)
	}

	req, err := eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"load.approve", "load.cancel"}, "month end", 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.ApproveTemporaryAccess(ctx, req.ID, "admin", []string{"load.approve", "load.cancel"}, 2); err != nil {
		t.Fatal(err)
	}
	other, err := eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"load.delete"}, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.DenyTemporaryAccess(ctx, other.ID, "admin"); err != nil {
		t.Fatal(err)
	}

	if got := counterValue(t, reg, "bastion_elevation_events_total", "requested"); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := counterValue(t, reg, "bastion_elevation_events_total", "approved"); got != 1 {
		t.Fatalf("expected 1 approval, got %v", got)
	}
	if got := counterValue(t, reg, "bastion_elevation_events_total", "denied"); got != 1 {
		t.Fatalf("expected 1 denial, got %v", got)
	}
	if got := counterValue(t, reg, "bastion_grants_issued_total", ""); got != 2 {
		t.Fatalf("expected 2 grants issued, got %v", got)
	}
}

func TestOnAfterDecision_IgnoresForeignValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.OnAfterDecision(context.Background(), nil, "not a decision"); err != nil {
		t.Fatal(err)
	}
	if got := counterValue(t, reg, "bastion_decisions_total", string(bastion.CodeAllow)); got != -1 {
		t.Fatalf("expected no series, got %v", got)
	}
}
