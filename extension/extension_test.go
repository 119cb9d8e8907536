package extension

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/store/memory"
)

func TestNew_AppliesDefaultsThenOptions(t *testing.T) {
	e := New(WithBasePath("/authz"), WithDisableMigrate(), WithGrantPurgeInterval(time.Minute))

	if e.config.BasePath != "/authz" {
		t.Fatalf("expected base path /authz, got %q", e.config.BasePath)
	}
	if !e.config.DisableMigrate {
		t.Fatal("expected migrate disabled")
	}
	if e.config.MaxElevationHours != 720 {
		t.Fatalf("expected default max elevation 720, got %d", e.config.MaxElevationHours)
	}
	if e.config.GrantPurgeInterval != time.Minute {
		t.Fatalf("expected purge interval 1m, got %s", e.config.GrantPurgeInterval)
	}
	if e.Name() != "bastion" {
		t.Fatalf("expected name bastion, got %q", e.Name())
	}
}

func TestConfig_EngineConfig(t *testing.T) {
	cfg := Config{MaxElevationHours: 48, ElevationRequestsPerHour: 3, SingleValuedAttributes: true}
	got := cfg.engineConfig()
	want := bastion.Config{MaxElevationHours: 48, ElevationRequestsPerHour: 3, SingleValuedAttributes: true}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestStartStop_NotInitialized(t *testing.T) {
	e := New()
	if err := e.Start(context.Background()); err == nil {
		t.Fatal("expected error starting an unregistered extension")
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := e.Health(context.Background()); err == nil {
		t.Fatal("expected health error for an unregistered extension")
	}
}

func TestPurger_RemovesExpiredGrants(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	clk := bastion.NewManualClock(time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC))
	eng, err := bastion.NewEngine(bastion.WithStore(s), bastion.WithClock(clk))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	expired := &grant.Grant{
		ID:             id.NewGrantID(),
		OrganizationID: "org1",
		UserID:         "u1",
		PermissionKey:  "load.approve",
		ExpiresAt:      clk.Now().Add(-time.Minute),
	}
	live := &grant.Grant{
		ID:             id.NewGrantID(),
		OrganizationID: "org1",
		UserID:         "u1",
		PermissionKey:  "load.read",
		ExpiresAt:      clk.Now().Add(time.Hour),
	}
	for _, g := range []*grant.Grant{expired, live} {
		if err := s.CreateGrant(ctx, g); err != nil {
			t.Fatalf("create grant: %v", err)
		}
	}

	e := New(WithDisableMigrate())
	e.eng = eng
	if err := e.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.startPurger(5 * time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for {
		list, err := s.ListGrants(ctx, &grant.ListFilter{OrganizationID: "org1"})
		if err != nil {
			t.Fatalf("list grants: %v", err)
		}
		if len(list) == 1 {
			if list[0].ID.String() != live.ID.String() {
				t.Fatalf("expected the live grant to remain, got %s", list[0].PermissionKey)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected expired grant purged, still have %d grants", len(list))
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := e.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if e.stopPurge != nil {
		t.Fatal("expected purger stopped")
	}
}
