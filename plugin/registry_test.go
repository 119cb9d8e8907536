package plugin

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
)

// testPlugin implements Plugin + AccessApproved + AfterDecision.
type testPlugin struct {
	approvedGrants int
	afterCalled    bool
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnAccessApproved(_ context.Context, _ *accessrequest.Request, grants []*grant.Grant) error {
	t.approvedGrants = len(grants)
	return nil
}

func (t *testPlugin) OnAfterDecision(_ context.Context, _, _ any) error {
	t.afterCalled = true
	return errors.New("hook failures are logged, not returned")
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	reg.EmitAccessApproved(ctx, &accessrequest.Request{ID: id.NewAccessRequestID()}, []*grant.Grant{{}, {}})
	if tp.approvedGrants != 2 {
		t.Fatalf("OnAccessApproved saw %d grants", tp.approvedGrants)
	}

	reg.EmitAfterDecision(ctx, nil, nil)
	if !tp.afterCalled {
		t.Fatal("OnAfterDecision was not called")
	}

	// Hooks with no listeners are no-ops.
	reg.EmitBeforeDecision(ctx, nil)
	reg.EmitAccessRequested(ctx, &accessrequest.Request{})
	reg.EmitAccessDenied(ctx, &accessrequest.Request{})
	reg.EmitGrantRevoked(ctx, id.NewGrantID())
	reg.EmitShutdown(ctx)
}

func TestNewRegistryNilLogger(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(&testPlugin{})
	reg.EmitAfterDecision(context.Background(), nil, nil)
}

// panickyPlugin panics in its decision hook.
type panickyPlugin struct{}

func (panickyPlugin) Name() string { return "panicky" }

func (panickyPlugin) OnAfterDecision(context.Context, any, any) error { panic("hook blew up") }

func TestRegistryRecoversHookPanic(t *testing.T) {
	reg := NewRegistry(slog.Default())
	tp := &testPlugin{}
	reg.Register(panickyPlugin{})
	reg.Register(tp)

	reg.EmitAfterDecision(context.Background(), nil, nil)
	if !tp.afterCalled {
		t.Fatal("plugins after a panicking hook should still be notified")
	}
}
