package bastion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/plugin"
)

func TestElevationLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	env.member(t, "org1", "u2", "dispatcher", membership.StatusActive)

	req, err := env.eng.RequestTemporaryAccess(ctx, "org1", "u2", []string{"billing.manage"}, "month-end close", 2)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != accessrequest.StatusPending {
		t.Fatalf("new request should be pending, got %s", req.Status)
	}

	ok, _ := env.eng.HasPermission(ctx, "org1", "u2", "billing.manage")
	if ok {
		t.Fatal("a pending request must not grant anything")
	}

	grants, err := env.eng.ApproveTemporaryAccess(ctx, req.ID, "admin1", []string{"billing.manage"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 || grants[0].GrantedBy != "admin1" || grants[0].RequestID != req.ID {
		t.Fatalf("unexpected grants %+v", grants)
	}
	if !grants[0].ExpiresAt.Equal(env.clock.Now().Add(2 * time.Hour)) {
		t.Fatalf("grant expiry should be approval time plus duration, got %v", grants[0].ExpiresAt)
	}

	ok, _ = env.eng.HasPermission(ctx, "org1", "u2", "billing.manage")
	if !ok {
		t.Fatal("approved grant should be effective")
	}
	d := env.eng.Check(ctx, &DecisionRequest{OrganizationID: "org1", UserID: "u2", PermissionKey: "billing.manage"})
	if !d.Allowed {
		t.Fatalf("decision should honor the grant, got %+v", d)
	}

	got, err := env.eng.GetAccessRequest(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != accessrequest.StatusApproved || got.ApproverID != "admin1" || got.ApprovedAt == nil {
		t.Fatalf("request should be approved, got %+v", got)
	}

	env.clock.Advance(3 * time.Hour)
	ok, _ = env.eng.HasPermission(ctx, "org1", "u2", "billing.manage")
	if ok {
		t.Fatal("grant must stop applying after expiry")
	}
	perms, _ := env.eng.EffectivePermissions(ctx, "org1", "u2")
	for _, p := range perms {
		if p == "billing.manage" {
			t.Fatal("expired grant leaked into the effective set")
		}
	}
}

func TestGrantExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	req, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"billing.manage"}, "", 1)
	if _, err := env.eng.ApproveTemporaryAccess(ctx, req.ID, "admin1", []string{"billing.manage"}, 1); err != nil {
		t.Fatal(err)
	}

	env.clock.Advance(time.Hour - time.Nanosecond)
	if ok, _ := env.eng.HasPermission(ctx, "org1", "u1", "billing.manage"); !ok {
		t.Fatal("grant should apply just before expiry")
	}
	env.clock.Advance(time.Nanosecond)
	if ok, _ := env.eng.HasPermission(ctx, "org1", "u1", "billing.manage"); ok {
		t.Fatal("grant must not apply at the expiry instant")
	}
}

func TestApproveTwice(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	req, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u2", []string{"billing.manage"}, "", 2)

	if _, err := env.eng.ApproveTemporaryAccess(ctx, req.ID, "admin1", []string{"billing.manage"}, 2); err != nil {
		t.Fatal(err)
	}
	_, err := env.eng.ApproveTemporaryAccess(ctx, req.ID, "admin2", []string{"billing.manage"}, 2)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}

	grants, _ := env.store.ListGrants(ctx, &grant.ListFilter{RequestID: req.ID})
	if len(grants) != 1 {
		t.Fatalf("second approval must not create grants, got %d", len(grants))
	}
}

func TestConcurrentApprovalGrantsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	req, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u2", []string{"billing.manage", "invoice.void"}, "", 4)

	var wins, already atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.eng.ApproveTemporaryAccess(ctx, req.ID, "admin1", []string{"billing.manage", "invoice.void"}, 4)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrAlreadyProcessed):
				already.Add(1)
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || already.Load() != 7 {
		t.Fatalf("expected exactly one winner, got %d wins %d already", wins.Load(), already.Load())
	}
	grants, _ := env.store.ListGrants(ctx, &grant.ListFilter{RequestID: req.ID})
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}
}

func TestApproverOverridesKeysAndDuration(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	req, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u2", []string{"billing.manage", "invoice.void"}, "", 48)

	grants, err := env.eng.ApproveTemporaryAccess(ctx, req.ID, "admin1", []string{"invoice.void", "invoice.void"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 1 || grants[0].PermissionKey != "invoice.void" {
		t.Fatalf("approver's keys should be granted once each, got %+v", grants)
	}
	got, _ := env.eng.GetAccessRequest(ctx, req.ID)
	if !got.ExpiresAt.Equal(env.clock.Now().Add(time.Hour)) {
		t.Fatalf("request expiry should follow the approved duration, got %v", got.ExpiresAt)
	}
}

func TestElevationValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)

	tests := []struct {
		name  string
		keys  []string
		hours int
		want  error
	}{
		{"zero duration", []string{"a.b"}, 0, ErrInvalidDuration},
		{"negative duration", []string{"a.b"}, -1, ErrInvalidDuration},
		{"over maximum", []string{"a.b"}, 721, ErrInvalidDuration},
		{"no keys", nil, 1, ErrInvalidPermissionKey},
		{"blank key", []string{"a.b", " "}, 1, ErrInvalidPermissionKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.eng.RequestTemporaryAccess(ctx, "org1", "u1", tt.keys, "", tt.hours)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := env.eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"a.b"}, "", 720); err != nil {
		t.Fatalf("maximum duration should be accepted, got %v", err)
	}
	if _, err := env.eng.RequestTemporaryAccess(ctx, "", "u1", []string{"a.b"}, "", 1); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	req, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"a.b"}, "", 1)
	if _, err := env.eng.ApproveTemporaryAccess(ctx, req.ID, "admin1", []string{"a.b"}, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration on approve, got %v", err)
	}
	if _, err := env.eng.ApproveTemporaryAccess(ctx, id.NewAccessRequestID(), "admin1", []string{"a.b"}, 1); !errors.Is(err, ErrAccessRequestNotFound) {
		t.Fatalf("expected ErrAccessRequestNotFound, got %v", err)
	}
}

func TestConfiguredMaximumDuration(t *testing.T) {
	env := newTestEngine(t, WithConfig(Config{MaxElevationHours: 8}))
	_, err := env.eng.RequestTemporaryAccess(context.Background(), "org1", "u1", []string{"a.b"}, "", 9)
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestDenyRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	req, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u2", []string{"billing.manage"}, "", 2)

	if err := env.eng.DenyTemporaryAccess(ctx, req.ID, "admin1"); err != nil {
		t.Fatal(err)
	}
	got, _ := env.eng.GetAccessRequest(ctx, req.ID)
	if got.Status != accessrequest.StatusDenied || got.DeniedAt == nil {
		t.Fatalf("request should be denied, got %+v", got)
	}
	if _, err := env.eng.ApproveTemporaryAccess(ctx, req.ID, "admin1", []string{"billing.manage"}, 2); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("denied request cannot be approved, got %v", err)
	}
	if err := env.eng.DenyTemporaryAccess(ctx, req.ID, "admin1"); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestRevokeAndPurgeGrants(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	req, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u2", []string{"billing.manage", "invoice.void"}, "", 1)
	grants, err := env.eng.ApproveTemporaryAccess(ctx, req.ID, "admin1", []string{"billing.manage", "invoice.void"}, 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := env.eng.RevokeGrant(ctx, grants[0].ID); err != nil {
		t.Fatal(err)
	}
	if ok, _ := env.eng.HasPermission(ctx, "org1", "u2", grants[0].PermissionKey); ok {
		t.Fatal("revoked grant should not apply")
	}
	if err := env.eng.RevokeGrant(ctx, grants[0].ID); !errors.Is(err, ErrGrantNotFound) {
		t.Fatalf("expected ErrGrantNotFound, got %v", err)
	}

	env.clock.Advance(2 * time.Hour)
	n, err := env.eng.PurgeExpiredGrants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged grant, got %d", n)
	}
}

func TestListAccessRequests(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t)
	_, _ = env.eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"a.b"}, "", 1)
	env.clock.Advance(time.Minute)
	second, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u2", []string{"a.b"}, "", 1)
	_, _ = env.eng.RequestTemporaryAccess(ctx, "org2", "u1", []string{"a.b"}, "", 1)

	list, err := env.eng.ListAccessRequests(ctx, &accessrequest.ListFilter{OrganizationID: "org1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("expected 2 requests newest first, got %d", len(list))
	}
}

func TestRequestRateLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEngine(t, WithConfig(Config{MaxElevationHours: 720, ElevationRequestsPerHour: 2}))

	for i := 0; i < 2; i++ {
		if _, err := env.eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"a.b"}, "", 1); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if _, err := env.eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"a.b"}, "", 1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if _, err := env.eng.RequestTemporaryAccess(ctx, "org1", "u2", []string{"a.b"}, "", 1); err != nil {
		t.Fatalf("limit is per user, got %v", err)
	}

	env.clock.Advance(time.Hour)
	if _, err := env.eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"a.b"}, "", 1); err != nil {
		t.Fatalf("limit should refill over time, got %v", err)
	}
}

type elevationRecorder struct {
	requested, approved, denied, revoked int
}

func (r *elevationRecorder) Name() string { return "elevation-recorder" }

func (r *elevationRecorder) OnAccessRequested(context.Context, *accessrequest.Request) error {
	r.requested++
	return nil
}

func (r *elevationRecorder) OnAccessApproved(context.Context, *accessrequest.Request, []*grant.Grant) error {
	r.approved++
	return nil
}

func (r *elevationRecorder) OnAccessDenied(context.Context, *accessrequest.Request) error {
	r.denied++
	return nil
}

func (r *elevationRecorder) OnGrantRevoked(context.Context, id.GrantID) error {
	r.revoked++
	return nil
}

var (
	_ plugin.AccessRequested = (*elevationRecorder)(nil)
	_ plugin.AccessApproved  = (*elevationRecorder)(nil)
	_ plugin.AccessDenied    = (*elevationRecorder)(nil)
	_ plugin.GrantRevoked    = (*elevationRecorder)(nil)
)

func TestElevationHooks(t *testing.T) {
	ctx := context.Background()
	rec := &elevationRecorder{}
	env := newTestEngine(t, WithPlugin(rec))

	a, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"a.b"}, "", 1)
	b, _ := env.eng.RequestTemporaryAccess(ctx, "org1", "u1", []string{"a.b"}, "", 1)
	grants, _ := env.eng.ApproveTemporaryAccess(ctx, a.ID, "admin1", []string{"a.b"}, 1)
	_ = env.eng.DenyTemporaryAccess(ctx, b.ID, "admin1")
	_ = env.eng.RevokeGrant(ctx, grants[0].ID)

	if rec.requested != 2 || rec.approved != 1 || rec.denied != 1 || rec.revoked != 1 {
		t.Fatalf("unexpected hook counts %+v", rec)
	}
}
