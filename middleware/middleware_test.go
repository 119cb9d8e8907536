package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/apikey"
	"github.com/xraph/bastion/entitlement"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store/memory"
)

type fixture struct {
	eng   *bastion.Engine
	keyID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	eng, err := bastion.NewEngine(
		bastion.WithStore(s),
		bastion.WithRoleTable(role.Table{"dispatcher": {"load.read"}}),
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
	k := &apikey.APIKey{ID: id.NewAPIKeyID(), OrganizationID: "org1", Scopes: []string{"load.read"}, IsActive: true}
	if err := s.CreateAPIKey(ctx, k); err != nil {
		t.Fatal(err)
	}
	return &fixture{eng: eng, keyID: k.ID.String()}
}

// serve runs one GET through a router guarded by mw and reports whether the
// handler ran.
func serve(t *testing.T, mw forge.Middleware, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	r := forge.NewRouter()
	if err := r.GET("/loads", func(ctx forge.Context) error {
		called = true
		return ctx.String(http.StatusOK, "ok")
	}, forge.WithMiddleware(mw)); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, called
}

func userRequest(userID, orgID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/loads", nil)
	ctx := forge.WithUserID(req.Context(), userID)
	ctx = forge.WithScope(ctx, forge.NewOrgScope("app1", orgID))
	return req.WithContext(ctx)
}

func decodeDeny(t *testing.T, rec *httptest.ResponseRecorder) denyBody {
	t.Helper()
	var body denyBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode deny body: %v", err)
	}
	return body
}

func TestRequire_UserFromForgeContext(t *testing.T) {
	f := newFixture(t)

	rec, called := serve(t, Require(f.eng, Requirement{Entitlement: "loads.ltl", Permission: "load.read"}), userRequest("u1", "org1"))
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected pass-through, got %d called=%v", rec.Code, called)
	}
}

func TestRequire_FeatureDenialIs402(t *testing.T) {
	f := newFixture(t)

	rec, called := serve(t, Require(f.eng, Feature("loads.ocean")), userRequest("u1", "org1"))
	if called {
		t.Fatal("handler must not run on denial")
	}
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	body := decodeDeny(t, rec)
	if body.Status != bastion.StatusFeatureNotEnabled || body.Decision != string(bastion.CodeDenyEntitlement) {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Missing == nil || body.Missing.Entitlement != "loads.ocean" {
		t.Fatalf("expected missing entitlement, got %+v", body.Missing)
	}
}

func TestRequire_PermissionDenialIs403(t *testing.T) {
	f := newFixture(t)

	rec, called := serve(t, Require(f.eng, Permission("load.approve")), userRequest("u1", "org1"))
	if called || rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 denial, got %d called=%v", rec.Code, called)
	}
	body := decodeDeny(t, rec)
	if body.Status != bastion.StatusForbidden || body.Missing == nil || body.Missing.Permission != "load.approve" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRequire_APIKeyAndOrganizationHeaders(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/loads", nil)
	req.Header.Set(HeaderAPIKeyID, f.keyID)
	req.Header.Set(HeaderOrganizationID, "org1")
	rec, called := serve(t, Require(f.eng, Permission("load.read")), req)
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected API key to pass, got %d called=%v", rec.Code, called)
	}

	req = httptest.NewRequest(http.MethodGet, "/loads", nil)
	req.Header.Set(HeaderAPIKeyID, f.keyID)
	req.Header.Set(HeaderOrganizationID, "org2")
	rec, called = serve(t, Require(f.eng, Permission("load.read")), req)
	if called || rec.Code != http.StatusForbidden {
		t.Fatalf("key from another organization must be denied, got %d called=%v", rec.Code, called)
	}
}

func TestRequire_NoPrincipalIs400(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/loads", nil)
	req.Header.Set(HeaderOrganizationID, "org1")
	rec, called := serve(t, Require(f.eng, Permission("load.read")), req)
	if called || rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d called=%v", rec.Code, called)
	}
	if body := decodeDeny(t, rec); body.Status != bastion.StatusInvalidRequest {
		t.Fatalf("unexpected status %q", body.Status)
	}
}

func TestRequireAny(t *testing.T) {
	f := newFixture(t)

	rec, called := serve(t, RequireAny(f.eng, Permission("load.approve"), Permission("load.read")), userRequest("u1", "org1"))
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("one passing requirement should be enough, got %d", rec.Code)
	}

	rec, called = serve(t, RequireAny(f.eng, Feature("loads.ocean"), Permission("load.approve")), userRequest("u1", "org1"))
	if called || rec.Code != http.StatusForbidden {
		t.Fatalf("expected the last denial (403), got %d", rec.Code)
	}
}

func TestRequireAll(t *testing.T) {
	f := newFixture(t)

	rec, called := serve(t, RequireAll(f.eng, Feature("loads.ltl"), Permission("load.read")), userRequest("u1", "org1"))
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("all requirements pass, got %d", rec.Code)
	}

	rec, called = serve(t, RequireAll(f.eng, Permission("load.read"), Feature("loads.ocean"), Permission("load.approve")), userRequest("u1", "org1"))
	if called || rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected the first denial (402), got %d", rec.Code)
	}
	if body := decodeDeny(t, rec); body.Missing == nil || body.Missing.Entitlement != "loads.ocean" {
		t.Fatalf("unexpected body %+v", body)
	}

	rec, called = serve(t, RequireAll(f.eng), userRequest("u1", "org1"))
	if called || rec.Code != http.StatusBadRequest {
		t.Fatalf("an empty requirement list must deny, got %d", rec.Code)
	}
}
