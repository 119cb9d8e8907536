package role_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xraph/bastion/role"
)

func TestParseTable(t *testing.T) {
	tbl, err := role.ParseTable([]byte(`
roles:
  broker_admin: [load.create, load.read]
  dispatcher:
    - load.read
`))
	if err != nil {
		t.Fatal(err)
	}
	if !tbl.Grants("broker_admin", "load.create") {
		t.Error("broker_admin should grant load.create")
	}
	if tbl.Grants("dispatcher", "load.create") {
		t.Error("dispatcher should not grant load.create")
	}
	if got := tbl.Permissions("unknown"); len(got) != 0 {
		t.Errorf("unknown role should have no permissions, got %v", got)
	}
	roles := tbl.Roles()
	if len(roles) != 2 || roles[0] != "broker_admin" || roles[1] != "dispatcher" {
		t.Errorf("unexpected role order: %v", roles)
	}
}

func TestParseTableRejectsEmptyPermission(t *testing.T) {
	_, err := role.ParseTable([]byte("roles:\n  viewer: [\"\"]\n"))
	if err == nil {
		t.Fatal("expected error for empty permission key")
	}
}

func TestParseTableMalformed(t *testing.T) {
	if _, err := role.ParseTable([]byte("roles: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	if err := os.WriteFile(path, []byte("roles:\n  owner: [billing.manage]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tbl, err := role.LoadTableFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !tbl.Grants("owner", "billing.manage") {
		t.Error("owner should grant billing.manage")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := role.Table{"viewer": {"load.read"}}
	cp := orig.Clone()
	cp["viewer"][0] = "changed"
	if orig["viewer"][0] != "load.read" {
		t.Error("clone shares backing storage with original")
	}
}
