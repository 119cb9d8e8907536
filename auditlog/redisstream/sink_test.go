package redisstream

import (
	"testing"
	"time"

	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/id"
)

func TestFieldsFlattenRecord(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &auditlog.Record{
		ID:             id.NewAuditRecordID(),
		OrganizationID: "org1",
		UserID:         "u1",
		PermissionKey:  "load.create",
		Attributes:     map[string]any{"region": "us"},
		Allowed:        false,
		Decision:       "deny_permission",
		Reason:         "Permission denied: load.create",
		EvalTimeNs:     1500,
		CreatedAt:      at,
	}
	f, err := fields(r)
	if err != nil {
		t.Fatal(err)
	}
	if f["id"] != r.ID.String() {
		t.Errorf("id = %v", f["id"])
	}
	if f["allowed"] != "false" {
		t.Errorf("allowed = %v", f["allowed"])
	}
	if f["attributes"] != `{"region":"us"}` {
		t.Errorf("attributes = %v", f["attributes"])
	}
	if f["eval_time_ns"] != "1500" {
		t.Errorf("eval_time_ns = %v", f["eval_time_ns"])
	}
	if f["created_at"] != "2025-01-02T03:04:05Z" {
		t.Errorf("created_at = %v", f["created_at"])
	}
}

func TestFieldsEmptyAttributes(t *testing.T) {
	f, err := fields(&auditlog.Record{})
	if err != nil {
		t.Fatal(err)
	}
	if f["attributes"] != "{}" {
		t.Errorf("attributes = %v", f["attributes"])
	}
}

func TestOptions(t *testing.T) {
	s := New(nil, WithStream("custom"), WithMaxLen(100))
	if s.stream != "custom" || s.maxLen != 100 {
		t.Errorf("options not applied: %+v", s)
	}
	if New(nil).stream != DefaultStream {
		t.Error("default stream not set")
	}
}
