package auditlog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/bastion/auditlog"
)

func TestFanoutDeliversToEverySink(t *testing.T) {
	var got []string
	ok := auditlog.SinkFunc(func(_ context.Context, r *auditlog.Record) error {
		got = append(got, r.Decision)
		return nil
	})
	boom := errors.New("boom")
	failing := auditlog.SinkFunc(func(context.Context, *auditlog.Record) error { return boom })

	err := auditlog.Fanout{failing, ok}.Emit(context.Background(), &auditlog.Record{Decision: "allow"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to wrap boom, got %v", err)
	}
	if len(got) != 1 || got[0] != "allow" {
		t.Fatalf("healthy sink should still receive the record, got %v", got)
	}
}

func TestFanoutEmpty(t *testing.T) {
	if err := (auditlog.Fanout{}).Emit(context.Background(), &auditlog.Record{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
