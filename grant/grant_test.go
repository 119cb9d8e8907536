package grant

import (
	"testing"
	"time"
)

func TestActiveAtBoundary(t *testing.T) {
	expiry := time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC)
	g := &Grant{ExpiresAt: expiry}

	if !g.ActiveAt(expiry.Add(-time.Nanosecond)) {
		t.Error("grant should be active just before expiry")
	}
	if g.ActiveAt(expiry) {
		t.Error("grant must be inactive at the expiry instant")
	}
	if g.ActiveAt(expiry.Add(time.Hour)) {
		t.Error("grant must be inactive after expiry")
	}
}
