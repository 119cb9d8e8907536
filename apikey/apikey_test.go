package apikey

import (
	"testing"
	"time"
)

func TestUsable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		key  *APIKey
		want bool
	}{
		{"nil key", nil, false},
		{"inactive", &APIKey{IsActive: false}, false},
		{"active no expiry", &APIKey{IsActive: true}, true},
		{"active future expiry", &APIKey{IsActive: true, ExpiresAt: &future}, true},
		{"active past expiry", &APIKey{IsActive: true, ExpiresAt: &past}, false},
		{"expiry equal to now", &APIKey{IsActive: true, ExpiresAt: &now}, false},
		{"inactive future expiry", &APIKey{IsActive: false, ExpiresAt: &future}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.Usable(now); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasScope(t *testing.T) {
	k := &APIKey{Scopes: []string{"load.read", "invoice.export"}}
	if !k.HasScope("invoice.export") {
		t.Error("expected scope to match")
	}
	if k.HasScope("invoice") {
		t.Error("scope match must be exact")
	}
}
