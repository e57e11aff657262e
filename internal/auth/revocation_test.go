package auth

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRevocations(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryRevocations()
	m.now = func() time.Time { return clock }

	if revoked, _ := m.IsRevoked(ctx, "tok-a"); revoked {
		t.Fatal("fresh token reported revoked")
	}
	if err := m.Revoke(ctx, "tok-a", time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if revoked, _ := m.IsRevoked(ctx, "tok-a"); !revoked {
		t.Error("revoked token accepted")
	}
	if revoked, _ := m.IsRevoked(ctx, "tok-b"); revoked {
		t.Error("unrelated token reported revoked")
	}

	clock = clock.Add(time.Minute)
	if revoked, _ := m.IsRevoked(ctx, "tok-a"); revoked {
		t.Error("revocation should lapse after its ttl")
	}
	if len(m.expires) != 0 {
		t.Errorf("expired entry not pruned: %d left", len(m.expires))
	}
}

func TestFingerprintHidesToken(t *testing.T) {
	fp := fingerprint("secret-token")
	if fp == "secret-token" || len(fp) != 64 {
		t.Errorf("fingerprint = %q", fp)
	}
	if fingerprint("secret-token") != fp {
		t.Error("fingerprint is not stable")
	}
}
