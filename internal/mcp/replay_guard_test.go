package mcp

import (
	"testing"
	"time"
)

func TestReplayGuardRejectsDuplicateWithinWindow(t *testing.T) {
	g := newReplayGuard(10 * time.Second)
	now := time.Unix(1700000000, 0)
	if !g.allow("agent_1", "sig_1", now) {
		t.Fatalf("expected first request to pass")
	}
	if g.allow("agent_1", "sig_1", now.Add(time.Second)) {
		t.Fatalf("expected duplicate signature to be rejected")
	}
	if !g.allow("agent_1", "sig_2", now.Add(time.Second)) {
		t.Fatalf("expected different signature to pass")
	}
	if !g.allow("agent_2", "sig_1", now.Add(time.Second)) {
		t.Fatalf("expected same signature from another agent to pass")
	}
}

func TestReplayGuardAllowsAfterExpiry(t *testing.T) {
	g := newReplayGuard(2 * time.Second)
	now := time.Unix(1700000000, 0)
	if !g.allow("agent_1", "sig_1", now) {
		t.Fatalf("expected first request to pass")
	}
	if g.allow("agent_1", "sig_1", now.Add(time.Second)) {
		t.Fatalf("expected duplicate request in ttl to fail")
	}
	if !g.allow("agent_1", "sig_1", now.Add(3*time.Second)) {
		t.Fatalf("expected request after ttl expiry to pass")
	}
}

func TestReplayGuardNilAndUnsigned(t *testing.T) {
	var g *replayGuard
	if !g.allow("a", "s", time.Now()) {
		t.Fatalf("nil guard must allow")
	}
	if !newReplayGuard(0).allow("a", "", time.Now()) {
		t.Fatalf("unsigned request must pass")
	}
}
