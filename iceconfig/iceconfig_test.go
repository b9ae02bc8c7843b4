package iceconfig

import (
	"os"
	"testing"
)

// Build memoizes via sync.Once at the package level, so these run as
// subtests against freshly re-imported state isn't possible within one
// process; instead we exercise build() (the unmemoized constructor)
// directly to check each mode's shape, and separately confirm Build()
// is idempotent.

func TestBuildDevMode(t *testing.T) {
	t.Setenv("WEBRTC_ICE_MODE", "dev")
	servers := build()
	if len(servers) != 1 {
		t.Fatalf("expected exactly one TURN server in dev mode, got %d", len(servers))
	}
	s := servers[0]
	if len(s.URLs) != 1 || s.URLs[0] != "turn:turn:3478?transport=tcp" {
		t.Fatalf("unexpected dev TURN url: %+v", s.URLs)
	}
	if s.Username != "dev" || s.Credential != "devpass" {
		t.Fatalf("unexpected dev credentials: %+v", s)
	}
}

func TestBuildProdModeNoTURN(t *testing.T) {
	t.Setenv("WEBRTC_ICE_MODE", "prod")
	os.Unsetenv("TURN_URLS")
	os.Unsetenv("TURN_USERNAME")
	os.Unsetenv("TURN_CREDENTIAL")

	servers := build()
	if len(servers) != 1 {
		t.Fatalf("expected STUN-only server list, got %d entries", len(servers))
	}
	if servers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("unexpected STUN url: %+v", servers[0])
	}
}

func TestBuildProdModeWithTURN(t *testing.T) {
	t.Setenv("WEBRTC_ICE_MODE", "prod")
	t.Setenv("TURN_URLS", "turn:example.com:3478,turn:example.com:3479")
	t.Setenv("TURN_USERNAME", "u")
	t.Setenv("TURN_CREDENTIAL", "p")

	servers := build()
	if len(servers) != 2 {
		t.Fatalf("expected STUN + TURN, got %d entries", len(servers))
	}
	turn := servers[1]
	if len(turn.URLs) != 2 {
		t.Fatalf("expected two TURN urls, got %+v", turn.URLs)
	}
	if turn.Username != "u" || turn.Credential != "p" {
		t.Fatalf("unexpected TURN credentials: %+v", turn)
	}
}

func TestBuildDefaultsToProd(t *testing.T) {
	os.Unsetenv("WEBRTC_ICE_MODE")
	servers := build()
	if len(servers) == 0 || servers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("expected prod default, got %+v", servers)
	}
}

func TestBuildIsMemoized(t *testing.T) {
	first := Build()
	second := Build()
	if len(first) != len(second) {
		t.Fatalf("expected memoized result to be stable")
	}
}
