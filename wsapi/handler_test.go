package wsapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckOriginEmptyAlwaysAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/ws/webrtc", nil)
	if !upgrader.CheckOrigin(req) {
		t.Fatalf("expected empty Origin to be allowed")
	}
}

func TestCheckOriginNonProductionAllowsAnyOrigin(t *testing.T) {
	t.Setenv("ENVIRONMENT", "dev")
	req := httptest.NewRequest(http.MethodGet, "/api/ws/webrtc", nil)
	req.Header.Set("Origin", "https://evil.example")
	if !upgrader.CheckOrigin(req) {
		t.Fatalf("expected any origin to be allowed outside production")
	}
}

func TestCheckOriginProductionRestrictsToAllowedOrigin(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ALLOWED_ORIGIN", "https://app.example")

	req := httptest.NewRequest(http.MethodGet, "/api/ws/webrtc", nil)
	req.Header.Set("Origin", "https://app.example")
	if !upgrader.CheckOrigin(req) {
		t.Fatalf("expected the configured origin to be allowed in production")
	}

	bad := httptest.NewRequest(http.MethodGet, "/api/ws/webrtc", nil)
	bad.Header.Set("Origin", "https://evil.example")
	if upgrader.CheckOrigin(bad) {
		t.Fatalf("expected an unconfigured origin to be rejected in production")
	}
}

func TestCheckOriginProductionWithNoAllowedOriginRejectsEverything(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ALLOWED_ORIGIN", "")

	req := httptest.NewRequest(http.MethodGet, "/api/ws/webrtc", nil)
	req.Header.Set("Origin", "https://app.example")
	if upgrader.CheckOrigin(req) {
		t.Fatalf("expected rejection when no ALLOWED_ORIGIN is configured in production")
	}
}
