package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quietmail/gmail-mcp/internal/google"
)

func probeJSON(t *testing.T, h http.Handler, path string) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding %s response: %v", path, err)
	}
	return rec.Code, body
}

func TestLivenessHandler(t *testing.T) {
	h := NewHealthChecker(nil)

	code, body := probeJSON(t, h.LivenessHandler(), "/healthz")
	if code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
	if body.Status != healthStatusOK {
		t.Errorf("Status = %q, want %q", body.Status, healthStatusOK)
	}
}

func TestReadinessHandler(t *testing.T) {
	sc := NewServerContext(context.Background(), testManager(t))
	defer func() { _ = sc.Shutdown() }()
	h := NewHealthChecker(sc)

	code, body := probeJSON(t, h.ReadinessHandler(), "/readyz")
	if code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
	if body.Checks["ready"] != healthStatusOK {
		t.Errorf("ready check = %q, want %q", body.Checks["ready"], healthStatusOK)
	}

	h.SetReady(false)
	code, body = probeJSON(t, h.ReadinessHandler(), "/readyz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status after SetReady(false) = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body.Status != healthStatusNotReady {
		t.Errorf("Status = %q, want %q", body.Status, healthStatusNotReady)
	}
}

func TestReadinessHandler_Shutdown(t *testing.T) {
	sc := NewServerContext(context.Background(), testManager(t))
	h := NewHealthChecker(sc)

	if err := sc.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	code, body := probeJSON(t, h.ReadinessHandler(), "/readyz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body.Checks["shutdown"] != healthStatusShuttingDown {
		t.Errorf("shutdown check = %q, want %q", body.Checks["shutdown"], healthStatusShuttingDown)
	}
}

func TestDetailedHealthHandler_AuthorizationState(t *testing.T) {
	manager := testManager(t)
	sc := NewServerContext(context.Background(), manager)
	defer func() { _ = sc.Shutdown() }()
	h := NewHealthChecker(sc)

	decodeDetailed := func() (int, DetailedHealthResponse) {
		rec := httptest.NewRecorder()
		h.DetailedHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))
		var body DetailedHealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding detailed response: %v", err)
		}
		return rec.Code, body
	}

	// No stored token: still 200, but the authorization check is degraded.
	code, body := decodeDetailed()
	if code != http.StatusOK {
		t.Errorf("status = %d, want %d", code, http.StatusOK)
	}
	if body.Checks["authorization"] != healthStatusUnauthorized {
		t.Errorf("authorization check = %q, want %q", body.Checks["authorization"], healthStatusUnauthorized)
	}
	if body.Uptime == "" {
		t.Error("Uptime is empty")
	}

	rec := &google.Record{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
		Scopes:       google.RequiredScopes,
	}
	if err := google.SaveToken(manager.TokenPath(), rec); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	_, body = decodeDetailed()
	if body.Checks["authorization"] != healthStatusOK {
		t.Errorf("authorization check = %q, want %q", body.Checks["authorization"], healthStatusOK)
	}
}

func TestRegisterHealthEndpoints(t *testing.T) {
	h := NewHealthChecker(nil)
	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}
