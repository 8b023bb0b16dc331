package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/quietmail/gmail-mcp/internal/google"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusUnauthorized = "unauthorized"
)

// HealthChecker serves liveness and readiness probes for the HTTP
// transport. The stdio transport never mounts these handlers.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time
}

// NewHealthChecker creates a checker bound to the given server context.
// The checker reports ready until SetReady(false) is called.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state reported by /readyz.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the server is accepting traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// isServerShuttingDown is nil-safe so the checker can be constructed
// without a context in tests.
func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// hasStoredToken reports whether a token record exists on disk. It does
// not validate or refresh the token; health probes must stay cheap and
// must never trigger an OAuth round trip.
func (h *HealthChecker) hasStoredToken() bool {
	if h.serverContext == nil {
		return false
	}
	m := h.serverContext.TokenManager()
	if m == nil {
		return false
	}
	return google.HasToken(m.TokenPath())
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed. It adds
// uptime and the stored-authorization state to the probe checks.
type DetailedHealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

// RegisterHealthEndpoints mounts the probe handlers on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// LivenessHandler answers /healthz. It only proves the process is up;
// restart decisions belong to the caller.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers /readyz. The server is ready when it has been
// marked ready and is not shutting down.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.probeChecks()
		resp := HealthResponse{Status: healthStatusOK, Checks: checks}
		code := http.StatusOK
		if !ok {
			resp.Status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})
}

// DetailedHealthHandler answers /healthz/detailed with uptime and the
// authorization state. A missing token degrades the report but not the
// status code: the server is still serving, tool calls just fail with
// an authorization error until the auth command is run.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.probeChecks()
		if h.hasStoredToken() {
			checks["authorization"] = healthStatusOK
		} else {
			checks["authorization"] = healthStatusUnauthorized
		}

		resp := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
			Checks: checks,
		}
		code := http.StatusOK
		if !ok {
			resp.Status = healthStatusNotReady
			if h.isServerShuttingDown() {
				resp.Status = healthStatusShuttingDown
			}
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})
}

// probeChecks evaluates the readiness conditions shared by /readyz and
// /healthz/detailed.
func (h *HealthChecker) probeChecks() (map[string]string, bool) {
	checks := make(map[string]string)
	ok := true

	if h.ready.Load() {
		checks["ready"] = healthStatusOK
	} else {
		checks["ready"] = healthStatusNotReady
		ok = false
	}

	if h.isServerShuttingDown() {
		checks["shutdown"] = healthStatusShuttingDown
		ok = false
	} else {
		checks["shutdown"] = healthStatusOK
	}

	return checks, ok
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
