// Package server provides the MCP server context and the operational
// HTTP endpoints for gmail-mcp.
//
// # Key Components
//
// ServerContext holds the OAuth token manager and a lazily created Gmail
// client. The client is only built once a valid token is available, so
// the server can start before the user has completed "gmail-mcp auth".
//
// HealthChecker serves /healthz and /readyz endpoints for process
// supervisors and Kubernetes probes.
//
// MetricsServer serves Prometheus metrics on a dedicated port, isolated
// from the MCP transport.
package server
