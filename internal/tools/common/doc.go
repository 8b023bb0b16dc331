// Package common provides shared utilities for MCP tool implementations,
// including instrumented handler wrappers for metrics and audit logging.
package common
