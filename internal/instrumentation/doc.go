// Package instrumentation provides OpenTelemetry metrics, tracing, and
// audit logging for the gmail-mcp server.
//
// # Metrics
//
//   - http_requests_total / http_request_duration_seconds: health and
//     metrics endpoint traffic
//   - google_api_operations_total / google_api_operation_duration_seconds:
//     Gmail API calls by operation
//   - oauth_auth_total: interactive authorization attempts
//   - oauth_token_refresh_total: token refresh attempts by result
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds: tool calls
//
// # Exporters
//
// Metrics export via Prometheus (default), OTLP, or stdout; traces via
// OTLP, stdout, or none (default). Configuration comes from environment
// variables:
//
//   - OTEL_SERVICE_NAME: Service name (default: gmail-mcp)
//   - INSTRUMENTATION_ENABLED: Master switch (default: true)
//   - METRICS_EXPORTER / TRACING_EXPORTER: Exporter selection
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP collector endpoint
//   - OTEL_TRACES_SAMPLER_ARG: Trace sampling rate (default: 0.1)
//
// # Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordToolInvocation(ctx, "get_unread_emails", "success", duration)
//
// # Audit logging
//
// AuditLogger records every tool invocation. Recipient addresses are
// anonymized unless AUDIT_LOGGING_INCLUDE_PII is set; audit streams with
// PII must be routed to secure storage.
package instrumentation
