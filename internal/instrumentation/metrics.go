package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
)

// Metrics records the counters and histograms this server emits. The zero
// value is a no-op recorder; every method tolerates uninitialized
// instruments, so a disabled provider can hand out &Metrics{}.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics registers all instruments on meter. The first registration
// failure aborts construction.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var err error

	counter := func(name, desc, unit string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		c, cerr := meter.Int64Counter(name,
			metric.WithDescription(desc),
			metric.WithUnit(unit),
		)
		if cerr != nil {
			err = fmt.Errorf("creating %s: %w", name, cerr)
		}
		return c
	}
	histogram := func(name, desc string, bounds ...float64) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		h, herr := meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(bounds...),
		)
		if herr != nil {
			err = fmt.Errorf("creating %s: %w", name, herr)
		}
		return h
	}

	m := &Metrics{
		httpRequestsTotal: counter("http_requests_total",
			"Total number of HTTP requests", "{request}"),
		httpRequestDuration: histogram("http_request_duration_seconds",
			"HTTP request duration in seconds",
			0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),

		googleAPIOperationsTotal: counter("google_api_operations_total",
			"Total number of Google API operations", "{operation}"),
		googleAPIOperationDuration: histogram("google_api_operation_duration_seconds",
			"Google API operation duration in seconds",
			0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),

		oauthAuthTotal: counter("oauth_auth_total",
			"Total number of OAuth authorization attempts", "{attempt}"),
		oauthTokenRefreshTotal: counter("oauth_token_refresh_total",
			"Total number of OAuth token refresh attempts", "{attempt}"),

		toolInvocationsTotal: counter("mcp_tool_invocations_total",
			"Total number of MCP tool invocations", "{invocation}"),
		toolDuration: histogram("mcp_tool_duration_seconds",
			"MCP tool execution duration in seconds",
			0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordHTTPRequest records one request against the HTTP transport or the
// health/metrics endpoints.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}
	opts := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, opts)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), opts)
}

// RecordGoogleAPIOperation records one upstream API call. service is
// ServiceGmail, operation the API method ("messages.list",
// "drafts.create"), status StatusSuccess or StatusError.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}
	opts := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperationsTotal.Add(ctx, 1, opts)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), opts)
}

// RecordOAuthAuth records an interactive authorization attempt. result is
// OAuthResultSuccess or OAuthResultFailure.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m.oauthAuthTotal == nil {
		return
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a token refresh attempt. result is
// OAuthResultSuccess, OAuthResultFailure or OAuthResultExpired.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal == nil {
		return
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records one MCP tool call.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}
	opts := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, opts)
	m.toolDuration.Record(ctx, duration.Seconds(), opts)
}
