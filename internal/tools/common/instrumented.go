package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quietmail/gmail-mcp/internal/instrumentation"
	"github.com/quietmail/gmail-mcp/internal/server"
)

// ToolHandlerFunc is the mcp-go handler signature shared by all tools.
type ToolHandlerFunc = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a tool span, invocation
// metrics and audit logging. operation names the upstream Google API call
// behind the tool and annotates the audit record; upstream metrics and
// spans are recorded by the Gmail client itself, per actual API call, so
// the wrapper never double-counts them. When the server context carries
// neither metrics nor an audit logger the handler runs unwrapped.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", "messages.list", sc, handler))
func InstrumentedToolHandler(toolName, operation string, sc *server.ServerContext, handler ToolHandlerFunc) ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()
		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		start := time.Now()

		// The span context is captured after StartToolSpan so the audit
		// record carries the ids of the span wrapping this call.
		invocation := instrumentation.NewToolInvocation(toolName).WithSpanContext(ctx)
		if operation != "" {
			invocation.WithOperation(operation)
		}
		annotateInvocation(invocation, request.GetArguments())

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		spanErr := err
		switch {
		case err != nil:
			status = instrumentation.StatusError
			invocation.CompleteWithError(err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			spanErr = errors.New("tool returned an error result")
			invocation.Complete(false, nil)
		default:
			invocation.CompleteSuccess()
		}
		instrumentation.FinishSpan(span, spanErr)

		if metrics != nil {
			metrics.RecordToolInvocation(ctx, toolName, status, duration)
		}
		if auditLogger != nil {
			auditLogger.LogToolInvocation(invocation)
		}

		return result, err
	}
}

// annotateInvocation copies auditable request arguments onto the invocation
// record. The recipient is anonymized at log time unless PII logging is
// explicitly enabled.
func annotateInvocation(invocation *instrumentation.ToolInvocation, args map[string]any) {
	if threadID, ok := args["thread_id"].(string); ok && threadID != "" {
		invocation.WithThread(threadID)
	}
	if recipient, ok := args["to_address"].(string); ok && recipient != "" {
		invocation.WithRecipient(recipient)
	}
}
