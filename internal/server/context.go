package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quietmail/gmail-mcp/internal/gmail"
	"github.com/quietmail/gmail-mcp/internal/google"
	"github.com/quietmail/gmail-mcp/internal/instrumentation"
)

// ServerContext holds the shared dependencies for the MCP server.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	// manager provides OAuth tokens for the authorized account
	manager *google.Manager
	// gmailClient is lazily created on first use
	gmailClient *gmail.Client
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	logger      *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// ServerContextOption configures a ServerContext.
type ServerContextOption func(*ServerContext)

// WithContextLogger sets the logger used by the server context.
func WithContextLogger(logger *slog.Logger) ServerContextOption {
	return func(sc *ServerContext) {
		sc.logger = logger
	}
}

// WithContextMetrics wires OpenTelemetry metrics into the server context
// and the Gmail client it creates.
func WithContextMetrics(metrics *instrumentation.Metrics) ServerContextOption {
	return func(sc *ServerContext) {
		sc.metrics = metrics
	}
}

// WithContextAuditLogger sets the audit logger used for tool invocations.
func WithContextAuditLogger(auditLogger *instrumentation.AuditLogger) ServerContextOption {
	return func(sc *ServerContext) {
		sc.auditLogger = auditLogger
	}
}

// NewServerContext creates a new server context.
// The Gmail client is not created here; it is lazily initialized on first
// use so the server can start before the user has run "gmail-mcp auth".
func NewServerContext(ctx context.Context, manager *google.Manager, opts ...ServerContextOption) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		manager: manager,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// TokenManager returns the OAuth token manager.
func (sc *ServerContext) TokenManager() *google.Manager {
	return sc.manager
}

// Metrics returns the metrics recorder, or nil if instrumentation is disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil if audit logging is disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

// GmailClient returns the Gmail client, creating it on first use.
// Creation validates that a usable token exists, so callers get an
// authentication_required error before any Gmail call is attempted.
func (sc *ServerContext) GmailClient(ctx context.Context) (*gmail.Client, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.gmailClient != nil {
		return sc.gmailClient, nil
	}

	// Ensure a valid token is available before building the service.
	if _, err := sc.manager.AccessToken(ctx); err != nil {
		return nil, err
	}

	opts := []gmail.ClientOption{gmail.WithLogger(sc.logger)}
	if sc.metrics != nil {
		opts = append(opts, gmail.WithMetrics(sc.metrics))
	}
	client, err := gmail.NewClient(sc.ctx, sc.manager, opts...)
	if err != nil {
		return nil, err
	}

	sc.gmailClient = client
	return client, nil
}

// SetGmailClient sets the Gmail client. Used by tests and by callers
// that construct the client themselves.
func (sc *ServerContext) SetGmailClient(client *gmail.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.gmailClient = client
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
