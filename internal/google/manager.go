package google

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/quietmail/gmail-mcp/internal/apperr"
	"github.com/quietmail/gmail-mcp/internal/logging"
)

const (
	// DefaultExpiryMargin is the safety margin before the recorded expiry
	// at which the access token is considered stale.
	DefaultExpiryMargin = 60 * time.Second

	// defaultRefreshTimeout bounds the round trip to the token endpoint.
	defaultRefreshTimeout = 30 * time.Second
)

// Refresh result values recorded against RefreshMetrics.
const (
	refreshResultSuccess = "success"
	refreshResultFailure = "failure"
	refreshResultExpired = "expired"
)

// RefreshMetrics receives token-refresh outcomes. Satisfied by
// *instrumentation.Metrics; nil-able.
type RefreshMetrics interface {
	RecordOAuthTokenRefresh(ctx context.Context, result string)
}

// refreshFunc exchanges a refresh token for a new access token. Exactly one
// call is made per stale-token observation; there is no retry loop.
type refreshFunc func(ctx context.Context, conf *oauth2.Config, refreshToken string) (*oauth2.Token, error)

// Manager owns the persisted token record for a single token path. All
// access goes through one mutex so concurrent tool calls observing an
// expired token trigger exactly one refresh; the other callers wait for
// that result instead of issuing a second refresh request.
type Manager struct {
	conf      *oauth2.Config
	tokenPath string
	logger    *slog.Logger

	margin  time.Duration
	timeout time.Duration
	now     func() time.Time
	refresh refreshFunc
	metrics RefreshMetrics

	mu  sync.Mutex
	rec *Record
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithExpiryMargin overrides the expiry safety margin.
func WithExpiryMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) { m.margin = margin }
}

// WithRefreshMetrics wires refresh-outcome metrics into the manager.
func WithRefreshMetrics(metrics RefreshMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// withNow overrides the clock, for tests.
func withNow(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// withRefreshFunc overrides the token-endpoint exchange, for tests.
func withRefreshFunc(fn refreshFunc) ManagerOption {
	return func(m *Manager) { m.refresh = fn }
}

// NewManager creates a token manager for the given OAuth config and token
// path. The manager is an explicit instance passed to the server context,
// not a hidden global.
func NewManager(conf *oauth2.Config, tokenPath string, opts ...ManagerOption) *Manager {
	m := &Manager{
		conf:      conf,
		tokenPath: tokenPath,
		logger:    slog.Default(),
		margin:    DefaultExpiryMargin,
		timeout:   defaultRefreshTimeout,
		now:       time.Now,
		refresh:   refreshViaTokenEndpoint,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TokenPath returns the path of the persisted token record.
func (m *Manager) TokenPath() string {
	return m.tokenPath
}

// AccessToken returns a live access token, refreshing it first if it is
// within the expiry margin. When no usable record exists the caller gets
// AuthenticationRequired; interactive authorization must be run out of
// band, never from inside a tool call.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	rec, err := m.liveRecord(ctx)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// Token implements oauth2.TokenSource so the Gmail service can consume the
// manager directly via option.WithTokenSource.
func (m *Manager) Token() (*oauth2.Token, error) {
	rec, err := m.liveRecord(context.Background())
	if err != nil {
		return nil, err
	}
	return rec.Token(), nil
}

// liveRecord returns a snapshot of a record whose access token is valid for
// at least the expiry margin. It holds the mutex for the full check-refresh
// sequence; this is the one mandatory critical section in the system.
func (m *Manager) liveRecord(ctx context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rec == nil {
		// Reload from disk so a token written by "gmail-mcp auth" after
		// server start is picked up without a restart.
		rec, err := LoadToken(m.tokenPath)
		if err != nil {
			m.logger.Warn("stored token unreadable", logging.Err(err))
			return Record{}, apperr.Wrap(apperr.AuthenticationRequired, err,
				"stored token is unreadable; run \"gmail-mcp auth\" to re-authorize")
		}
		if rec == nil {
			return Record{}, apperr.New(apperr.AuthenticationRequired,
				"no stored token at %s; run \"gmail-mcp auth\" to authorize", m.tokenPath)
		}
		m.rec = rec
	}

	if !m.rec.HasScopes(RequiredScopes) {
		// Operating with the wrong privilege is never acceptable; fail
		// instead of proceeding.
		missing := m.rec.MissingScopes(RequiredScopes)
		return Record{}, apperr.New(apperr.AuthenticationRequired,
			"stored token is missing required scopes %v; run \"gmail-mcp auth\" to re-authorize", missing)
	}

	if m.rec.AccessToken != "" && m.rec.Expiry.After(m.now().Add(m.margin)) {
		return *m.rec, nil
	}

	return m.refreshLocked(ctx)
}

// refreshLocked performs the single refresh attempt. Caller holds m.mu.
func (m *Manager) refreshLocked(ctx context.Context) (Record, error) {
	if m.rec.RefreshToken == "" {
		m.rec = nil
		return Record{}, apperr.New(apperr.AuthenticationRequired,
			"access token expired and no refresh token is stored; run \"gmail-mcp auth\" to re-authorize")
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tok, err := m.refresh(ctx, m.conf, m.rec.RefreshToken)
	if err != nil {
		if isRefreshTokenRejected(err) {
			// The refresh token is revoked or expired. Clear the cached
			// record; the file stays on disk until re-authorization
			// overwrites it.
			m.rec = nil
			m.recordRefresh(ctx, refreshResultExpired)
			m.logger.Warn("refresh token rejected, re-authorization required", logging.Err(err))
			return Record{}, apperr.Wrap(apperr.AuthenticationRequired, err,
				"refresh token was rejected by the identity provider; run \"gmail-mcp auth\" to re-authorize")
		}
		m.recordRefresh(ctx, refreshResultFailure)
		return Record{}, apperr.Wrap(apperr.UpstreamUnavailable, err, "refreshing access token")
	}

	next := &Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       m.rec.Scopes,
	}
	if next.RefreshToken == "" {
		// Google only issues a new refresh token on re-consent; reuse the
		// old one otherwise.
		next.RefreshToken = m.rec.RefreshToken
	}

	if err := SaveToken(m.tokenPath, next); err != nil {
		// The refreshed token is still valid for this process; losing
		// persistence only costs a refresh after restart.
		m.logger.Warn("failed to persist refreshed token", logging.Err(err))
	}

	m.rec = next
	m.recordRefresh(ctx, refreshResultSuccess)
	m.logger.Debug("access token refreshed",
		slog.Time("expiry", next.Expiry),
		slog.String("token", logging.SanitizeToken(next.AccessToken)))
	return *next, nil
}

func (m *Manager) recordRefresh(ctx context.Context, result string) {
	if m.metrics != nil {
		m.metrics.RecordOAuthTokenRefresh(ctx, result)
	}
}

// isRefreshTokenRejected distinguishes a dead refresh token (invalid_grant
// class responses) from transient upstream failures.
func isRefreshTokenRejected(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	if retrieveErr.Response == nil {
		return false
	}
	code := retrieveErr.Response.StatusCode
	return code == 400 || code == 401 || code == 403
}

// refreshViaTokenEndpoint issues exactly one request to the identity
// provider's token endpoint. Seeding the source with only the refresh token
// forces an immediate refresh rather than reuse.
func refreshViaTokenEndpoint(ctx context.Context, conf *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}
