package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/quietmail/gmail-mcp/internal/apperr"
)

// DefaultAuthorizationTimeout bounds how long the loopback listener waits
// for the browser redirect before giving up.
const DefaultAuthorizationTimeout = 5 * time.Minute

// AuthorizationOptions tune the interactive flow.
type AuthorizationOptions struct {
	// Timeout overrides DefaultAuthorizationTimeout when positive.
	Timeout time.Duration

	// Out receives the authorization URL shown to the user. Defaults to
	// io.Discard when nil.
	Out io.Writer
}

type callbackResult struct {
	code string
	err  error
}

// RunInteractiveAuthorization runs the authorization-code grant against a
// loopback redirect listener and persists the resulting token record to
// tokenPath. It prints the consent URL to opts.Out and blocks until the
// redirect arrives, the timeout elapses, or ctx is cancelled.
func RunInteractiveAuthorization(ctx context.Context, conf *oauth2.Config, tokenPath string, opts AuthorizationOptions) (*Record, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthorizationTimeout
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, err, "starting loopback redirect listener")
	}
	defer listener.Close()

	// The redirect URI must match what the authorization request announced,
	// so bind the ephemeral port before building the URL.
	flowConf := *conf
	flowConf.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())

	state := uuid.NewString()
	results := make(chan callbackResult, 1)

	// Only the first redirect counts; repeated hits on /callback must not
	// block the handler once the buffered slot is taken.
	deliver := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(callbackResult{err: apperr.New(apperr.AuthorizationDenied,
				"authorization response state does not match request")})
		case q.Get("error") != "":
			fmt.Fprintln(w, "Authorization was denied. You can close this window.")
			deliver(callbackResult{err: apperr.New(apperr.AuthorizationDenied,
				"authorization was denied: %s", q.Get("error"))})
		case q.Get("code") == "":
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			deliver(callbackResult{err: apperr.New(apperr.AuthorizationDenied,
				"authorization response carried no code")})
		default:
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
			deliver(callbackResult{code: q.Get("code")})
		}
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(listener)
	defer srv.Close()

	authURL := flowConf.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Open the following URL in your browser to authorize access:\n\n  %s\n\nWaiting for authorization...\n", authURL)

	var result callbackResult
	select {
	case result = <-results:
	case <-time.After(timeout):
		return nil, apperr.New(apperr.AuthorizationDenied,
			"authorization timed out after %s", timeout)
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.AuthorizationDenied, ctx.Err(), "authorization cancelled")
	}
	if result.err != nil {
		return nil, result.err
	}

	tok, err := flowConf.Exchange(ctx, result.code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, apperr.Wrap(apperr.AuthorizationDenied, err, "exchanging authorization code")
		}
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, err, "exchanging authorization code")
	}

	rec := &Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       flowConf.Scopes,
	}
	if err := SaveToken(tokenPath, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
