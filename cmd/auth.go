package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quietmail/gmail-mcp/internal/google"
	"github.com/quietmail/gmail-mcp/internal/instrumentation"
)

func newAuthCmd() *cobra.Command {
	var (
		credentialsFile string
		tokenFile       string
		statusOnly      bool
		timeout         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to a Gmail account",
		Long: `Run the interactive OAuth authorization flow. A consent URL is printed;
open it in a browser, sign in, and grant access. The resulting token is
stored on disk and picked up by a running "gmail-mcp serve" without a
restart.

Setup:
  1. Create an OAuth client in the Google Cloud console ("Desktop app" type)
     with the Gmail API enabled.
  2. Download its credentials JSON to the credentials path (see
     "gmail-mcp serve --help" for path resolution).
  3. Run "gmail-mcp auth" and complete the browser consent.

Use --status to inspect the stored token without touching the network.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenPath := resolveTokenPath(tokenFile)
			if statusOnly {
				return printAuthStatus(cmd, tokenPath)
			}
			return runAuth(cmd, resolveCredentialsPath(credentialsFile), tokenPath, timeout)
		},
	}

	cmd.Flags().StringVar(&credentialsFile, "credentials-file", "", "Path to the Google OAuth client credentials JSON. Can also use GMAIL_MCP_CREDENTIALS_PATH env var.")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Path to the stored OAuth token JSON. Can also use GMAIL_MCP_TOKEN_PATH env var.")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Print the stored token state without starting an authorization flow")
	cmd.Flags().DurationVar(&timeout, "timeout", google.DefaultAuthorizationTimeout, "How long to wait for the browser consent before giving up")

	return cmd
}

func runAuth(cmd *cobra.Command, credentialsPath, tokenPath string, timeout time.Duration) error {
	conf, err := google.LoadClientCredential(credentialsPath)
	if err != nil {
		return fmt.Errorf("loading client credentials from %s: %w", credentialsPath, err)
	}

	ctx := cmd.Context()

	// Record the outcome when instrumentation is configured. The auth
	// command is one-shot, so the provider exists only to flush counters.
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, providerErr := instrumentation.NewProvider(ctx, instrConfig)
	if providerErr == nil {
		defer func() { _ = provider.Shutdown(ctx) }()
	}
	recordAuth := func(result string) {
		if providerErr == nil && provider.Enabled() {
			provider.Metrics().RecordOAuthAuth(ctx, result)
		}
	}

	rec, err := google.RunInteractiveAuthorization(ctx, conf, tokenPath, google.AuthorizationOptions{
		Timeout: timeout,
		Out:     cmd.OutOrStdout(),
	})
	if err != nil {
		recordAuth(instrumentation.OAuthResultFailure)
		return err
	}
	recordAuth(instrumentation.OAuthResultSuccess)

	fmt.Fprintf(cmd.OutOrStdout(), "\nAuthorization complete. Token saved to %s\n", tokenPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Granted scopes: %s\n", strings.Join(rec.Scopes, ", "))
	fmt.Fprintf(cmd.OutOrStdout(), "Access token expires at %s\n", rec.Expiry.Format(time.RFC3339))
	return nil
}

func printAuthStatus(cmd *cobra.Command, tokenPath string) error {
	out := cmd.OutOrStdout()

	rec, err := google.LoadToken(tokenPath)
	if err != nil {
		return fmt.Errorf("reading token from %s: %w", tokenPath, err)
	}
	if rec == nil {
		fmt.Fprintf(out, "No stored token at %s\n", tokenPath)
		fmt.Fprintln(out, "Run \"gmail-mcp auth\" to authorize access.")
		return nil
	}

	fmt.Fprintf(out, "Token file: %s\n", tokenPath)
	if rec.Expiry.IsZero() {
		fmt.Fprintln(out, "Access token expiry: unknown")
	} else if rec.Expiry.Before(time.Now()) {
		fmt.Fprintf(out, "Access token: expired at %s (will be refreshed on next use)\n", rec.Expiry.Format(time.RFC3339))
	} else {
		fmt.Fprintf(out, "Access token: valid until %s\n", rec.Expiry.Format(time.RFC3339))
	}
	if rec.RefreshToken == "" {
		fmt.Fprintln(out, "Refresh token: MISSING (re-run \"gmail-mcp auth\")")
	} else {
		fmt.Fprintln(out, "Refresh token: present")
	}
	fmt.Fprintf(out, "Granted scopes: %s\n", strings.Join(rec.Scopes, ", "))

	if missing := rec.MissingScopes(google.RequiredScopes); len(missing) > 0 {
		fmt.Fprintf(out, "WARNING: missing required scopes: %s\n", strings.Join(missing, ", "))
		fmt.Fprintln(out, "Re-run \"gmail-mcp auth\" to grant them.")
	}
	return nil
}
