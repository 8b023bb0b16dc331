package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/quietmail/gmail-mcp/internal/google"
)

func runAuthStatus(t *testing.T, tokenPath string) string {
	t.Helper()
	cmd := newAuthCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--status", "--token-file", tokenPath})
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestAuthStatus_NoToken(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")

	out := runAuthStatus(t, tokenPath)
	assert.Contains(t, out, "No stored token")
	assert.Contains(t, out, "gmail-mcp auth")
}

func TestAuthStatus_ValidToken(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, google.SaveToken(tokenPath, &google.Record{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(30 * time.Minute),
		Scopes:       google.RequiredScopes,
	}))

	out := runAuthStatus(t, tokenPath)
	assert.Contains(t, out, "Access token: valid until")
	assert.Contains(t, out, "Refresh token: present")
	assert.NotContains(t, out, "WARNING")
}

func TestAuthStatus_ExpiredToken(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, google.SaveToken(tokenPath, &google.Record{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
		Scopes:       google.RequiredScopes,
	}))

	out := runAuthStatus(t, tokenPath)
	assert.Contains(t, out, "expired at")
	assert.Contains(t, out, "refreshed on next use")
}

func TestAuthStatus_MissingScopes(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, google.SaveToken(tokenPath, &google.Record{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(30 * time.Minute),
		Scopes:       []string{gmailv1.GmailReadonlyScope},
	}))

	out := runAuthStatus(t, tokenPath)
	assert.Contains(t, out, "WARNING: missing required scopes")
	assert.Contains(t, out, gmailv1.GmailComposeScope)
}
