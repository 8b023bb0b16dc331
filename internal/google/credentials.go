package google

import (
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"

	"github.com/quietmail/gmail-mcp/internal/apperr"
)

// RequiredScopes are the only scopes this server ever requests: read-only
// mail access and draft composition. Broader scopes are deliberately never
// requested, even where they would be convenient.
var RequiredScopes = []string{
	gmailv1.GmailReadonlyScope,
	gmailv1.GmailComposeScope,
}

// configDirName is the per-user directory holding credentials and tokens.
const configDirName = "gmail-mcp"

// LoadClientCredential reads the OAuth client-secret JSON file from path
// and returns an oauth2 config restricted to RequiredScopes.
func LoadClientCredential(path string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.CredentialNotFound,
				"OAuth client credentials not found at %s; download them from the Google Cloud Console (APIs & Services > Credentials, application type Desktop app)", path)
		}
		return nil, apperr.Wrap(apperr.CredentialMalformed, err, "reading client credentials %s", path)
	}

	conf, err := google.ConfigFromJSON(b, RequiredScopes...)
	if err != nil {
		return nil, apperr.Wrap(apperr.CredentialMalformed, err, "parsing client credentials %s", path)
	}
	if conf.ClientID == "" || conf.ClientSecret == "" {
		return nil, apperr.New(apperr.CredentialMalformed, "client credentials %s are missing client_id or client_secret", path)
	}

	return conf, nil
}

// DefaultCredentialsPath returns the default location of the client-secret
// file (~/.config/gmail-mcp/credentials.json on Linux).
func DefaultCredentialsPath() string {
	return filepath.Join(userConfigDir(), configDirName, "credentials.json")
}

// DefaultTokenPath returns the default location of the persisted token file.
func DefaultTokenPath() string {
	return filepath.Join(userConfigDir(), configDirName, "token.json")
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}
