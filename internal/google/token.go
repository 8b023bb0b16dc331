package google

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/quietmail/gmail-mcp/internal/apperr"
)

// Record is the persisted form of an OAuth token: the short-lived access
// token, the long-lived refresh token, the access token's expiry and the
// scope set the user granted. It is the only mutable state in the system.
type Record struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes"`
}

// Token converts the record into an oauth2.Token.
func (r *Record) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Expiry:       r.Expiry,
	}
}

// HasScopes reports whether the record's granted scope set covers every
// scope in required.
func (r *Record) HasScopes(required []string) bool {
	granted := make(map[string]bool, len(r.Scopes))
	for _, s := range r.Scopes {
		granted[s] = true
	}
	for _, s := range required {
		if !granted[s] {
			return false
		}
	}
	return true
}

// MissingScopes returns the scopes in required that the record does not carry.
func (r *Record) MissingScopes(required []string) []string {
	granted := make(map[string]bool, len(r.Scopes))
	for _, s := range r.Scopes {
		granted[s] = true
	}
	var missing []string
	for _, s := range required {
		if !granted[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

// LoadToken reads a persisted token record from path. A missing file is the
// normal first-run state and returns (nil, nil); a file that cannot be
// parsed returns a CredentialMalformed error so the caller can force
// re-authorization.
func LoadToken(path string) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.CredentialMalformed, err, "reading token file %s", path)
	}

	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, apperr.Wrap(apperr.CredentialMalformed, err, "parsing token file %s", path)
	}

	return &rec, nil
}

// SaveToken persists a token record to path atomically: the record is
// written to a temp file in the same directory and renamed into place, so a
// crash mid-write never leaves a half-written token file. The file is
// readable only by the owning user.
func SaveToken(path string, rec *Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating token directory %s: %w", dir, err)
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting token file mode: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing token file %s: %w", path, err)
	}
	return nil
}

// HasToken reports whether a readable token record exists at path.
func HasToken(path string) bool {
	rec, err := LoadToken(path)
	return err == nil && rec != nil
}
