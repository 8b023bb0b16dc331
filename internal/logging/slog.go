package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// KeyError is the attribute key for errors, shared so log lines stay
// greppable.
const KeyError = "error"

// Err builds the error attribute. A nil err yields an empty group, which
// slog drops from output, so call sites never branch on nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail hashes an email address into a stable identifier so log
// entries can be correlated without carrying PII. Empty input stays empty.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(sum[:8])
}

// SanitizeToken masks a token down to its length. No prefix is kept;
// even a JWT header fragment identifies the issuer.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
