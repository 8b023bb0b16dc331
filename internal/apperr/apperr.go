package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for the tool-error surface.
type Kind string

const (
	// AuthenticationRequired means no usable credentials exist and the
	// out-of-band authorization flow must be run.
	AuthenticationRequired Kind = "authentication_required"

	// AuthorizationDenied means the user declined consent or the
	// interactive flow timed out.
	AuthorizationDenied Kind = "authorization_denied"

	// InvalidArgument means the caller supplied malformed tool input.
	InvalidArgument Kind = "invalid_argument"

	// ThreadNotFound means the referenced Gmail thread or message does not exist.
	ThreadNotFound Kind = "thread_not_found"

	// InvalidRecipient means a recipient address failed syntactic validation.
	InvalidRecipient Kind = "invalid_recipient"

	// UpstreamUnavailable covers network failures, timeouts and 5xx
	// responses from Gmail or the identity provider.
	UpstreamUnavailable Kind = "upstream_unavailable"

	// CredentialNotFound means the OAuth client-secret file is missing.
	CredentialNotFound Kind = "credential_not_found"

	// CredentialMalformed means a local credential or token file could not
	// be parsed.
	CredentialMalformed Kind = "credential_malformed"

	// Unknown is returned by KindOf for errors outside the taxonomy.
	Unknown Kind = "unknown"
)

// Error is a classified error with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or Unknown if err carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the human-readable message of err without the kind
// prefix or wrapped cause chain. Falls back to err.Error() for errors
// outside the taxonomy.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
