// Package apperr defines the structured error taxonomy used at component
// boundaries.
//
// Errors that cross a boundary (credential store, token manager, mail
// gateway, tool handlers) carry a Kind so callers can react to the class of
// failure without parsing message text, and so tool results expose a stable
// machine-readable kind instead of raw transport errors.
package apperr
