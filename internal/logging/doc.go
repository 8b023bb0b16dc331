// Package logging provides structured logging helpers for gmail-mcp.
//
// The package keeps log output safe to ship: errors are attached under a
// single shared key, email addresses are hashed before they reach a log
// line, and token values are reduced to their length.
//
// Attach an error without branching on nil:
//
//	logger.Warn("refresh failed", logging.Err(err))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("draft created",
//	    slog.String("recipient_hash", logging.AnonymizeEmail(toAddress)))
package logging
