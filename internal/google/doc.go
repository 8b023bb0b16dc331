// Package google provides OAuth2 credential loading and token lifecycle
// management for the Gmail API.
//
// The credential store reads the OAuth client-secret file downloaded from
// the Google Cloud Console and the persisted token file. The Manager owns
// the token lifecycle: it hands out live access tokens, performs at most
// one serialized refresh per call when the stored token is near expiry,
// and persists refreshed tokens atomically. Interactive authorization
// (authorization-code grant with a local redirect listener) is a separate
// administrative action and is never triggered from inside a tool call.
package google
