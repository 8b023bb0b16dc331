// Package gmail is the gateway to the Gmail API. It wraps the generated
// client behind a narrow surface covering the two operations the server
// exposes: listing unread messages and creating threaded draft replies.
//
// All transport-level failures are mapped to domain error kinds at this
// boundary; callers never see raw HTTP responses or googleapi errors.
package gmail
