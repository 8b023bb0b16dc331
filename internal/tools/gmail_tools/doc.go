// Package gmail_tools provides MCP (Model Context Protocol) tools for
// interacting with Gmail.
//
// This package exposes Gmail functionality through MCP tools that can be
// called by AI agents or other MCP clients:
//
//   - get_unread_emails: List unread emails with structured summaries
//     (sender, subject, snippet, body preview) and cursor pagination
//   - create_draft_reply: Create a threaded reply draft that is left
//     unsent for human review
//
// Both tools require an authenticated Gmail client which is provided
// through the server context. The client handles OAuth2 authentication
// and token refresh. Errors surface to callers as structured
// "kind: message" tool errors; raw transport errors never do.
package gmail_tools
