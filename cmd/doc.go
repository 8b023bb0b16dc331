// Package cmd implements the command-line interface for gmail-mcp.
//
// This package provides the following commands:
//   - serve: Start the MCP server (stdio or streamable-http transport)
//   - auth: Run the interactive OAuth authorization flow
//   - version: Display version information
package cmd
