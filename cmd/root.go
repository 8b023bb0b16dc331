package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the gmail-mcp application
var rootCmd = &cobra.Command{
	Use:   "gmail-mcp",
	Short: "MCP server exposing Gmail read and draft-reply tools",
	Long: `gmail-mcp is a Model Context Protocol (MCP) server that gives AI
assistants safe access to a Gmail account:

  - get_unread_emails: list unread emails with structured summaries
  - create_draft_reply: create a threaded reply draft, left unsent for review

Run "gmail-mcp auth" once to authorize access, then "gmail-mcp serve" to
start the server.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	// Load a .env file if present; real environment variables win.
	_ = godotenv.Load()

	rootCmd.SetVersionTemplate(`{{printf "gmail-mcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
