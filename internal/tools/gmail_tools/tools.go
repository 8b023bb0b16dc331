package gmail_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/quietmail/gmail-mcp/internal/apperr"
	"github.com/quietmail/gmail-mcp/internal/gmail"
	"github.com/quietmail/gmail-mcp/internal/server"
	"github.com/quietmail/gmail-mcp/internal/tools/common"
)

// defaultMaxResults is the page size used when max_results is omitted.
const defaultMaxResults = 10

// emailGateway is the part of the Gmail client the tool handlers use.
// Declared here so tests can substitute a fake.
type emailGateway interface {
	ListUnread(ctx context.Context, maxResults int64, labels []string, pageToken string) (*gmail.UnreadPage, error)
	CreateDraftReply(ctx context.Context, threadID, originalMessageID, replyBody, originalSubject, toAddress string) (*gmail.DraftRef, error)
}

// RegisterGmailTools registers the Gmail tools with the MCP server.
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	getUnreadTool := mcp.Tool{
		Name:        "get_unread_emails",
		Description: "List unread emails from the authorized Gmail account, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"max_results": map[string]string{
					"type":        "integer",
					"description": "Maximum number of emails to return, between 1 and 50 (default: 10)",
				},
				"labels": map[string]interface{}{
					"type":        "array",
					"items":       map[string]string{"type": "string"},
					"description": "Gmail label IDs to filter by (default: [\"INBOX\"])",
				},
				"page_token": map[string]string{
					"type":        "string",
					"description": "Opaque token from a previous response to fetch the next page",
				},
			},
		},
	}

	s.AddTool(getUnreadTool, common.InstrumentedToolHandler(
		"get_unread_emails", "messages.list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			client, err := sc.GmailClient(ctx)
			if err != nil {
				return toolError(err), nil
			}
			return handleGetUnreadEmails(ctx, request, client)
		},
	))

	createDraftTool := mcp.Tool{
		Name:        "create_draft_reply",
		Description: "Create a Gmail draft replying to an existing message. The draft is threaded onto the original conversation and left unsent for review.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"thread_id": map[string]string{
					"type":        "string",
					"description": "ID of the thread to reply on",
				},
				"original_message_id": map[string]string{
					"type":        "string",
					"description": "ID of the message being replied to",
				},
				"reply_body": map[string]string{
					"type":        "string",
					"description": "Plain text body of the reply",
				},
				"original_subject": map[string]string{
					"type":        "string",
					"description": "Subject of the original message (a Re: prefix is added if missing)",
				},
				"to_address": map[string]string{
					"type":        "string",
					"description": "Recipient email address",
				},
			},
			Required: []string{"thread_id", "original_message_id", "reply_body", "original_subject", "to_address"},
		},
	}

	s.AddTool(createDraftTool, common.InstrumentedToolHandler(
		"create_draft_reply", "drafts.create", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			client, err := sc.GmailClient(ctx)
			if err != nil {
				return toolError(err), nil
			}
			return handleCreateDraftReply(ctx, request, client)
		},
	))

	return nil
}

func handleGetUnreadEmails(ctx context.Context, request mcp.CallToolRequest, gw emailGateway) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	maxResults := int64(defaultMaxResults)
	if v, ok := args["max_results"]; ok {
		f, ok := v.(float64)
		if !ok {
			return mcp.NewToolResultError("invalid_argument: max_results must be a number"), nil
		}
		maxResults = int64(f)
	}

	var labels []string
	if v, ok := args["labels"]; ok {
		list, ok := v.([]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid_argument: labels must be an array of strings"), nil
		}
		for _, item := range list {
			label, ok := item.(string)
			if !ok {
				return mcp.NewToolResultError("invalid_argument: labels must be an array of strings"), nil
			}
			labels = append(labels, label)
		}
	}

	pageToken := ""
	if v, ok := args["page_token"]; ok {
		s, ok := v.(string)
		if !ok {
			return mcp.NewToolResultError("invalid_argument: page_token must be a string"), nil
		}
		pageToken = s
	}

	page, err := gw.ListUnread(ctx, maxResults, labels, pageToken)
	if err != nil {
		return toolError(err), nil
	}

	return toolJSON(page)
}

func handleCreateDraftReply(ctx context.Context, request mcp.CallToolRequest, gw emailGateway) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	threadID, err := requiredString(args, "thread_id")
	if err != nil {
		return toolError(err), nil
	}
	originalMessageID, err := requiredString(args, "original_message_id")
	if err != nil {
		return toolError(err), nil
	}
	replyBody, err := requiredString(args, "reply_body")
	if err != nil {
		return toolError(err), nil
	}
	toAddress, err := requiredString(args, "to_address")
	if err != nil {
		return toolError(err), nil
	}

	// The original subject may legitimately be empty; only its type is checked.
	originalSubject := ""
	if v, ok := args["original_subject"]; ok {
		s, ok := v.(string)
		if !ok {
			return toolError(apperr.New(apperr.InvalidArgument, "original_subject must be a string")), nil
		}
		originalSubject = s
	}

	draft, err := gw.CreateDraftReply(ctx, threadID, originalMessageID, replyBody, originalSubject, toAddress)
	if err != nil {
		return toolError(err), nil
	}

	return toolJSON(draft)
}

func requiredString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", apperr.New(apperr.InvalidArgument, "%s is required", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", apperr.New(apperr.InvalidArgument, "%s must be a non-empty string", key)
	}
	return s, nil
}

// toolJSON marshals a result payload into a text tool result.
func toolJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(apperr.Wrap(apperr.Unknown, err, "encoding result")), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError converts an error into a structured "kind: message" tool error.
// Unclassified errors surface as upstream_unavailable so transport details
// never reach the caller.
func toolError(err error) *mcp.CallToolResult {
	kind := apperr.KindOf(err)
	if kind == apperr.Unknown {
		kind = apperr.UpstreamUnavailable
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", kind, apperr.Message(err)))
}
