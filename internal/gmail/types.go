package gmail

// EmailSummary is the flattened, read-only view of one unread message.
// It is reconstructed per request and never persisted.
type EmailSummary struct {
	EmailID        string   `json:"email_id"`
	ThreadID       string   `json:"thread_id"`
	Sender         string   `json:"sender"`
	SenderName     string   `json:"sender_name,omitempty"`
	Subject        string   `json:"subject"`
	Snippet        string   `json:"snippet,omitempty"`
	BodyPreview    string   `json:"body_preview"`
	ReceivedAt     string   `json:"received_at,omitempty"`
	HasAttachments bool     `json:"has_attachments"`
	Labels         []string `json:"labels,omitempty"`
}

// UnreadPage is one page of unread messages. HasMore reflects the presence
// of a continuation token in the underlying API response; TotalCount counts
// the summaries in this page, not the mailbox.
type UnreadPage struct {
	Emails        []EmailSummary `json:"emails"`
	TotalCount    int            `json:"total_count"`
	HasMore       bool           `json:"has_more"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// DraftRef identifies a created draft reply.
type DraftRef struct {
	DraftID   string `json:"draft_id"`
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
}
