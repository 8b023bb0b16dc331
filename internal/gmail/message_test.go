package gmail

import (
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"testing"

	gmailv1 "google.golang.org/api/gmail/v1"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"plain subject", "Quarterly report", "Re: Quarterly report"},
		{"already prefixed", "Re: Quarterly report", "Re: Quarterly report"},
		{"uppercase prefix", "RE: Quarterly report", "RE: Quarterly report"},
		{"lowercase prefix", "re: hello", "re: hello"},
		{"prefix mid-subject", "Compare: results", "Re: Compare: results"},
		{"empty", "", "Re: (no subject)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := replySubject(tt.subject); got != tt.want {
				t.Errorf("replySubject(%q) = %q, want %q", tt.subject, got, tt.want)
			}
		})
	}
}

func TestParseSender(t *testing.T) {
	tests := []struct {
		name       string
		from       string
		wantSender string
		wantName   string
	}{
		{"name and address", "Alice Example <alice@example.com>", "alice@example.com", "Alice Example"},
		{"bare address", "bob@example.com", "bob@example.com", ""},
		{"quoted name", `"Example, Alice" <alice@example.com>`, "alice@example.com", "Example, Alice"},
		{"unparseable", "not an address", "not an address", ""},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, name := parseSender(tt.from)
			if sender != tt.wantSender || name != tt.wantName {
				t.Errorf("parseSender(%q) = (%q, %q), want (%q, %q)",
					tt.from, sender, name, tt.wantSender, tt.wantName)
			}
		})
	}
}

func TestHeaderValueCaseInsensitive(t *testing.T) {
	msg := &gmailv1.Message{
		Payload: &gmailv1.MessagePart{
			Headers: []*gmailv1.MessagePartHeader{
				{Name: "message-id", Value: "<abc@example.com>"},
				{Name: "Subject", Value: "hello"},
			},
		},
	}

	if got := headerValue(msg, "Message-ID"); got != "<abc@example.com>" {
		t.Errorf("headerValue(Message-ID) = %q", got)
	}
	if got := headerValue(msg, "SUBJECT"); got != "hello" {
		t.Errorf("headerValue(SUBJECT) = %q", got)
	}
	if got := headerValue(msg, "Date"); got != "" {
		t.Errorf("headerValue(Date) = %q, want empty", got)
	}
	if got := headerValue(nil, "Subject"); got != "" {
		t.Errorf("headerValue(nil) = %q, want empty", got)
	}
}

func TestBodyPreviewNestedParts(t *testing.T) {
	msg := &gmailv1.Message{
		Snippet: "snippet fallback",
		Payload: &gmailv1.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmailv1.MessagePart{
				{
					MimeType: "text/html",
					Body: &gmailv1.MessagePartBody{
						Data: base64.URLEncoding.EncodeToString([]byte("<p>html</p>")),
					},
				},
				{
					MimeType: "multipart/mixed",
					Parts: []*gmailv1.MessagePart{
						{
							MimeType: "text/plain",
							Body: &gmailv1.MessagePartBody{
								Data: base64.URLEncoding.EncodeToString([]byte("nested plain text")),
							},
						},
					},
				},
			},
		},
	}

	if got := bodyPreview(msg); got != "nested plain text" {
		t.Errorf("bodyPreview() = %q, want nested plain text", got)
	}
}

func TestBodyPreviewTruncation(t *testing.T) {
	long := strings.Repeat("ä", 800)
	msg := &gmailv1.Message{
		Payload: &gmailv1.MessagePart{
			MimeType: "text/plain",
			Body: &gmailv1.MessagePartBody{
				Data: base64.URLEncoding.EncodeToString([]byte(long)),
			},
		},
	}

	got := bodyPreview(msg)
	if runeCount := len([]rune(got)); runeCount != bodyPreviewLimit {
		t.Errorf("preview length = %d runes, want %d", runeCount, bodyPreviewLimit)
	}
	if !strings.HasPrefix(long, got) {
		t.Error("preview is not a prefix of the body")
	}
}

func TestBodyPreviewFallsBackToSnippet(t *testing.T) {
	msg := &gmailv1.Message{
		Snippet: "only the snippet",
		Payload: &gmailv1.MessagePart{
			MimeType: "text/html",
			Body: &gmailv1.MessagePartBody{
				Data: base64.URLEncoding.EncodeToString([]byte("<p>html only</p>")),
			},
		},
	}

	if got := bodyPreview(msg); got != "only the snippet" {
		t.Errorf("bodyPreview() = %q, want the snippet", got)
	}
}

func TestHasAttachments(t *testing.T) {
	withAttachment := &gmailv1.MessagePart{
		Parts: []*gmailv1.MessagePart{
			{MimeType: "text/plain"},
			{MimeType: "application/pdf", Filename: "report.pdf"},
		},
	}
	if !hasAttachments(withAttachment) {
		t.Error("hasAttachments() = false for a part carrying a filename")
	}

	without := &gmailv1.MessagePart{
		Parts: []*gmailv1.MessagePart{{MimeType: "text/plain"}},
	}
	if hasAttachments(without) {
		t.Error("hasAttachments() = true without filenames")
	}
	if hasAttachments(nil) {
		t.Error("hasAttachments(nil) = true")
	}
}

func TestEncodeRFC2047(t *testing.T) {
	if got := encodeRFC2047("plain ascii"); got != "plain ascii" {
		t.Errorf("ascii subject was encoded: %q", got)
	}

	encoded := encodeRFC2047("Grüße aus Köln")
	if !strings.HasPrefix(encoded, "=?UTF-8?") {
		t.Errorf("non-ascii subject not RFC 2047 encoded: %q", encoded)
	}
}

func TestSummarizeMessageDate(t *testing.T) {
	msg := unreadMessage("m1", "t1", "a@example.com", "s", "b")
	sum := summarizeMessage(msg)
	if sum.ReceivedAt != "2026-08-29T10:00:00Z" {
		t.Errorf("ReceivedAt = %q, want 2026-08-29T10:00:00Z", sum.ReceivedAt)
	}

	// Unparseable dates are dropped rather than failing the summary.
	msg.Payload.Headers[2].Value = "not a date"
	if sum := summarizeMessage(msg); sum.ReceivedAt != "" {
		t.Errorf("ReceivedAt = %q for unparseable date, want empty", sum.ReceivedAt)
	}
}
