package gmail

import (
	"encoding/base64"
	"mime"
	"net/mail"
	"strings"
	"time"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// bodyPreviewLimit is the maximum number of runes in a body preview.
const bodyPreviewLimit = 500

const noSubject = "(no subject)"

// summarizeMessage flattens a full Gmail message into an EmailSummary.
func summarizeMessage(m *gmailv1.Message) EmailSummary {
	sender, senderName := parseSender(headerValue(m, "From"))

	subject := headerValue(m, "Subject")
	if subject == "" {
		subject = noSubject
	}

	var receivedAt string
	if date := headerValue(m, "Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			receivedAt = t.UTC().Format(time.RFC3339)
		}
	}

	return EmailSummary{
		EmailID:        m.Id,
		ThreadID:       m.ThreadId,
		Sender:         sender,
		SenderName:     senderName,
		Subject:        subject,
		Snippet:        m.Snippet,
		BodyPreview:    bodyPreview(m),
		ReceivedAt:     receivedAt,
		HasAttachments: hasAttachments(m.Payload),
		Labels:         m.LabelIds,
	}
}

// headerValue returns the first header with the given name, matched
// case-insensitively per RFC 5322.
func headerValue(m *gmailv1.Message, name string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// parseSender splits a From header into address and display name. A header
// that fails address parsing is passed through as the bare sender.
func parseSender(from string) (sender, name string) {
	if from == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return from, ""
	}
	return addr.Address, addr.Name
}

// bodyPreview extracts the first text/plain part and truncates it to
// bodyPreviewLimit runes. Falls back to the snippet when no decodable
// plain-text part exists.
func bodyPreview(m *gmailv1.Message) string {
	if m == nil || m.Payload == nil {
		return ""
	}

	var body string
	walkParts(m.Payload, func(part *gmailv1.MessagePart) {
		if body == "" && part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBody(part.Body.Data); err == nil {
				body = decoded
			}
		}
	})
	if body == "" {
		body = m.Snippet
	}
	return truncateRunes(body, bodyPreviewLimit)
}

// walkParts visits part and all nested parts depth-first.
func walkParts(part *gmailv1.MessagePart, fn func(*gmailv1.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, sub := range part.Parts {
		walkParts(sub, fn)
	}
}

// decodeBody decodes the base64url body data the Gmail API returns; the
// padding is not consistent across messages, so try both alphabets.
func decodeBody(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// hasAttachments reports whether any part carries a filename.
func hasAttachments(payload *gmailv1.MessagePart) bool {
	found := false
	walkParts(payload, func(part *gmailv1.MessagePart) {
		if part.Filename != "" {
			found = true
		}
	})
	return found
}

// replySubject prefixes "Re: " unless the subject already carries it in
// any casing; replying twice must not stack prefixes.
func replySubject(subject string) string {
	if subject == "" {
		return "Re: " + noSubject
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// encodeRFC2047 encodes a header value for non-ASCII content.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// buildReplyRaw assembles the RFC 2822 reply and encodes it the way the
// Gmail API expects raw messages: base64url.
func buildReplyRaw(to, subject, inReplyTo, references, body string) string {
	var b strings.Builder
	b.WriteString("To: ")
	b.WriteString(to)
	b.WriteString("\r\n")
	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(subject))
	b.WriteString("\r\n")
	b.WriteString("In-Reply-To: ")
	b.WriteString(inReplyTo)
	b.WriteString("\r\n")
	b.WriteString("References: ")
	b.WriteString(references)
	b.WriteString("\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}
