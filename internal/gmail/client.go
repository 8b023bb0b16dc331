package gmail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"golang.org/x/oauth2"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/quietmail/gmail-mcp/internal/apperr"
	"github.com/quietmail/gmail-mcp/internal/instrumentation"
	"github.com/quietmail/gmail-mcp/internal/logging"
)

const (
	// MaxListResults bounds max_results for ListUnread.
	MaxListResults = 50

	unreadQuery  = "is:unread"
	metricsLabel = "gmail"
)

var defaultLabels = []string{"INBOX"}

// OperationMetrics receives per-call outcomes for upstream API operations.
// Satisfied by *instrumentation.Metrics; nil-able.
type OperationMetrics interface {
	RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration)
}

// mailAPI is the slice of the Gmail API the gateway consumes. Tests swap
// in a fake; production uses the generated client via googleMailAPI.
type mailAPI interface {
	ListMessages(ctx context.Context, query string, labelIDs []string, maxResults int64, pageToken string) (*gmailv1.ListMessagesResponse, error)
	GetMessage(ctx context.Context, id, format string, metadataHeaders ...string) (*gmailv1.Message, error)
	CreateDraft(ctx context.Context, draft *gmailv1.Draft) (*gmailv1.Draft, error)
}

// googleMailAPI adapts the generated Users service to mailAPI.
type googleMailAPI struct {
	svc *gmailv1.UsersService
}

func (g *googleMailAPI) ListMessages(ctx context.Context, query string, labelIDs []string, maxResults int64, pageToken string) (*gmailv1.ListMessagesResponse, error) {
	call := g.svc.Messages.List("me").Q(query).LabelIds(labelIDs...).MaxResults(maxResults)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Context(ctx).Do()
}

func (g *googleMailAPI) GetMessage(ctx context.Context, id, format string, metadataHeaders ...string) (*gmailv1.Message, error) {
	call := g.svc.Messages.Get("me", id).Format(format)
	if len(metadataHeaders) > 0 {
		call = call.MetadataHeaders(metadataHeaders...)
	}
	return call.Context(ctx).Do()
}

func (g *googleMailAPI) CreateDraft(ctx context.Context, draft *gmailv1.Draft) (*gmailv1.Draft, error) {
	return g.svc.Drafts.Create("me", draft).Context(ctx).Do()
}

// Client is the Mail Gateway. It holds no mutable state; concurrency is
// handled by the token source behind the API transport.
type Client struct {
	api     mailAPI
	logger  *slog.Logger
	metrics OperationMetrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the gateway's logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics wires API-operation metrics into the gateway.
func WithMetrics(metrics OperationMetrics) ClientOption {
	return func(c *Client) { c.metrics = metrics }
}

// NewClient creates a Gmail gateway backed by the given token source. The
// token source is typically the google.Manager, so every API call carries
// a live access token.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...ClientOption) (*Client, error) {
	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, apperr.Wrap(apperr.Unknown, err, "creating gmail service")
	}

	c := &Client{
		api:    &googleMailAPI{svc: svc.Users},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListUnread returns one page of unread messages matching the given labels.
// maxResults outside [1, MaxListResults] fails with InvalidArgument before
// any network call; empty labels default to INBOX.
func (c *Client) ListUnread(ctx context.Context, maxResults int64, labels []string, pageToken string) (*UnreadPage, error) {
	if maxResults < 1 || maxResults > MaxListResults {
		return nil, apperr.New(apperr.InvalidArgument,
			"max_results must be between 1 and %d, got %d", MaxListResults, maxResults)
	}
	if len(labels) == 0 {
		labels = defaultLabels
	}

	res, err := observeCall(ctx, c, "messages.list", func() (*gmailv1.ListMessagesResponse, error) {
		return c.api.ListMessages(ctx, unreadQuery, labels, maxResults, pageToken)
	})
	if err != nil {
		return nil, mapAPIError(err, "listing unread messages")
	}

	page := &UnreadPage{
		Emails:        make([]EmailSummary, 0, len(res.Messages)),
		HasMore:       res.NextPageToken != "",
		NextPageToken: res.NextPageToken,
	}
	for _, ref := range res.Messages {
		msg, err := observeCall(ctx, c, "messages.get", func() (*gmailv1.Message, error) {
			return c.api.GetMessage(ctx, ref.Id, "full")
		})
		if err != nil {
			// One unreadable message must not fail the whole page.
			c.logger.Warn("skipping unreadable message",
				slog.String("message_id", ref.Id),
				logging.Err(err))
			continue
		}
		page.Emails = append(page.Emails, summarizeMessage(msg))
	}
	page.TotalCount = len(page.Emails)
	return page, nil
}

// CreateDraftReply creates a draft reply attached to threadID, threaded via
// In-Reply-To/References against the original message. The recipient must
// pass address syntax validation before any network call.
func (c *Client) CreateDraftReply(ctx context.Context, threadID, originalMessageID, replyBody, originalSubject, toAddress string) (*DraftRef, error) {
	switch {
	case threadID == "":
		return nil, apperr.New(apperr.InvalidArgument, "thread_id is required")
	case originalMessageID == "":
		return nil, apperr.New(apperr.InvalidArgument, "original_message_id is required")
	case replyBody == "":
		return nil, apperr.New(apperr.InvalidArgument, "reply_body is required")
	}
	addr, err := mail.ParseAddress(toAddress)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidRecipient, err,
			"to_address %q is not a valid email address", toAddress)
	}

	orig, err := observeCall(ctx, c, "messages.get", func() (*gmailv1.Message, error) {
		return c.api.GetMessage(ctx, originalMessageID, "metadata", "Message-ID", "References")
	})
	if err != nil {
		return nil, mapAPIError(err, "fetching original message")
	}

	inReplyTo := headerValue(orig, "Message-ID")
	if inReplyTo == "" {
		// Rare, but some messages carry no RFC Message-ID header; the
		// Gmail message id still lets Gmail thread the draft.
		inReplyTo = originalMessageID
	}
	references := headerValue(orig, "References")
	if references != "" {
		references += " " + inReplyTo
	} else {
		references = inReplyTo
	}

	raw := buildReplyRaw(addr.Address, replySubject(originalSubject), inReplyTo, references, replyBody)
	draft, err := observeCall(ctx, c, "drafts.create", func() (*gmailv1.Draft, error) {
		return c.api.CreateDraft(ctx, &gmailv1.Draft{
			Message: &gmailv1.Message{Raw: raw, ThreadId: threadID},
		})
	})
	if err != nil {
		return nil, mapAPIError(err, "creating draft reply")
	}

	ref := &DraftRef{DraftID: draft.Id, ThreadID: threadID}
	if draft.Message != nil {
		ref.MessageID = draft.Message.Id
		if draft.Message.ThreadId != "" {
			ref.ThreadID = draft.Message.ThreadId
		}
	}
	return ref, nil
}

// observeCall runs one API call under a client span and records its
// outcome. This is the single recording point for upstream operations;
// the tool wrapper records tool-level metrics only.
func observeCall[T any](ctx context.Context, c *Client, operation string, fn func() (T, error)) (T, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, metricsLabel, operation)
	start := time.Now()
	res, err := fn()
	instrumentation.FinishSpan(span, err)
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordGoogleAPIOperation(ctx, metricsLabel, operation, status, time.Since(start))
	}
	return res, err
}

// mapAPIError translates transport failures into domain error kinds. An
// error that already carries a kind passes through unchanged.
func mapAPIError(err error, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return apperr.Wrap(apperr.ThreadNotFound, err, "%s", op)
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return apperr.Wrap(apperr.AuthenticationRequired, err, "%s", op)
		case apiErr.Code == http.StatusBadRequest:
			return apperr.Wrap(apperr.InvalidArgument, err, "%s", op)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return apperr.Wrap(apperr.UpstreamUnavailable, err, "%s", op)
		default:
			return apperr.Wrap(apperr.Unknown, err, "%s", op)
		}
	}

	// Network failures, timeouts, cancelled contexts.
	return apperr.Wrap(apperr.UpstreamUnavailable, err, "%s", op)
}
