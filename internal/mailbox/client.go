// Package mailbox retrieves candidate transaction notifications from a
// Gmail mailbox. It is a read-only boundary: failures degrade to empty
// results so opportunistic polling can never crash the caller.
package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dvloznov/mailspend/internal/domain"
)

// Client is the slice of the mailbox API the retriever needs. The concrete
// implementation wraps the Gmail SDK; tests substitute a fake.
type Client interface {
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)
	FetchMessage(ctx context.Context, id string) (domain.RawMessage, error)
}

// GmailClient implements Client against the Gmail API for the authorized
// user's own mailbox.
type GmailClient struct {
	svc *gmail.Service
}

// NewGmailClient builds a Gmail client. opts typically carry a token
// source from the sign-in collaborator or a credentials file.
func NewGmailClient(ctx context.Context, opts ...option.ClientOption) (*GmailClient, error) {
	opts = append([]option.ClientOption{option.WithScopes(gmail.GmailReadonlyScope)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailbox: gmail client: %w", err)
	}
	return &GmailClient{svc: svc}, nil
}

func (c *GmailClient) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	resp, err := c.svc.Users.Messages.List("me").Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("mailbox: list messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

func (c *GmailClient) FetchMessage(ctx context.Context, id string) (domain.RawMessage, error) {
	msg, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return domain.RawMessage{}, fmt.Errorf("mailbox: get message %s: %w", id, err)
	}
	return rawMessageFrom(msg), nil
}

// rawMessageFrom flattens a Gmail message: headers of interest, decoded
// body, and the received timestamp.
func rawMessageFrom(msg *gmail.Message) domain.RawMessage {
	raw := domain.RawMessage{
		ID:      msg.Id,
		Snippet: msg.Snippet,
	}
	if msg.Payload != nil {
		raw.Sender = headerValue(msg.Payload, "From")
		raw.Subject = headerValue(msg.Payload, "Subject")
	}
	raw.Body = decodeBody(msg)
	if raw.Body == "" {
		raw.Body = msg.Snippet
	}
	raw.Received = time.UnixMilli(msg.InternalDate).UTC()
	return raw
}

func headerValue(payload *gmail.MessagePart, name string) string {
	for _, h := range payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// decodeBody prefers a multi-part text body over the short snippet: the
// snippet is a preview and often cuts the amount or merchant off.
func decodeBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	if part := findTextPart(msg.Payload); part != nil {
		if text := decodePartData(part.Body.Data); len(text) > len(msg.Snippet) {
			return text
		}
	}
	if msg.Payload.Body != nil {
		if text := decodePartData(msg.Payload.Body.Data); text != "" {
			return text
		}
	}
	return ""
}

func findTextPart(payload *gmail.MessagePart) *gmail.MessagePart {
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			return part
		}
		if nested := findTextPart(part); nested != nil {
			return nested
		}
	}
	return nil
}

func decodePartData(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// isAuthExpired reports whether err is the API's expired-session error.
func isAuthExpired(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 401
}
