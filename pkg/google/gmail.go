package google

import (
	"context"
	"fmt"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// maxMailResults bounds one ingestion scan.
const maxMailResults = 50

// MailClient adapts the Gmail API, read-only, for the ingestion
// pipeline.
type MailClient struct {
	srv *gmail.Service
}

// NewMailClient wraps an authenticated gmail service.
func NewMailClient(srv *gmail.Service) *MailClient {
	return &MailClient{srv: srv}
}

// Search returns references to messages matching the query.
func (c *MailClient) Search(ctx context.Context, query string) ([]model.MessageRef, error) {
	res, err := c.srv.Users.Messages.List("me").
		Q(query).
		MaxResults(maxMailResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to search messages: %w", err)
	}
	out := make([]model.MessageRef, 0, len(res.Messages))
	for _, m := range res.Messages {
		out = append(out, model.MessageRef{ID: m.Id})
	}
	return out, nil
}

// Get fetches a full message. The returned Received instant comes from
// the server-assigned internal date, never from a client-supplied
// header, so spoofed Date headers cannot shift transaction timestamps.
func (c *MailClient) Get(ctx context.Context, id string) (model.Message, error) {
	res, err := c.srv.Users.Messages.Get("me", id).Context(ctx).Do()
	if err != nil {
		return model.Message{}, fmt.Errorf("unable to fetch message %s: %w", id, mapErr(err))
	}

	msg := model.Message{
		ID:       res.Id,
		Snippet:  res.Snippet,
		Received: time.UnixMilli(res.InternalDate).UTC(),
	}
	if res.Payload != nil {
		for _, h := range res.Payload.Headers {
			if h.Name == "Subject" {
				msg.Subject = h.Value
				break
			}
		}
	}
	return msg, nil
}
