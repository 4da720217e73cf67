// Package httpapi implements source.Backend against the notification
// service's REST API.
package httpapi

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nhle/notification-sync/internal/source"
)

// Adapter implements source.Backend over HTTP.
type Adapter struct {
	client *Client
	now    func() time.Time
}

// NewAdapter creates a new REST backend.
func NewAdapter(baseURL, token string, opts ClientOptions) *Adapter {
	return &Adapter{
		client: NewClient(baseURL, token, opts),
		now:    time.Now,
	}
}

var _ source.Backend = (*Adapter)(nil)

// ValidateConnection verifies the API is reachable and the token is
// accepted by fetching a single record for subscriberID.
func (a *Adapter) ValidateConnection(ctx context.Context, subscriberID string) error {
	if _, err := a.FetchPage(ctx, subscriberID, 1, 1); err != nil {
		return fmt.Errorf("validating notifications API: %w", err)
	}
	return nil
}

// FetchPage calls GET /notifications/user/:id.
func (a *Adapter) FetchPage(
	ctx context.Context,
	subscriberID string,
	page int,
	limit int,
) ([]source.RawRecord, error) {
	if page < 1 {
		page = 1
	}
	path := fmt.Sprintf(
		"/notifications/user/%s?page=%d&limit=%d",
		url.PathEscape(subscriberID), page, limit,
	)
	return a.fetch(ctx, path)
}

// FetchHistory calls GET /notifications/user-history/:id.
func (a *Adapter) FetchHistory(
	ctx context.Context,
	subscriberID string,
	limit int,
) ([]source.RawRecord, error) {
	path := fmt.Sprintf(
		"/notifications/user-history/%s?page=1&limit=%d",
		url.PathEscape(subscriberID), limit,
	)
	return a.fetch(ctx, path)
}

func (a *Adapter) fetch(ctx context.Context, path string) ([]source.RawRecord, error) {
	body, err := a.client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	records, err := source.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return records, nil
}

// MarkRead calls PATCH /notifications/:id/read.
func (a *Adapter) MarkRead(
	ctx context.Context,
	id string,
	subscriberID string,
) (bool, error) {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	req := MarkReadRequest{
		UserID: subscriberID,
		ReadAt: a.now().UTC().Format(time.RFC3339),
	}

	var resp MarkReadResponse
	if err := a.client.Patch(ctx, path, req, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}
