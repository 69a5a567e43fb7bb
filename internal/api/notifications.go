package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/byNolo/nolofication/internal/domain"
)

// ListOptions paginates and filters notification listings.
type ListOptions struct {
	SiteID string
	Limit  int
	Offset int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.SiteID != "" {
		q.Set("site_id", o.SiteID)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	return q
}

// Notifications returns the user's notification history, newest first.
func (c *Client) Notifications(ctx context.Context, ts TokenSource, opts ListOptions) (domain.NotificationPage, error) {
	var out domain.NotificationPage
	err := c.do(ctx, "notifications.list", http.MethodGet, withQuery("/notifications", opts.query()), ts, nil, &out)
	return out, err
}

// MarkRead marks one notification as read.
func (c *Client) MarkRead(ctx context.Context, ts TokenSource, id int64) error {
	path := "/notifications/" + strconv.FormatInt(id, 10) + "/read"
	return c.do(ctx, "notifications.read", http.MethodPost, path, ts, nil, nil)
}

// MarkAllRead marks every notification of the user as read.
func (c *Client) MarkAllRead(ctx context.Context, ts TokenSource) error {
	return c.do(ctx, "notifications.read_all", http.MethodPut, "/notifications/read-all", ts, nil, nil)
}

// TestChannelAll asks SendTest to try every enabled channel.
const TestChannelAll = "all"

// SendTest asks the backend to deliver a test notification via channel
// (a domain.Channel value or TestChannelAll). It returns the backend's message.
func (c *Client) SendTest(ctx context.Context, ts TokenSource, channel string) (string, error) {
	if channel != TestChannelAll && !domain.Channel(channel).Valid() {
		return "", &Error{Message: "invalid input: unknown channel " + channel}
	}
	var out messageResponse
	in := map[string]string{"channel": channel}
	err := c.do(ctx, "notifications.test", http.MethodPost, "/notifications/test", ts, in, &out)
	return out.Message, err
}
