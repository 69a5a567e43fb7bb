package domain

import "time"

// Notification is one entry of a user's notification history.
type Notification struct {
	ID        int64        `json:"id"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	Type      string       `json:"type"`
	Category  string       `json:"category,omitempty"`
	SiteID    string       `json:"site_id"`
	SiteName  string       `json:"site_name"`
	Channels  ChannelFlags `json:"channels"`
	IsRead    bool         `json:"is_read"`
	CreatedAt string       `json:"created_at"`
}

// Created parses CreatedAt; the zero time is returned when it is malformed.
func (n Notification) Created() time.Time {
	t, err := ParseTimestamp(n.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DeliveredVia lists the channels the notification went out on, in display order.
func (n Notification) DeliveredVia() []Channel {
	var out []Channel
	for _, c := range AllChannels() {
		if n.Channels[c] {
			out = append(out, c)
		}
	}
	return out
}

// NotificationPage is one page of a paginated notification listing.
type NotificationPage struct {
	Total         int            `json:"total"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	Notifications []Notification `json:"notifications"`
}

// Notification types understood by the backend.
const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeError   = "error"
)

// TypeIcon maps a notification type to an emoji. Unknown types are opaque.
func TypeIcon(t string) string {
	switch t {
	case TypeSuccess:
		return "✅"
	case TypeWarning:
		return "⚠️"
	case TypeError:
		return "❌"
	}
	return "ℹ️"
}
