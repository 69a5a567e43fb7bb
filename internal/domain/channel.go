package domain

import (
	"fmt"
	"strings"
)

// Channel is a delivery mechanism for notifications.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelWebPush Channel = "web_push"
	ChannelDiscord Channel = "discord"
	ChannelWebhook Channel = "webhook"
)

// AllChannels returns every channel in display order.
func AllChannels() []Channel {
	return []Channel{ChannelEmail, ChannelWebPush, ChannelDiscord, ChannelWebhook}
}

// ParseChannel accepts the wire name of a channel (case-insensitive).
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelWebPush, ChannelDiscord, ChannelWebhook:
		return true
	}
	return false
}

// Label is the human name shown next to toggles.
func (c Channel) Label() string {
	switch c {
	case ChannelEmail:
		return "Email"
	case ChannelWebPush:
		return "Web Push"
	case ChannelDiscord:
		return "Discord"
	case ChannelWebhook:
		return "Webhook"
	}
	return string(c)
}

// Icon is a short emoji prefix for chat rendering.
func (c Channel) Icon() string {
	switch c {
	case ChannelEmail:
		return "📧"
	case ChannelWebPush:
		return "🔔"
	case ChannelDiscord:
		return "💬"
	case ChannelWebhook:
		return "🔗"
	}
	return "•"
}
