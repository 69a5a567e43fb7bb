// Package pushdisplay turns a relayed push payload into a chat message.
package pushdisplay

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/byNolo/nolofication/internal/domain"
)

// Fallbacks used when the payload leaves a field out.
const (
	DefaultTitle = "NoloFication"
	DefaultBody  = "You have a new notification"
	DefaultIcon  = "/icon-192x192.png"
	DefaultBadge = "/badge-96x96.png"
	DefaultTag   = "notification"

	untitled = "Notification"
)

// Display is what gets shown for one payload.
type Display struct {
	Title string
	Body  string
	Icon  string
	Badge string
	Tag   string
	Type  string
	Site  string
}

type payload struct {
	Title   *string `json:"title"`
	Body    *string `json:"body"`
	Message *string `json:"message"`
	Icon    *string `json:"icon"`
	Badge   *string `json:"badge"`
	Type    *string `json:"type"`
	Site    *string `json:"site"`
	SiteID  *string `json:"site_id"`
}

// Parse never fails. A payload that is not a JSON object is shown verbatim
// under a generic title; missing fields take the defaults.
func Parse(raw []byte) Display {
	d := Display{
		Title: DefaultTitle,
		Body:  DefaultBody,
		Icon:  DefaultIcon,
		Badge: DefaultBadge,
		Tag:   DefaultTag,
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		d.Title = untitled
		if text := strings.TrimSpace(string(raw)); text != "" {
			d.Body = text
		}
		return d
	}
	set(&d.Title, p.Title)
	set(&d.Body, p.Message)
	set(&d.Body, p.Body)
	set(&d.Icon, p.Icon)
	set(&d.Badge, p.Badge)
	set(&d.Type, p.Type)
	set(&d.Tag, p.Type)
	set(&d.Site, p.SiteID)
	set(&d.Site, p.Site)
	return d
}

func set(dst *string, v *string) {
	if v == nil {
		return
	}
	if s := strings.TrimSpace(*v); s != "" {
		*dst = s
	}
}

// HTML renders d for a chat using Telegram's HTML parse mode.
func (d Display) HTML() string {
	var b strings.Builder
	icon := "🔔"
	if d.Type != "" {
		icon = domain.TypeIcon(d.Type)
	}
	fmt.Fprintf(&b, "%s <b>%s</b>\n%s", icon, html.EscapeString(d.Title), html.EscapeString(d.Body))
	if d.Site != "" {
		fmt.Fprintf(&b, "\n\n<i>%s</i>", html.EscapeString(d.Site))
	}
	return b.String()
}

// FromNotification renders a history entry the same way a pushed one is shown.
func FromNotification(n domain.Notification) Display {
	d := Display{
		Title: n.Title,
		Body:  n.Message,
		Icon:  DefaultIcon,
		Badge: DefaultBadge,
		Tag:   DefaultTag,
		Type:  n.Type,
		Site:  n.SiteName,
	}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = DefaultTitle
	}
	if strings.TrimSpace(d.Body) == "" {
		d.Body = DefaultBody
	}
	if n.Type != "" {
		d.Tag = n.Type
	}
	if d.Site == "" {
		d.Site = n.SiteID
	}
	return d
}
