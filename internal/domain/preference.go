package domain

import (
	"encoding/json"
)

// ChannelFlags is the global layer. A missing channel is off.
type ChannelFlags map[Channel]bool

// ChannelSet is an override layer. A missing channel is Unset.
type ChannelSet map[Channel]TriState

// Get is safe on a nil set.
func (s ChannelSet) Get(c Channel) TriState {
	if s == nil {
		return Unset
	}
	return s[c]
}

// Clone returns a copy holding every channel, missing ones as Unset.
func (s ChannelSet) Clone() ChannelSet {
	out := make(ChannelSet, len(AllChannels()))
	for _, c := range AllChannels() {
		out[c] = s.Get(c)
	}
	return out
}

// GlobalPreferences are the user's defaults across all sites.
type GlobalPreferences struct {
	Channels      ChannelFlags
	DiscordUserID string
	WebhookURL    string
}

// MarshalJSON writes the flat backend form:
// {"email": true, ..., "discord_user_id": "...", "webhook_url": "..."}.
func (g GlobalPreferences) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(AllChannels())+2)
	for _, c := range AllChannels() {
		m[string(c)] = g.Channels[c]
	}
	m["discord_user_id"] = optString(g.DiscordUserID)
	m["webhook_url"] = optString(g.WebhookURL)
	return json.Marshal(m)
}

// UnmarshalJSON treats anything but a JSON true as off.
func (g *GlobalPreferences) UnmarshalJSON(b []byte) error {
	*g = GlobalPreferences{Channels: ChannelFlags{}}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	for _, c := range AllChannels() {
		var t TriState
		_ = t.UnmarshalJSON(raw[string(c)])
		g.Channels[c] = t == On
	}
	g.DiscordUserID = rawString(raw["discord_user_id"])
	g.WebhookURL = rawString(raw["webhook_url"])
	return nil
}

// SitePreferences are a user's overrides for one site.
type SitePreferences struct {
	Channels ChannelSet
	Schedule *Schedule
}

// MarshalJSON writes only the channels present in the set (Unset as null)
// and the schedule when one is attached.
func (p SitePreferences) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Channels)+1)
	for c, v := range p.Channels {
		m[string(c)] = v
	}
	if p.Schedule != nil {
		m["schedule"] = *p.Schedule
	}
	return json.Marshal(m)
}

func (p *SitePreferences) UnmarshalJSON(b []byte) error {
	*p = SitePreferences{Channels: ChannelSet{}}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	for _, c := range AllChannels() {
		var t TriState
		_ = t.UnmarshalJSON(raw[string(c)])
		p.Channels[c] = t
	}
	if rs, ok := raw["schedule"]; ok && string(rs) != "null" {
		var s Schedule
		_ = s.UnmarshalJSON(rs)
		p.Schedule = &s
	}
	return nil
}

// Category is a site-defined notification type.
type Category struct {
	Key             string
	Name            string
	Description     string
	DefaultSchedule *Schedule
}

type categoryWire struct {
	Key             string    `json:"key"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultSchedule *Schedule `json:"default_schedule,omitempty"`
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(categoryWire{
		Key:             c.Key,
		Name:            c.Name,
		Description:     c.Description,
		DefaultSchedule: c.DefaultSchedule,
	})
}

// UnmarshalJSON accepts the default schedule as "default_schedule" or
// "defaults". Fields of the wrong type decode as absent.
func (c *Category) UnmarshalJSON(b []byte) error {
	*c = Category{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	c.Key = rawString(raw["key"])
	c.Name = rawString(raw["name"])
	c.Description = rawString(raw["description"])
	for _, field := range []string{"default_schedule", "defaults"} {
		rs, ok := raw[field]
		if !ok || string(rs) == "null" {
			continue
		}
		var s Schedule
		_ = s.UnmarshalJSON(rs)
		c.DefaultSchedule = &s
		break
	}
	return nil
}

// CategoryPreference is a user's choice for one category of one site.
type CategoryPreference struct {
	Enabled  *bool
	Schedule *Schedule
}

func (p CategoryPreference) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 2)
	if p.Enabled != nil {
		m["enabled"] = *p.Enabled
	}
	if p.Schedule != nil {
		m["schedule"] = *p.Schedule
	}
	return json.Marshal(m)
}

// UnmarshalJSON drops an "enabled" that is not a JSON boolean.
func (p *CategoryPreference) UnmarshalJSON(b []byte) error {
	*p = CategoryPreference{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	var t TriState
	_ = t.UnmarshalJSON(raw["enabled"])
	if v, ok := t.Bool(); ok {
		p.Enabled = &v
	}
	if rs, ok := raw["schedule"]; ok && string(rs) != "null" {
		var s Schedule
		_ = s.UnmarshalJSON(rs)
		p.Schedule = &s
	}
	return nil
}

// CategoryEntry pairs a category with the user's preference for it, if any.
type CategoryEntry struct {
	Category       Category            `json:"category"`
	UserPreference *CategoryPreference `json:"user_preference"`
}

// Source names the layer that produced an effective value.
type Source string

const (
	SourceGlobal   Source = "global"
	SourceSite     Source = "site"
	SourceCategory Source = "category"
)

type ChannelValue struct {
	Value  bool   `json:"value"`
	Source Source `json:"source"`
}

// Overridden reports whether the value came from a layer below global.
func (v ChannelValue) Overridden() bool { return v.Source != SourceGlobal }

type EffectiveCategory struct {
	Enabled  bool     `json:"enabled"`
	Schedule Schedule `json:"schedule"`
}

// EffectivePreference is the resolved view for one site.
type EffectivePreference struct {
	Channels   map[Channel]ChannelValue     `json:"channels"`
	Categories map[string]EffectiveCategory `json:"categories"`
}

// BoolPtr is a convenience for optional booleans.
func BoolPtr(b bool) *bool { return &b }
