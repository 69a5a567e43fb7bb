// Package resolver computes a user's effective notification preferences from
// the global, site and category layers. Every function is pure and total:
// malformed input degrades to defaults and nothing returns an error.
package resolver

import (
	"github.com/byNolo/nolofication/internal/domain"
)

// ResolveChannel returns the site's explicit value when it has one, otherwise
// the global value (absent means off).
func ResolveChannel(ch domain.Channel, global domain.ChannelFlags, site domain.ChannelSet) domain.ChannelValue {
	if v, ok := site.Get(ch).Bool(); ok {
		return domain.ChannelValue{Value: v, Source: domain.SourceSite}
	}
	return domain.ChannelValue{Value: global[ch], Source: domain.SourceGlobal}
}

// ResolveSchedule picks the first usable layer out of override, category
// default and site default, as a whole unit. Fields missing or invalid in the
// chosen unit come from the hard default, never from a lower layer.
func ResolveSchedule(categoryDefault, siteDefault, override *domain.Schedule) domain.Schedule {
	for _, s := range []*domain.Schedule{override, categoryDefault, siteDefault} {
		if s.Usable() {
			return complete(*s)
		}
	}
	return domain.DefaultSchedule()
}

func complete(s domain.Schedule) domain.Schedule {
	def := domain.DefaultSchedule()
	if t, err := domain.NormalizeTimeOfDay(s.TimeOfDay); err == nil {
		s.TimeOfDay = t
	} else {
		s.TimeOfDay = def.TimeOfDay
	}
	if !domain.ValidTimezone(s.Timezone) {
		s.Timezone = def.Timezone
	}
	if s.WeeklyDay < 0 || s.WeeklyDay > 6 {
		s.WeeklyDay = def.WeeklyDay
	}
	return s
}

// ResolveCategoryEnabled is true unless the user explicitly disabled the category.
func ResolveCategoryEnabled(pref *domain.CategoryPreference) bool {
	if pref == nil || pref.Enabled == nil {
		return true
	}
	return *pref.Enabled
}

// DiffOverride returns only the channels whose tri-state differs between
// original and edited. A channel reset to inherit is kept as Unset.
func DiffOverride(original, edited domain.ChannelSet) domain.ChannelSet {
	out := domain.ChannelSet{}
	for _, ch := range domain.AllChannels() {
		if before, after := original.Get(ch), edited.Get(ch); before != after {
			out[ch] = after
		}
	}
	return out
}

// CycleOverride advances a site toggle: inherit flips away from the global
// value, on goes back to inherit, off turns on.
func CycleOverride(current domain.TriState, global bool) domain.TriState {
	switch current {
	case domain.On:
		return domain.Unset
	case domain.Off:
		return domain.On
	}
	return domain.FromBool(!global)
}

// Resolve builds the effective view for one site. site may be nil.
func Resolve(global domain.ChannelFlags, site *domain.SitePreferences, categories []domain.CategoryEntry) domain.EffectivePreference {
	var (
		overrides   domain.ChannelSet
		siteDefault *domain.Schedule
	)
	if site != nil {
		overrides = site.Channels
		siteDefault = site.Schedule
	}

	out := domain.EffectivePreference{
		Channels:   make(map[domain.Channel]domain.ChannelValue, len(domain.AllChannels())),
		Categories: make(map[string]domain.EffectiveCategory, len(categories)),
	}
	for _, ch := range domain.AllChannels() {
		out.Channels[ch] = ResolveChannel(ch, global, overrides)
	}
	for _, e := range categories {
		var override *domain.Schedule
		if e.UserPreference != nil {
			override = e.UserPreference.Schedule
		}
		out.Categories[e.Category.Key] = domain.EffectiveCategory{
			Enabled:  ResolveCategoryEnabled(e.UserPreference),
			Schedule: ResolveSchedule(e.Category.DefaultSchedule, siteDefault, override),
		}
	}
	return out
}
