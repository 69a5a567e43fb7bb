package preferences

import (
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/resolver"
)

// Draft holds unsaved edits to a site's override layer.
type Draft struct {
	SiteID string

	global   domain.ChannelFlags
	original domain.ChannelSet
	edited   domain.ChannelSet

	schedule      domain.Schedule
	scheduleDirty bool
}

func newDraft(view SiteView, defaultTZ string) *Draft {
	base := resolver.ResolveSchedule(nil, view.Overrides.Schedule, nil)
	if !view.Overrides.Schedule.Usable() || !domain.ValidTimezone(view.Overrides.Schedule.Timezone) {
		base.Timezone = defaultTZ
	}
	return &Draft{
		SiteID:   view.SiteID,
		global:   view.Global.Channels,
		original: view.Overrides.Channels.Clone(),
		edited:   view.Overrides.Channels.Clone(),
		schedule: base,
	}
}

// Cycle advances the override of ch and returns the new value.
func (d *Draft) Cycle(ch domain.Channel) domain.TriState {
	next := resolver.CycleOverride(d.edited.Get(ch), d.global[ch])
	d.edited[ch] = next
	return next
}

// Set forces the override of ch.
func (d *Draft) Set(ch domain.Channel, v domain.TriState) {
	d.edited[ch] = v
}

// Override returns the edited override of ch.
func (d *Draft) Override(ch domain.Channel) domain.TriState {
	return d.edited.Get(ch)
}

// Schedule is the edited site default schedule.
func (d *Draft) Schedule() domain.Schedule { return d.schedule }

// EditSchedule applies fn to the site default schedule. The result is
// completed so it is always a valid unit.
func (d *Draft) EditSchedule(fn func(*domain.Schedule)) {
	s := d.schedule
	fn(&s)
	d.schedule = resolver.ResolveSchedule(nil, nil, &s)
	d.scheduleDirty = true
}

// Dirty reports whether saving would send anything.
func (d *Draft) Dirty() bool {
	_, ok := d.Patch()
	return ok
}

// Patch is the minimal update: changed channels plus the whole schedule unit
// when the schedule was edited.
func (d *Draft) Patch() (domain.SitePreferences, bool) {
	p := domain.SitePreferences{Channels: resolver.DiffOverride(d.original, d.edited)}
	if d.scheduleDirty {
		s := d.schedule
		p.Schedule = &s
	}
	return p, len(p.Channels) > 0 || p.Schedule != nil
}

// Effective resolves the view as it would look after saving.
func (d *Draft) Effective(view SiteView) domain.EffectivePreference {
	site := domain.SitePreferences{Channels: d.edited, Schedule: view.Overrides.Schedule}
	if d.scheduleDirty {
		s := d.schedule
		site.Schedule = &s
	}
	return resolver.Resolve(d.global, &site, view.Categories)
}
