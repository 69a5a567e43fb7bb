package resolver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byNolo/nolofication/internal/domain"
)

func sched(f domain.Frequency, tod, tz string, day int) *domain.Schedule {
	return &domain.Schedule{Frequency: f, TimeOfDay: tod, Timezone: tz, WeeklyDay: day}
}

func TestResolveChannel_SiteExplicitWins(t *testing.T) {
	for _, ch := range domain.AllChannels() {
		for _, g := range []bool{true, false} {
			for _, s := range []bool{true, false} {
				got := ResolveChannel(ch, domain.ChannelFlags{ch: g}, domain.ChannelSet{ch: domain.FromBool(s)})
				assert.Equal(t, domain.ChannelValue{Value: s, Source: domain.SourceSite}, got, "%s global=%v site=%v", ch, g, s)
			}
		}
	}
}

func TestResolveChannel_FallsBackToGlobal(t *testing.T) {
	for _, ch := range domain.AllChannels() {
		for _, g := range []bool{true, false} {
			global := domain.ChannelFlags{ch: g}
			for _, site := range []domain.ChannelSet{nil, {}, {ch: domain.Unset}} {
				got := ResolveChannel(ch, global, site)
				assert.Equal(t, domain.ChannelValue{Value: g, Source: domain.SourceGlobal}, got)
			}
		}
	}

	got := ResolveChannel(domain.ChannelWebhook, nil, nil)
	assert.Equal(t, domain.ChannelValue{Value: false, Source: domain.SourceGlobal}, got)
}

func TestResolveChannel_MalformedSiteValueIsUnset(t *testing.T) {
	var site domain.SitePreferences
	require.NoError(t, json.Unmarshal([]byte(`{"email":"off","discord":0}`), &site))

	global := domain.ChannelFlags{domain.ChannelEmail: true, domain.ChannelDiscord: true}
	assert.Equal(t, domain.ChannelValue{Value: true, Source: domain.SourceGlobal}, ResolveChannel(domain.ChannelEmail, global, site.Channels))
	assert.Equal(t, domain.ChannelValue{Value: true, Source: domain.SourceGlobal}, ResolveChannel(domain.ChannelDiscord, global, site.Channels))
}

func TestResolveSchedule_AlwaysFullyPopulated(t *testing.T) {
	layers := []*domain.Schedule{
		nil,
		{WeeklyDay: domain.WeekdayUnset},
		sched("hourly", "10:00", "UTC", 2),
		sched(domain.FrequencyDaily, "", "", domain.WeekdayUnset),
		sched(domain.FrequencyWeekly, "25:00", "Not/AZone", 9),
		sched(domain.FrequencyInstant, "07:15", "Europe/Paris", 0),
	}
	for _, a := range layers {
		for _, b := range layers {
			for _, c := range layers {
				got := ResolveSchedule(a, b, c)
				assert.True(t, got.Frequency.Valid(), "%+v", got)
				assert.True(t, domain.ValidTimeOfDay(got.TimeOfDay), "%+v", got)
				assert.True(t, domain.ValidTimezone(got.Timezone), "%+v", got)
				assert.GreaterOrEqual(t, got.WeeklyDay, 0)
				assert.LessOrEqual(t, got.WeeklyDay, 6)
			}
		}
	}
}

func TestResolveSchedule_OverrideWinsAsUnit(t *testing.T) {
	override := &domain.Schedule{Frequency: domain.FrequencyWeekly, WeeklyDay: 3}
	categoryDefault := &domain.Schedule{Frequency: domain.FrequencyDaily, TimeOfDay: "18:00", WeeklyDay: domain.WeekdayUnset}

	got := ResolveSchedule(categoryDefault, nil, override)

	assert.Equal(t, domain.FrequencyWeekly, got.Frequency)
	assert.Equal(t, 3, got.WeeklyDay)
	assert.NotEqual(t, "18:00", got.TimeOfDay)
	assert.Equal(t, domain.DefaultTimeOfDay, got.TimeOfDay)
	assert.Equal(t, domain.DefaultTimezone, got.Timezone)
}

func TestResolveSchedule_FallbackOrder(t *testing.T) {
	override := sched(domain.FrequencyWeekly, "06:00", "Asia/Tokyo", 5)
	cat := sched(domain.FrequencyDaily, "18:00", "UTC", 1)
	site := sched(domain.FrequencyDaily, "12:00", "America/Toronto", 2)

	assert.Equal(t, *override, ResolveSchedule(cat, site, override))
	assert.Equal(t, *cat, ResolveSchedule(cat, site, nil))
	assert.Equal(t, *cat, ResolveSchedule(cat, site, sched("", "01:00", "UTC", 4)))
	assert.Equal(t, *site, ResolveSchedule(nil, site, nil))
	assert.Equal(t, domain.DefaultSchedule(), ResolveSchedule(nil, nil, nil))
}

func TestResolveSchedule_InstantKeepsDigestFields(t *testing.T) {
	override := sched(domain.FrequencyInstant, "21:30", "Europe/Berlin", 6)
	assert.Equal(t, *override, ResolveSchedule(nil, nil, override))
}

func TestResolveCategoryEnabled(t *testing.T) {
	assert.True(t, ResolveCategoryEnabled(nil))
	assert.True(t, ResolveCategoryEnabled(&domain.CategoryPreference{}))
	assert.False(t, ResolveCategoryEnabled(&domain.CategoryPreference{Enabled: domain.BoolPtr(false)}))
	assert.True(t, ResolveCategoryEnabled(&domain.CategoryPreference{Enabled: domain.BoolPtr(true)}))
}

func TestDiffOverride_OnlyChangedChannels(t *testing.T) {
	original := domain.ChannelSet{domain.ChannelEmail: domain.On, domain.ChannelDiscord: domain.Off}
	edited := domain.ChannelSet{domain.ChannelEmail: domain.On, domain.ChannelDiscord: domain.On}

	assert.Equal(t, domain.ChannelSet{domain.ChannelDiscord: domain.On}, DiffOverride(original, edited))
}

func TestDiffOverride_ResetToInheritIsKept(t *testing.T) {
	original := domain.ChannelSet{domain.ChannelWebhook: domain.Off}
	edited := domain.ChannelSet{}

	diff := DiffOverride(original, edited)
	require.Contains(t, diff, domain.ChannelWebhook)
	assert.Equal(t, domain.Unset, diff[domain.ChannelWebhook])
	assert.Len(t, diff, 1)

	b, err := json.Marshal(domain.SitePreferences{Channels: diff})
	require.NoError(t, err)
	assert.JSONEq(t, `{"webhook": null}`, string(b))

	assert.Empty(t, DiffOverride(edited, edited))
}

func TestCycleOverride(t *testing.T) {
	assert.Equal(t, domain.Off, CycleOverride(domain.Unset, true))
	assert.Equal(t, domain.On, CycleOverride(domain.Unset, false))
	assert.Equal(t, domain.Unset, CycleOverride(domain.On, true))
	assert.Equal(t, domain.On, CycleOverride(domain.Off, false))
}

func fixture() (domain.ChannelFlags, *domain.SitePreferences, []domain.CategoryEntry) {
	global := domain.ChannelFlags{domain.ChannelEmail: true}
	site := &domain.SitePreferences{
		Channels: domain.ChannelSet{domain.ChannelDiscord: domain.On, domain.ChannelEmail: domain.Unset},
		Schedule: sched(domain.FrequencyDaily, "12:00", "UTC", domain.WeekdayUnset),
	}
	cats := []domain.CategoryEntry{
		{Category: domain.Category{Key: "updates"}},
		{Category: domain.Category{Key: "alerts", DefaultSchedule: sched(domain.FrequencyInstant, "", "", domain.WeekdayUnset)}},
		{
			Category:       domain.Category{Key: "digest"},
			UserPreference: &domain.CategoryPreference{Enabled: domain.BoolPtr(false), Schedule: sched(domain.FrequencyWeekly, "08:00", "Europe/London", 4)},
		},
	}
	return global, site, cats
}

func TestResolve_Idempotent(t *testing.T) {
	global, site, cats := fixture()

	first, err := json.Marshal(Resolve(global, site, cats))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(Resolve(global, site, cats))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolve_LayersAndSiteDefault(t *testing.T) {
	global, site, cats := fixture()
	eff := Resolve(global, site, cats)

	assert.Equal(t, domain.ChannelValue{Value: true, Source: domain.SourceGlobal}, eff.Channels[domain.ChannelEmail])
	assert.Equal(t, domain.ChannelValue{Value: true, Source: domain.SourceSite}, eff.Channels[domain.ChannelDiscord])
	assert.Equal(t, domain.ChannelValue{Value: false, Source: domain.SourceGlobal}, eff.Channels[domain.ChannelWebPush])
	assert.Len(t, eff.Channels, 4)

	assert.Equal(t, domain.EffectiveCategory{Enabled: true, Schedule: domain.Schedule{
		Frequency: domain.FrequencyDaily, TimeOfDay: "12:00", Timezone: "UTC", WeeklyDay: 1,
	}}, eff.Categories["updates"])
	assert.Equal(t, domain.FrequencyInstant, eff.Categories["alerts"].Schedule.Frequency)
	assert.Equal(t, domain.EffectiveCategory{Enabled: false, Schedule: *sched(domain.FrequencyWeekly, "08:00", "Europe/London", 4)}, eff.Categories["digest"])
}

func TestResolve_EndToEndFromDocuments(t *testing.T) {
	var global domain.GlobalPreferences
	require.NoError(t, json.Unmarshal([]byte(`{"email":true,"web_push":false,"discord":false,"webhook":false}`), &global))

	var cats []domain.CategoryEntry
	require.NoError(t, json.Unmarshal([]byte(`[{
		"category": {"key":"reminders","name":"Reminders","description":"",
			"default_schedule":{"frequency":"daily","time_of_day":"09:00","timezone":"UTC","weekly_day":1}},
		"user_preference": null
	}]`), &cats))

	eff := Resolve(global.Channels, nil, cats)

	assert.Equal(t, domain.ChannelValue{Value: true, Source: domain.SourceGlobal}, eff.Channels[domain.ChannelEmail])
	for _, ch := range []domain.Channel{domain.ChannelWebPush, domain.ChannelDiscord, domain.ChannelWebhook} {
		assert.Equal(t, domain.ChannelValue{Value: false, Source: domain.SourceGlobal}, eff.Channels[ch])
	}
	require.Contains(t, eff.Categories, "reminders")
	assert.True(t, eff.Categories["reminders"].Enabled)
	assert.Equal(t, *cats[0].Category.DefaultSchedule, eff.Categories["reminders"].Schedule)

	b, err := json.Marshal(eff)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"channels": {
			"discord": {"value": false, "source": "global"},
			"email": {"value": true, "source": "global"},
			"web_push": {"value": false, "source": "global"},
			"webhook": {"value": false, "source": "global"}
		},
		"categories": {
			"reminders": {"enabled": true, "schedule": {"frequency":"daily","time_of_day":"09:00","timezone":"UTC","weekly_day":1}}
		}
	}`, string(b))
}
