package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriState_FailSoftDecode(t *testing.T) {
	cases := map[string]TriState{
		`true`:     On,
		`false`:    Off,
		`null`:     Unset,
		`"true"`:   Unset,
		`1`:        Unset,
		`{"x":1}`:  Unset,
		`[true]`:   Unset,
		` false  `: Off,
	}
	for in, want := range cases {
		var got TriState
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, got, in)
	}
}

func TestSitePreferences_Decode(t *testing.T) {
	var p SitePreferences
	err := json.Unmarshal([]byte(`{
		"email": false,
		"web_push": null,
		"discord": "yes",
		"schedule": {"frequency": null, "time_of_day": null, "timezone": null, "weekly_day": null}
	}`), &p)
	require.NoError(t, err)

	assert.Equal(t, Off, p.Channels.Get(ChannelEmail))
	assert.Equal(t, Unset, p.Channels.Get(ChannelWebPush))
	assert.Equal(t, Unset, p.Channels.Get(ChannelDiscord))
	assert.Equal(t, Unset, p.Channels.Get(ChannelWebhook))
	require.NotNil(t, p.Schedule)
	assert.False(t, p.Schedule.Usable())
}

func TestSitePreferences_EncodeOnlyPresentChannels(t *testing.T) {
	s := DefaultSchedule()
	p := SitePreferences{
		Channels: ChannelSet{ChannelDiscord: On, ChannelEmail: Unset},
		Schedule: &s,
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"discord": true,
		"email": null,
		"schedule": {"frequency":"instant","time_of_day":"09:00","timezone":"UTC","weekly_day":1}
	}`, string(b))
}

func TestGlobalPreferences_RoundTrip(t *testing.T) {
	var g GlobalPreferences
	require.NoError(t, json.Unmarshal([]byte(`{"email": true, "web_push": "on", "discord_user_id": "42", "webhook_url": null}`), &g))
	assert.True(t, g.Channels[ChannelEmail])
	assert.False(t, g.Channels[ChannelWebPush])
	assert.False(t, g.Channels[ChannelWebhook])
	assert.Equal(t, "42", g.DiscordUserID)
	assert.Empty(t, g.WebhookURL)

	b, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":true,"web_push":false,"discord":false,"webhook":false,"discord_user_id":"42","webhook_url":null}`, string(b))
}

func TestCategory_AcceptsBackendDefaultsKey(t *testing.T) {
	var c Category
	require.NoError(t, json.Unmarshal([]byte(`{"key":"reminders","name":"Reminders","defaults":{"frequency":"daily","time_of_day":"18:00","weekly_day":null}}`), &c))
	require.NotNil(t, c.DefaultSchedule)
	assert.Equal(t, FrequencyDaily, c.DefaultSchedule.Frequency)
	assert.Equal(t, "18:00", c.DefaultSchedule.TimeOfDay)
	assert.Equal(t, WeekdayUnset, c.DefaultSchedule.WeeklyDay)
}

func TestCategory_WrongTypesDoNotFailTheList(t *testing.T) {
	var entries []CategoryEntry
	require.NoError(t, json.Unmarshal([]byte(`[
		{"category": {"key": 7, "name": ["x"], "default_schedule": "daily"}, "user_preference": null},
		{"category": {"key": "news", "name": "News"}, "user_preference": {"enabled": false}}
	]`), &entries))
	require.Len(t, entries, 2)

	assert.Equal(t, "", entries[0].Category.Key)
	assert.Equal(t, "", entries[0].Category.Name)
	require.NotNil(t, entries[0].Category.DefaultSchedule)
	assert.False(t, entries[0].Category.DefaultSchedule.Usable())

	assert.Equal(t, "news", entries[1].Category.Key)
	require.NotNil(t, entries[1].UserPreference)
	assert.False(t, *entries[1].UserPreference.Enabled)
}

func TestCategoryPreference_DropsNonBoolEnabled(t *testing.T) {
	var p CategoryPreference
	require.NoError(t, json.Unmarshal([]byte(`{"enabled":"false"}`), &p))
	assert.Nil(t, p.Enabled)
	assert.Nil(t, p.Schedule)

	require.NoError(t, json.Unmarshal([]byte(`{"enabled":false,"schedule":{"frequency":"weekly","weekly_day":3}}`), &p))
	require.NotNil(t, p.Enabled)
	assert.False(t, *p.Enabled)
	require.NotNil(t, p.Schedule)
	assert.Equal(t, 3, p.Schedule.WeeklyDay)
}

func TestUser_IsAdminByRole(t *testing.T) {
	assert.True(t, (&User{Role: "Admin"}).IsAdmin())
	assert.False(t, (&User{ID: 1, Username: "nolo"}).IsAdmin())
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
}
