package preferences

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/domain"
)

// fakeBackend keeps one user's documents in memory and applies writes the
// way the backend does.
type fakeBackend struct {
	mu         sync.Mutex
	global     domain.GlobalPreferences
	site       domain.SitePreferences
	cats       []domain.CategoryEntry
	calls      []string
	sitePuts   []domain.SitePreferences
	catPuts    []domain.CategoryPreference
	failWrites bool
}

func newFake() *fakeBackend {
	return &fakeBackend{
		global: domain.GlobalPreferences{Channels: domain.ChannelFlags{domain.ChannelEmail: true}},
		site:   domain.SitePreferences{Channels: domain.ChannelSet{domain.ChannelDiscord: domain.Off}},
		cats: []domain.CategoryEntry{
			{Category: domain.Category{Key: "reminders", DefaultSchedule: &domain.Schedule{Frequency: domain.FrequencyDaily, TimeOfDay: "18:00", WeeklyDay: domain.WeekdayUnset}}},
		},
	}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) GlobalPreferences(context.Context, api.TokenSource) (domain.GlobalPreferences, error) {
	f.record("global.get")
	return f.global, nil
}

func (f *fakeBackend) UpdateGlobalPreferences(_ context.Context, _ api.TokenSource, p domain.GlobalPreferences) (domain.GlobalPreferences, error) {
	f.record("global.put")
	f.global = p
	return p, nil
}

func (f *fakeBackend) SitePreferences(_ context.Context, _ api.TokenSource, id string) (api.SitePreferencesResponse, error) {
	f.record("site.get")
	if id == "missing" {
		return api.SitePreferencesResponse{}, &api.Error{Message: "Site not found", Status: http.StatusNotFound}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return api.SitePreferencesResponse{
		Info:      api.SiteInfo{ID: id, Name: "Site " + id},
		Global:    f.global,
		Overrides: domain.SitePreferences{Channels: f.site.Channels.Clone(), Schedule: f.site.Schedule},
	}, nil
}

func (f *fakeBackend) UpdateSitePreferences(_ context.Context, _ api.TokenSource, _ string, patch domain.SitePreferences) (domain.SitePreferences, error) {
	f.record("site.put")
	if f.failWrites {
		return domain.SitePreferences{}, &api.Error{Message: "boom", Status: http.StatusInternalServerError}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sitePuts = append(f.sitePuts, patch)
	for c, v := range patch.Channels {
		f.site.Channels[c] = v
	}
	if patch.Schedule != nil {
		s := *patch.Schedule
		f.site.Schedule = &s
	}
	return f.site, nil
}

func (f *fakeBackend) DeleteSitePreferences(context.Context, api.TokenSource, string) error {
	f.record("site.delete")
	f.site = domain.SitePreferences{Channels: domain.ChannelSet{}}
	return nil
}

func (f *fakeBackend) Categories(_ context.Context, _ api.TokenSource, id string) ([]domain.CategoryEntry, error) {
	f.record("categories.get")
	if id == "missing" {
		return nil, &api.Error{Message: "Site not found", Status: http.StatusNotFound}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CategoryEntry(nil), f.cats...), nil
}

func (f *fakeBackend) UpdateCategoryPreference(_ context.Context, _ api.TokenSource, _, key string, pref domain.CategoryPreference) (domain.CategoryPreference, error) {
	f.record("category.put")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catPuts = append(f.catPuts, pref)
	for i := range f.cats {
		if f.cats[i].Category.Key != key {
			continue
		}
		cur := domain.CategoryPreference{}
		if f.cats[i].UserPreference != nil {
			cur = *f.cats[i].UserPreference
		}
		if pref.Enabled != nil {
			cur.Enabled = pref.Enabled
		}
		if pref.Schedule != nil {
			cur.Schedule = pref.Schedule
		}
		f.cats[i].UserPreference = &cur
	}
	return pref, nil
}

var tok = api.StaticToken("t")

func TestLoadSite_ResolvesBothDocuments(t *testing.T) {
	svc := NewService(newFake(), zap.NewNop(), "Europe/Berlin")

	view, err := svc.LoadSite(context.Background(), tok, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Site s1", view.Info.Name)
	assert.Equal(t, domain.ChannelValue{Value: true, Source: domain.SourceGlobal}, view.Effective.Channels[domain.ChannelEmail])
	assert.Equal(t, domain.ChannelValue{Value: false, Source: domain.SourceSite}, view.Effective.Channels[domain.ChannelDiscord])
	assert.Equal(t, "18:00", view.Effective.Categories["reminders"].Schedule.TimeOfDay)
}

func TestLoadSite_PropagatesTypedError(t *testing.T) {
	svc := NewService(newFake(), zap.NewNop(), "")
	_, err := svc.LoadSite(context.Background(), tok, "missing")
	assert.True(t, api.IsNotFound(err))
}

func TestSaveSite_SendsDiffThenReloads(t *testing.T) {
	fake := newFake()
	svc := NewService(fake, zap.NewNop(), "UTC")
	ctx := context.Background()

	view, err := svc.LoadSite(ctx, tok, "s1")
	require.NoError(t, err)

	d := svc.NewDraft(view)
	assert.False(t, d.Dirty())
	_, err = svc.SaveSite(ctx, tok, d)
	assert.ErrorIs(t, err, ErrNoChanges)

	assert.Equal(t, domain.On, d.Cycle(domain.ChannelDiscord))
	assert.Equal(t, domain.Off, d.Cycle(domain.ChannelEmail))
	assert.Equal(t, domain.On, d.Cycle(domain.ChannelEmail))
	assert.Equal(t, domain.Unset, d.Cycle(domain.ChannelEmail))

	preview := d.Effective(view)
	assert.Equal(t, domain.ChannelValue{Value: true, Source: domain.SourceSite}, preview.Channels[domain.ChannelDiscord])

	fake.calls = nil
	saved, err := svc.SaveSite(ctx, tok, d)
	require.NoError(t, err)

	require.Len(t, fake.sitePuts, 1)
	assert.Equal(t, domain.ChannelSet{domain.ChannelDiscord: domain.On}, fake.sitePuts[0].Channels)
	assert.Nil(t, fake.sitePuts[0].Schedule)
	assert.Equal(t, "site.put", fake.calls[0])
	assert.ElementsMatch(t, []string{"site.get", "categories.get"}, fake.calls[1:])
	assert.Equal(t, domain.ChannelValue{Value: true, Source: domain.SourceSite}, saved.Effective.Channels[domain.ChannelDiscord])
}

func TestSaveSite_ScheduleGoesAsWholeUnit(t *testing.T) {
	fake := newFake()
	svc := NewService(fake, zap.NewNop(), "America/Toronto")
	ctx := context.Background()

	view, err := svc.LoadSite(ctx, tok, "s1")
	require.NoError(t, err)
	d := svc.NewDraft(view)
	d.EditSchedule(func(s *domain.Schedule) {
		s.Frequency = domain.FrequencyWeekly
		s.WeeklyDay = 3
	})

	_, err = svc.SaveSite(ctx, tok, d)
	require.NoError(t, err)
	require.Len(t, fake.sitePuts, 1)
	assert.Empty(t, fake.sitePuts[0].Channels)
	assert.Equal(t, &domain.Schedule{
		Frequency: domain.FrequencyWeekly, TimeOfDay: "09:00", Timezone: "America/Toronto", WeeklyDay: 3,
	}, fake.sitePuts[0].Schedule)
}

func TestSaveSite_FailedWriteDoesNotReload(t *testing.T) {
	fake := newFake()
	fake.failWrites = true
	svc := NewService(fake, zap.NewNop(), "UTC")
	ctx := context.Background()

	view, err := svc.LoadSite(ctx, tok, "s1")
	require.NoError(t, err)
	d := svc.NewDraft(view)
	d.Cycle(domain.ChannelWebhook)

	fake.calls = nil
	_, err = svc.SaveSite(ctx, tok, d)
	assert.Equal(t, http.StatusInternalServerError, api.StatusOf(err))
	assert.Equal(t, []string{"site.put"}, fake.calls)
	assert.True(t, d.Dirty())
}

func TestResetSite(t *testing.T) {
	fake := newFake()
	svc := NewService(fake, zap.NewNop(), "UTC")

	view, err := svc.ResetSite(context.Background(), tok, "s1")
	require.NoError(t, err)
	for _, ch := range domain.AllChannels() {
		assert.Equal(t, domain.SourceGlobal, view.Effective.Channels[ch].Source)
	}
}

func TestCategoryEdits(t *testing.T) {
	fake := newFake()
	svc := NewService(fake, zap.NewNop(), "Europe/Berlin")
	ctx := context.Background()

	view, err := svc.SetCategoryEnabled(ctx, tok, "s1", "reminders", false)
	require.NoError(t, err)
	assert.False(t, view.Effective.Categories["reminders"].Enabled)

	view, err = svc.SetCategorySchedule(ctx, tok, view, "reminders", func(s *domain.Schedule) {
		s.Frequency = domain.FrequencyWeekly
		s.WeeklyDay = 5
	})
	require.NoError(t, err)
	got := view.Effective.Categories["reminders"].Schedule
	assert.Equal(t, domain.Schedule{Frequency: domain.FrequencyWeekly, TimeOfDay: "18:00", Timezone: "Europe/Berlin", WeeklyDay: 5}, got)
	assert.False(t, view.Effective.Categories["reminders"].Enabled)

	view, err = svc.SetCategorySchedule(ctx, tok, view, "reminders", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptySchedule(), *fake.catPuts[len(fake.catPuts)-1].Schedule)
	assert.Equal(t, domain.FrequencyDaily, view.Effective.Categories["reminders"].Schedule.Frequency)
}

func TestSaveGlobal_ReadsBack(t *testing.T) {
	fake := newFake()
	svc := NewService(fake, zap.NewNop(), "UTC")

	g := domain.GlobalPreferences{Channels: domain.ChannelFlags{domain.ChannelWebhook: true}, WebhookURL: "https://example.com"}
	got, err := svc.SaveGlobal(context.Background(), tok, g)
	require.NoError(t, err)
	assert.Equal(t, g, got)
	assert.Equal(t, []string{"global.put", "global.get"}, fake.calls)
}
