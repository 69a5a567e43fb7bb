// Package preferences loads, edits and saves a user's preference pages.
// Every save waits for the backend to acknowledge the write before the page
// is fetched again and re-resolved.
package preferences

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/resolver"
)

// ErrNoChanges is returned by SaveSite when the draft equals what was loaded.
var ErrNoChanges = errors.New("nothing to save")

// Backend is the subset of the API client used here.
type Backend interface {
	GlobalPreferences(ctx context.Context, ts api.TokenSource) (domain.GlobalPreferences, error)
	UpdateGlobalPreferences(ctx context.Context, ts api.TokenSource, prefs domain.GlobalPreferences) (domain.GlobalPreferences, error)
	SitePreferences(ctx context.Context, ts api.TokenSource, siteID string) (api.SitePreferencesResponse, error)
	UpdateSitePreferences(ctx context.Context, ts api.TokenSource, siteID string, patch domain.SitePreferences) (domain.SitePreferences, error)
	DeleteSitePreferences(ctx context.Context, ts api.TokenSource, siteID string) error
	Categories(ctx context.Context, ts api.TokenSource, siteID string) ([]domain.CategoryEntry, error)
	UpdateCategoryPreference(ctx context.Context, ts api.TokenSource, siteID, key string, pref domain.CategoryPreference) (domain.CategoryPreference, error)
}

// SiteView is everything the site page shows.
type SiteView struct {
	SiteID     string
	Info       api.SiteInfo
	Global     domain.GlobalPreferences
	Overrides  domain.SitePreferences
	Categories []domain.CategoryEntry
	Effective  domain.EffectivePreference
}

// Category returns the entry for key.
func (v SiteView) Category(key string) (domain.CategoryEntry, bool) {
	for _, e := range v.Categories {
		if e.Category.Key == key {
			return e, true
		}
	}
	return domain.CategoryEntry{}, false
}

type Service struct {
	backend   Backend
	log       *zap.Logger
	defaultTZ string
}

// NewService creates the service. defaultTZ seeds schedules that had no timezone.
func NewService(backend Backend, log *zap.Logger, defaultTZ string) *Service {
	if defaultTZ == "" {
		defaultTZ = domain.DefaultTimezone
	}
	return &Service{backend: backend, log: log, defaultTZ: defaultTZ}
}

// LoadGlobal fetches the user's defaults.
func (s *Service) LoadGlobal(ctx context.Context, ts api.TokenSource) (domain.GlobalPreferences, error) {
	return s.backend.GlobalPreferences(ctx, ts)
}

// SaveGlobal writes the defaults, then reads them back.
func (s *Service) SaveGlobal(ctx context.Context, ts api.TokenSource, prefs domain.GlobalPreferences) (domain.GlobalPreferences, error) {
	if _, err := s.backend.UpdateGlobalPreferences(ctx, ts, prefs); err != nil {
		return domain.GlobalPreferences{}, err
	}
	return s.backend.GlobalPreferences(ctx, ts)
}

// LoadSite fetches the site's preference document and its category list
// concurrently and resolves the effective view.
func (s *Service) LoadSite(ctx context.Context, ts api.TokenSource, siteID string) (SiteView, error) {
	var (
		doc  api.SitePreferencesResponse
		cats []domain.CategoryEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = s.backend.SitePreferences(gctx, ts, siteID)
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = s.backend.Categories(gctx, ts, siteID)
		return err
	})
	if err := g.Wait(); err != nil {
		return SiteView{}, err
	}

	return SiteView{
		SiteID:     siteID,
		Info:       doc.Info,
		Global:     doc.Global,
		Overrides:  doc.Overrides,
		Categories: cats,
		Effective:  resolver.Resolve(doc.Global.Channels, &doc.Overrides, cats),
	}, nil
}

// SaveSite sends the draft's minimal patch and reloads the page once the
// write is acknowledged.
func (s *Service) SaveSite(ctx context.Context, ts api.TokenSource, d *Draft) (SiteView, error) {
	patch, ok := d.Patch()
	if !ok {
		return SiteView{}, ErrNoChanges
	}
	if _, err := s.backend.UpdateSitePreferences(ctx, ts, d.SiteID, patch); err != nil {
		return SiteView{}, err
	}
	s.log.Debug("site preferences saved",
		zap.String("site", d.SiteID),
		zap.Int("channels", len(patch.Channels)),
		zap.Bool("schedule", patch.Schedule != nil),
	)
	return s.LoadSite(ctx, ts, d.SiteID)
}

// ResetSite removes every override for the site and reloads.
func (s *Service) ResetSite(ctx context.Context, ts api.TokenSource, siteID string) (SiteView, error) {
	if err := s.backend.DeleteSitePreferences(ctx, ts, siteID); err != nil {
		return SiteView{}, err
	}
	return s.LoadSite(ctx, ts, siteID)
}

// SaveCategory upserts one category preference and reloads.
func (s *Service) SaveCategory(ctx context.Context, ts api.TokenSource, siteID, key string, pref domain.CategoryPreference) (SiteView, error) {
	if _, err := s.backend.UpdateCategoryPreference(ctx, ts, siteID, key, pref); err != nil {
		return SiteView{}, err
	}
	return s.LoadSite(ctx, ts, siteID)
}

// SetCategoryEnabled toggles a category without touching its schedule.
func (s *Service) SetCategoryEnabled(ctx context.Context, ts api.TokenSource, siteID, key string, enabled bool) (SiteView, error) {
	return s.SaveCategory(ctx, ts, siteID, key, domain.CategoryPreference{Enabled: domain.BoolPtr(enabled)})
}

// SetCategorySchedule stores a full schedule override built from the
// category's current effective schedule with edit applied. A nil edit
// clears the override so the category follows its default again.
func (s *Service) SetCategorySchedule(ctx context.Context, ts api.TokenSource, view SiteView, key string, edit func(*domain.Schedule)) (SiteView, error) {
	sched := domain.EmptySchedule()
	if edit != nil {
		sched = view.Effective.Categories[key].Schedule
		if w := winningLayer(view, key); w == nil || !domain.ValidTimezone(w.Timezone) {
			sched.Timezone = s.defaultTZ
		}
		edit(&sched)
		sched = resolver.ResolveSchedule(nil, nil, &sched)
	}
	return s.SaveCategory(ctx, ts, view.SiteID, key, domain.CategoryPreference{Schedule: &sched})
}

// winningLayer returns the schedule layer the resolver picked for key, or nil
// when the hard default applied.
func winningLayer(view SiteView, key string) *domain.Schedule {
	e, ok := view.Category(key)
	if !ok {
		return nil
	}
	var override *domain.Schedule
	if e.UserPreference != nil {
		override = e.UserPreference.Schedule
	}
	for _, sc := range []*domain.Schedule{override, e.Category.DefaultSchedule, view.Overrides.Schedule} {
		if sc.Usable() {
			return sc
		}
	}
	return nil
}

// NewDraft starts editing the site layer of view.
func (s *Service) NewDraft(view SiteView) *Draft {
	return newDraft(view, s.defaultTZ)
}
