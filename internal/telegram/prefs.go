package telegram

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/async"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/preferences"
)

type siteOp = func(ctx context.Context) (preferences.SiteView, error)

// screen is the per-chat page state. Fields other than the maps holding
// screens are only touched from the update loop.
type screen struct {
	global     *async.Resource[domain.GlobalPreferences]
	saveGlobal *async.Mutation[domain.GlobalPreferences, domain.GlobalPreferences]

	siteID    string
	site      *async.Resource[preferences.SiteView]
	siteWrite *async.Mutation[siteOp, preferences.SiteView]
	draft     *preferences.Draft

	notifSite   string
	notifOffset int
}

func (r *Router) screenFor(chatID int64) *screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.screens[chatID]
	if !ok {
		sc = &screen{}
		r.screens[chatID] = sc
	}
	return sc
}

// currentSite returns the open site page of a chat, or nil.
func (r *Router) currentSite(chatID int64) *screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc := r.screens[chatID]
	if sc == nil || sc.site == nil || sc.draft == nil {
		return nil
	}
	return sc
}

// --- Global preferences ---

func (r *Router) globalScreen(chatID int64, ts api.TokenSource) *screen {
	sc := r.screenFor(chatID)
	if sc.global == nil {
		sc.global = async.NewResource(func(ctx context.Context) (domain.GlobalPreferences, error) {
			return r.prefs.LoadGlobal(ctx, ts)
		})
		sc.saveGlobal = async.NewMutation(func(ctx context.Context, g domain.GlobalPreferences) (domain.GlobalPreferences, error) {
			return r.prefs.SaveGlobal(ctx, ts, g)
		})
	}
	return sc
}

func (r *Router) handlePrefs(ctx context.Context, chatID int64, msgID int) {
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		return
	}
	sc := r.globalScreen(chatID, s)
	st := sc.global.Load(ctx)
	if st.Err != nil && api.IsUnauthorized(st.Err) {
		r.report(ctx, chatID, "Could not load preferences", st.Err)
		return
	}
	text, kb := renderGlobal(st)
	r.show(chatID, msgID, text, kb)
}

func cloneGlobal(g domain.GlobalPreferences) domain.GlobalPreferences {
	out := g
	out.Channels = make(domain.ChannelFlags, len(g.Channels))
	for c, v := range g.Channels {
		out.Channels[c] = v
	}
	return out
}

// updateGlobal applies fn to the loaded defaults, saves them and redraws the page.
func (r *Router) updateGlobal(ctx context.Context, chatID int64, msgID int, fn func(*domain.GlobalPreferences)) bool {
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		return false
	}
	sc := r.globalScreen(chatID, s)
	st := sc.global.Snapshot()
	if !st.HasData {
		if st = sc.global.Load(ctx); !st.HasData {
			r.report(ctx, chatID, "Could not load preferences", st.Err)
			return false
		}
	}
	g := cloneGlobal(st.Data)
	fn(&g)
	saved, err := sc.saveGlobal.Run(ctx, g)
	if err != nil {
		r.report(ctx, chatID, "Could not save preferences", err)
		return false
	}
	sc.global.Set(saved)
	text, kb := renderGlobal(sc.global.Snapshot())
	r.show(chatID, msgID, text, kb)
	return true
}

func (r *Router) handleGlobalCallback(ctx context.Context, chatID int64, msgID int, cbID string, args []string) {
	switch argAt(args, 0) {
	case "t":
		ch, err := domain.ParseChannel(argAt(args, 1))
		if err != nil {
			_ = r.answerCallback(cbID, "")
			return
		}
		_ = r.answerCallback(cbID, "")
		r.updateGlobal(ctx, chatID, msgID, func(g *domain.GlobalPreferences) {
			g.Channels[ch] = !g.Channels[ch]
		})

	case "x":
		s, ok := r.requireSession(ctx, chatID)
		if !ok {
			_ = r.answerCallback(cbID, "")
			return
		}
		res, err := r.api.SendTest(ctx, s, argAt(args, 1))
		if err != nil {
			_ = r.answerCallback(cbID, "")
			r.report(ctx, chatID, "Test failed", err)
			return
		}
		if res == "" {
			res = "Test notification sent"
		}
		_ = r.answerCallback(cbID, trim(res, 190))

	case "w":
		_ = r.answerCallback(cbID, "")
		r.setPending(chatID, pendingWebhookURL, 0)
		r.sendText(chatID, "Send the webhook URL (http or https), or - to remove it.")

	case "d":
		_ = r.answerCallback(cbID, "")
		r.setPending(chatID, pendingDiscordID, 0)
		r.sendText(chatID, "Send your numeric Discord user ID, or - to remove it.")

	case "hook":
		s, ok := r.requireSession(ctx, chatID)
		if !ok {
			_ = r.answerCallback(cbID, "")
			return
		}
		_ = r.answerCallback(cbID, "")
		url := r.hookURL(s.HookID)
		r.updateGlobal(ctx, chatID, 0, func(g *domain.GlobalPreferences) {
			g.WebhookURL = url
			g.Channels[domain.ChannelWebhook] = true
		})

	case "r":
		_ = r.answerCallback(cbID, "")
		r.handlePrefs(ctx, chatID, msgID)

	default:
		_ = r.answerCallback(cbID, "")
	}
}

// --- Sites ---

func (r *Router) handleSites(ctx context.Context, chatID int64) {
	sites, err := r.api.PublicSites(ctx)
	if err != nil {
		r.report(ctx, chatID, "Could not load sites", err)
		return
	}
	text, kb := renderSites(sites)
	r.sendHTML(chatID, text, kb)
}

// openSite points the chat's site page at siteID, keeping the page when it
// already shows that site.
func (r *Router) openSite(chatID int64, ts api.TokenSource, siteID string) *screen {
	sc := r.screenFor(chatID)
	if sc.site != nil && sc.siteID == siteID {
		return sc
	}
	sc.siteID = siteID
	sc.draft = nil
	sc.site = async.NewResource(func(ctx context.Context) (preferences.SiteView, error) {
		return r.prefs.LoadSite(ctx, ts, siteID)
	})
	sc.siteWrite = async.NewMutation(func(ctx context.Context, op siteOp) (preferences.SiteView, error) {
		return op(ctx)
	})
	return sc
}

func (r *Router) handleSite(ctx context.Context, chatID int64, msgID int, siteID string) {
	if siteID == "" {
		r.sendText(chatID, "Usage: /site <site_id>. See /sites for the list.")
		return
	}
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		return
	}
	sc := r.openSite(chatID, s, siteID)
	r.reloadSite(ctx, chatID, msgID, sc)
}

func (r *Router) reloadSite(ctx context.Context, chatID int64, msgID int, sc *screen) {
	st := sc.site.Load(ctx)
	if st.Err != nil && api.IsUnauthorized(st.Err) {
		r.report(ctx, chatID, "Could not load site", st.Err)
		return
	}
	if st.HasData && (sc.draft == nil || !sc.draft.Dirty()) {
		sc.draft = r.prefs.NewDraft(st.Data)
	}
	r.showSite(chatID, msgID, sc)
}

func (r *Router) showSite(chatID int64, msgID int, sc *screen) {
	text, kb := renderSite(sc.site.Snapshot(), sc.draft, time.Now().UTC())
	r.show(chatID, msgID, text, kb)
}

// writeSite runs op as the page's only write in flight and publishes the
// reloaded view it returns.
func (r *Router) writeSite(ctx context.Context, chatID int64, cbID string, sc *screen, op siteOp) (preferences.SiteView, bool) {
	view, err := sc.siteWrite.Run(ctx, op)
	if err != nil {
		if errors.Is(err, preferences.ErrNoChanges) {
			_ = r.answerCallback(cbID, "Nothing to save")
			return view, false
		}
		_ = r.answerCallback(cbID, "")
		r.report(ctx, chatID, "Could not save", err)
		return view, false
	}
	sc.site.Set(view)
	if sc.draft == nil || !sc.draft.Dirty() {
		sc.draft = r.prefs.NewDraft(view)
	}
	return view, true
}

func (r *Router) handleSiteCallback(ctx context.Context, chatID int64, msgID int, cbID string, args []string) {
	sc := r.currentSite(chatID)
	if sc == nil {
		if argAt(args, 0) == "r" {
			_ = r.answerCallback(cbID, "")
			if s := r.screenFor(chatID); s.site != nil {
				r.reloadSite(ctx, chatID, msgID, s)
			}
			return
		}
		_ = r.answerCallback(cbID, screenGoneText)
		return
	}
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		_ = r.answerCallback(cbID, "")
		return
	}

	switch argAt(args, 0) {
	case "c":
		ch, err := domain.ParseChannel(argAt(args, 1))
		if err != nil {
			_ = r.answerCallback(cbID, "")
			return
		}
		v := sc.draft.Cycle(ch)
		_ = r.answerCallback(cbID, ch.Label()+": "+overrideLabel(v))
		r.showSite(chatID, msgID, sc)

	case "sch":
		_ = r.answerCallback(cbID, "")
		r.showSiteSchedule(chatID, msgID, sc)

	case "f":
		f, err := domain.ParseFrequency(argAt(args, 1))
		if err != nil {
			_ = r.answerCallback(cbID, "")
			return
		}
		sc.draft.EditSchedule(func(s *domain.Schedule) { s.Frequency = f })
		_ = r.answerCallback(cbID, "")
		r.showSiteSchedule(chatID, msgID, sc)

	case "d":
		day, err := domain.ParseWeekday(argAt(args, 1))
		if err != nil {
			_ = r.answerCallback(cbID, "")
			return
		}
		sc.draft.EditSchedule(func(s *domain.Schedule) { s.WeeklyDay = day })
		_ = r.answerCallback(cbID, "")
		r.showSiteSchedule(chatID, msgID, sc)

	case "time":
		_ = r.answerCallback(cbID, "")
		r.setPending(chatID, pendingSiteTime, 0)
		r.sendText(chatID, "Send the digest time as HH:MM (24h), e.g. 18:30.")

	case "tz":
		_ = r.answerCallback(cbID, "")
		r.setPending(chatID, pendingSiteTZ, 0)
		r.sendText(chatID, "Send the timezone as Region/City, e.g. America/Toronto.")

	case "back":
		_ = r.answerCallback(cbID, "")
		r.showSite(chatID, msgID, sc)

	case "save":
		d := sc.draft
		view, ok := r.writeSite(ctx, chatID, cbID, sc, func(ctx context.Context) (preferences.SiteView, error) {
			return r.prefs.SaveSite(ctx, s, d)
		})
		if !ok {
			return
		}
		sc.draft = r.prefs.NewDraft(view)
		_ = r.answerCallback(cbID, "Saved")
		r.showSite(chatID, msgID, sc)

	case "undo":
		if st := sc.site.Snapshot(); st.HasData {
			sc.draft = r.prefs.NewDraft(st.Data)
		}
		_ = r.answerCallback(cbID, "Changes discarded")
		r.showSite(chatID, msgID, sc)

	case "reset":
		siteID := sc.siteID
		view, ok := r.writeSite(ctx, chatID, cbID, sc, func(ctx context.Context) (preferences.SiteView, error) {
			return r.prefs.ResetSite(ctx, s, siteID)
		})
		if !ok {
			return
		}
		sc.draft = r.prefs.NewDraft(view)
		_ = r.answerCallback(cbID, "Site follows your global preferences again")
		r.showSite(chatID, msgID, sc)

	case "r":
		_ = r.answerCallback(cbID, "")
		r.reloadSite(ctx, chatID, msgID, sc)

	default:
		_ = r.answerCallback(cbID, "")
	}
}

func (r *Router) showSiteSchedule(chatID int64, msgID int, sc *screen) {
	text, kb := renderSiteSchedule(sc.site.Snapshot().Data, sc.draft, time.Now().UTC())
	r.show(chatID, msgID, text, kb)
}

// --- Categories ---

func (r *Router) handleCategoryCallback(ctx context.Context, chatID int64, msgID int, cbID string, args []string) {
	sc := r.currentSite(chatID)
	if sc == nil {
		_ = r.answerCallback(cbID, screenGoneText)
		return
	}
	view := sc.site.Snapshot().Data
	idx, err := strconv.Atoi(argAt(args, 0))
	if err != nil || idx < 0 || idx >= len(view.Categories) {
		_ = r.answerCallback(cbID, screenGoneText)
		return
	}
	key := view.Categories[idx].Category.Key

	var edit func(*domain.Schedule)
	switch argAt(args, 1) {
	case "":
		_ = r.answerCallback(cbID, "")
		r.showCategory(chatID, msgID, sc, key)
		return

	case "en":
		s, ok := r.requireSession(ctx, chatID)
		if !ok {
			_ = r.answerCallback(cbID, "")
			return
		}
		enabled := argAt(args, 2) == "1"
		if _, ok := r.writeSite(ctx, chatID, cbID, sc, func(ctx context.Context) (preferences.SiteView, error) {
			return r.prefs.SetCategoryEnabled(ctx, s, view.SiteID, key, enabled)
		}); !ok {
			return
		}
		_ = r.answerCallback(cbID, "")
		r.showCategory(chatID, msgID, sc, key)
		return

	case "f":
		f, err := domain.ParseFrequency(argAt(args, 2))
		if err != nil {
			_ = r.answerCallback(cbID, "")
			return
		}
		edit = func(s *domain.Schedule) { s.Frequency = f }

	case "d":
		day, err := domain.ParseWeekday(argAt(args, 2))
		if err != nil {
			_ = r.answerCallback(cbID, "")
			return
		}
		edit = func(s *domain.Schedule) { s.WeeklyDay = day }

	case "clear":
		// nil edit clears the override

	case "time":
		_ = r.answerCallback(cbID, "")
		r.setPending(chatID, pendingCatTime, idx)
		r.sendText(chatID, "Send the digest time as HH:MM (24h), e.g. 18:30.")
		return

	case "tz":
		_ = r.answerCallback(cbID, "")
		r.setPending(chatID, pendingCatTZ, idx)
		r.sendText(chatID, "Send the timezone as Region/City, e.g. America/Toronto.")
		return

	default:
		_ = r.answerCallback(cbID, "")
		return
	}

	if r.saveCategorySchedule(ctx, chatID, cbID, sc, key, edit) {
		_ = r.answerCallback(cbID, "Saved")
		r.showCategory(chatID, msgID, sc, key)
	}
}

func (r *Router) saveCategorySchedule(ctx context.Context, chatID int64, cbID string, sc *screen, key string, edit func(*domain.Schedule)) bool {
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		_ = r.answerCallback(cbID, "")
		return false
	}
	view := sc.site.Snapshot().Data
	_, ok = r.writeSite(ctx, chatID, cbID, sc, func(ctx context.Context) (preferences.SiteView, error) {
		return r.prefs.SetCategorySchedule(ctx, s, view, key, edit)
	})
	return ok
}

// showCategory draws the category page, falling back to the site page when
// the category disappeared on reload.
func (r *Router) showCategory(chatID int64, msgID int, sc *screen, key string) {
	view := sc.site.Snapshot().Data
	for i, e := range view.Categories {
		if e.Category.Key == key {
			text, kb := renderCategory(view, i, time.Now().UTC())
			r.show(chatID, msgID, text, kb)
			return
		}
	}
	r.showSite(chatID, msgID, sc)
}

// applyScheduleInput finishes a free-form time or timezone edit.
func (r *Router) applyScheduleInput(ctx context.Context, chatID int64, p pending, fn func(*domain.Schedule)) {
	sc := r.currentSite(chatID)
	if sc == nil {
		r.sendText(chatID, screenGoneText)
		return
	}
	switch p.kind {
	case pendingSiteTime, pendingSiteTZ:
		sc.draft.EditSchedule(fn)
		r.showSiteSchedule(chatID, 0, sc)
	default:
		view := sc.site.Snapshot().Data
		if p.arg < 0 || p.arg >= len(view.Categories) {
			r.sendText(chatID, screenGoneText)
			return
		}
		key := view.Categories[p.arg].Category.Key
		if r.saveCategorySchedule(ctx, chatID, "", sc, key, fn) {
			r.showCategory(chatID, 0, sc, key)
		} else {
			r.log.Debug("category schedule not saved", zap.Int64("chatID", chatID), zap.String("category", key))
		}
	}
}
