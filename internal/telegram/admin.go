package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/domain"
)

const adminUsersPageSize = 20

func (r *Router) handleAdminDashboard(ctx context.Context, chatID int64) {
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	d, err := r.api.AdminDashboard(ctx, s)
	if err != nil {
		r.report(ctx, chatID, "Could not load dashboard", err)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🛠 Admin dashboard</b>\nUsers: %d\nSites: %d (%d active, %d pending)\nNotifications: %d\n",
		d.Stats.Users, d.Stats.Sites, d.Stats.ActiveSites, d.Stats.PendingSites, d.Stats.Notifications)
	if len(d.Channels) > 0 {
		b.WriteString("\n<b>Deliveries by channel</b>\n")
		for _, ch := range domain.AllChannels() {
			fmt.Fprintf(&b, "%s %s: %d\n", ch.Icon(), ch.Label(), d.Channels[ch])
		}
	}
	if len(d.RecentNotifications) > 0 {
		b.WriteString("\n<b>Recent</b>")
		now := time.Now().UTC()
		for _, n := range d.RecentNotifications[:min(5, len(d.RecentNotifications))] {
			fmt.Fprintf(&b, "\n%s %s · <i>%s, %s</i>", domain.TypeIcon(n.Type), esc(n.Title),
				esc(orDash(n.SiteName)), domain.FormatAgo(now, n.Created()))
		}
	}
	r.sendHTML(chatID, b.String(), nil)
}

func (r *Router) handleAdminSites(ctx context.Context, chatID int64) {
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	sites, err := r.api.AdminSites(ctx, s)
	if err != nil {
		r.report(ctx, chatID, "Could not load sites", err)
		return
	}
	if len(sites) == 0 {
		r.sendText(chatID, "No sites registered.")
		return
	}
	var b strings.Builder
	b.WriteString("<b>🧩 Registered sites</b>")
	for _, site := range sites {
		fmt.Fprintf(&b, "\n\n<b>%s</b> <code>%s</code> · %s\n%d notifications, %d categories",
			esc(site.Name), esc(site.SiteID), site.Status(), site.NotificationCount, site.CategoryCount)
	}
	b.WriteString("\n\n/approve, /activate, /deactivate, /regenkey, /editsite and /delsite take a site id.")
	r.sendHTML(chatID, b.String(), nil)
}

func (r *Router) handleAdminUsers(ctx context.Context, chatID int64, args string) {
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	pageNo, _ := strconv.Atoi(args)
	if pageNo < 1 {
		pageNo = 1
	}
	page, err := r.api.AdminUsers(ctx, s, adminUsersPageSize, (pageNo-1)*adminUsersPageSize)
	if err != nil {
		r.report(ctx, chatID, "Could not load users", err)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>👥 Users</b> (page %d, %d total)", pageNo, page.Total)
	for _, u := range page.Users {
		fmt.Fprintf(&b, "\n• %s %s", esc(orDash(u.Username)), esc(u.Email))
		if u.IsAdmin() {
			b.WriteString(" 🛡")
		}
	}
	if pageNo*adminUsersPageSize < page.Total {
		fmt.Fprintf(&b, "\n\nNext: /admin_users %d", pageNo+1)
	}
	r.sendHTML(chatID, b.String(), nil)
}

func (r *Router) handleAdminNotifications(ctx context.Context, chatID int64, siteID string) {
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	page, err := r.api.AdminNotifications(ctx, s, api.ListOptions{SiteID: siteID, Limit: 10})
	if err != nil {
		r.report(ctx, chatID, "Could not load notifications", err)
		return
	}
	text, _ := renderNotifications(page, siteID, time.Now().UTC())
	r.sendHTML(chatID, text, nil)
}

func (r *Router) handleSiteAction(ctx context.Context, chatID int64, action api.SiteAction, siteID string) {
	if siteID == "" {
		r.sendText(chatID, fmt.Sprintf("Usage: /%s <site_id>", action))
		return
	}
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	msg, err := r.api.AdminSiteAction(ctx, s, siteID, action)
	if err != nil {
		r.report(ctx, chatID, "Could not "+string(action)+" site", err)
		return
	}
	if msg == "" {
		msg = fmt.Sprintf("Site %s: %s done.", siteID, action)
	}
	r.sendText(chatID, "✅ "+msg)
}

func (r *Router) handleRegenerateKey(ctx context.Context, chatID int64, siteID string) {
	if siteID == "" {
		r.sendText(chatID, "Usage: /regenkey <site_id>")
		return
	}
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	key, err := r.api.AdminRegenerateKey(ctx, s, siteID)
	if err != nil {
		r.report(ctx, chatID, "Could not regenerate key", err)
		return
	}
	r.sendHTML(chatID, fmt.Sprintf("🔑 New API key for <code>%s</code>:\n<code>%s</code>\nThe old key stops working now.", esc(siteID), esc(key)), nil)
}

func (r *Router) handleDeleteSite(ctx context.Context, chatID int64, args string) {
	f := strings.Fields(args)
	if len(f) != 2 || f[1] != "confirm" {
		r.sendText(chatID, "Usage: /delsite <site_id> confirm\nThis removes the site, its categories and preferences.")
		return
	}
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	if err := r.api.AdminDeleteSite(ctx, s, f[0]); err != nil {
		r.report(ctx, chatID, "Could not delete site", err)
		return
	}
	r.sendText(chatID, "🗑 Site "+f[0]+" deleted.")
}

// handleNewSite: /newsite <site_id> <name> [| description]
func (r *Router) handleNewSite(ctx context.Context, chatID int64, args string) {
	head, desc := cutPipe(args)
	f := splitArgs(head, 2)
	if len(f) < 2 {
		r.sendText(chatID, "Usage: /newsite <site_id> <name> [| description]")
		return
	}
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	created, err := r.api.AdminCreateSite(ctx, s, api.NewSite{SiteID: f[0], Name: f[1], Description: desc})
	if err != nil {
		r.report(ctx, chatID, "Could not create site", err)
		return
	}
	r.sendHTML(chatID, fmt.Sprintf("✅ Created <b>%s</b> <code>%s</code>.\nAPI key (shown once):\n<code>%s</code>",
		esc(created.Name), esc(created.SiteID), esc(created.APIKey)), nil)
}

// handleEditSite: /editsite <site_id> [name] [| description]
func (r *Router) handleEditSite(ctx context.Context, chatID int64, args string) {
	head, desc := cutPipe(args)
	f := splitArgs(head, 2)
	hasDesc := strings.Contains(args, "|")
	if len(f) == 0 || (len(f) == 1 && !hasDesc) {
		r.sendText(chatID, "Usage: /editsite <site_id> [new name] [| new description]")
		return
	}
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	var in api.SiteUpdate
	if len(f) == 2 {
		in.Name = &f[1]
	}
	if hasDesc {
		in.Description = &desc
	}
	if err := r.api.AdminUpdateSite(ctx, s, f[0], in); err != nil {
		r.report(ctx, chatID, "Could not update site", err)
		return
	}
	r.sendText(chatID, "✅ Site "+f[0]+" updated.")
}

// handleNewCategory: /newcategory <site_id> <key> <name> [| instant | daily HH:MM | weekly <day> HH:MM]
func (r *Router) handleNewCategory(ctx context.Context, chatID int64, args string) {
	head, sched := cutPipe(args)
	f := splitArgs(head, 3)
	if len(f) < 3 {
		r.sendText(chatID, "Usage: /newcategory <site_id> <key> <name> [| instant | daily HH:MM | weekly <day> HH:MM]")
		return
	}
	in := api.NewCategory{Key: f[1], Name: f[2]}
	if err := parseCategoryDefaults(sched, &in); err != nil {
		r.sendText(chatID, "⚠️ "+err.Error())
		return
	}
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	cat, err := r.api.AdminCreateCategory(ctx, s, f[0], in)
	if err != nil {
		r.report(ctx, chatID, "Could not create category", err)
		return
	}
	text := fmt.Sprintf("✅ Category <b>%s</b> <code>%s</code> added", esc(cat.Name), esc(cat.Key))
	if cat.DefaultSchedule.Usable() {
		text += " · " + esc(cat.DefaultSchedule.Describe())
	}
	r.sendHTML(chatID, text+".", nil)
}

func parseCategoryDefaults(s string, in *api.NewCategory) error {
	f := strings.Fields(s)
	if len(f) == 0 {
		return nil
	}
	freq, err := domain.ParseFrequency(f[0])
	if err != nil {
		return err
	}
	in.DefaultFrequency = string(freq)
	rest := f[1:]
	if freq == domain.FrequencyWeekly && len(rest) > 0 {
		day, err := domain.ParseWeekday(rest[0])
		if err != nil {
			return err
		}
		in.DefaultWeeklyDay = &day
		rest = rest[1:]
	}
	if freq != domain.FrequencyInstant && len(rest) > 0 {
		t, err := domain.NormalizeTimeOfDay(rest[0])
		if err != nil {
			return err
		}
		in.DefaultTimeOfDay = t
	}
	return nil
}

// handleBroadcast: /broadcast [@site_id] [#type] <title> | <message>
func (r *Router) handleBroadcast(ctx context.Context, chatID int64, args string) {
	head, message := cutPipe(args)
	in := api.Broadcast{Target: api.TargetAll, Type: domain.TypeInfo, Message: message}
	words := strings.Fields(head)
	for len(words) > 0 {
		switch w := words[0]; {
		case strings.HasPrefix(w, "@") && len(w) > 1:
			in.Target, in.SiteID = api.TargetSiteUsers, w[1:]
		case strings.HasPrefix(w, "#") && len(w) > 1:
			in.Type = strings.ToLower(w[1:])
		default:
			in.Title = strings.Join(words, " ")
			words = nil
			continue
		}
		words = words[1:]
	}
	if in.Title == "" || in.Message == "" {
		r.sendText(chatID, "Usage: /broadcast [@site_id] [#info|#success|#warning|#error] <title> | <message>")
		return
	}
	s, ok := r.requireAdmin(ctx, chatID)
	if !ok {
		return
	}
	res, err := r.api.AdminBroadcast(ctx, s, in)
	if err != nil {
		r.report(ctx, chatID, "Broadcast failed", err)
		return
	}
	if res == "" {
		res = "Broadcast sent."
	}
	r.sendText(chatID, "📣 "+res)
}

// cutPipe splits "head | tail" and trims both sides.
func cutPipe(s string) (string, string) {
	head, tail, _ := strings.Cut(s, "|")
	return strings.TrimSpace(head), strings.TrimSpace(tail)
}
