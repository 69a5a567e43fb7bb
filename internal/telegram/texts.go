package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/async"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/preferences"
)

// UI texts in English
const (
	startText = "👋 I am the <b>NoloFication</b> bot.\n\n" +
		"Decide how each site reaches you (email, web push, Discord, webhook), " +
		"pick digest schedules per category and read your notification history right here.\n\n" +
		"Use /login to connect your KeyN account."
	notSignedInText    = "🔐 You are not signed in. Use /login first."
	sessionEndedText   = "🔒 Your session has ended. Use /login to sign in again."
	adminOnlyText      = "⛔ This command is for administrators."
	internalErrorText  = "Something went wrong on our side. Please try again later."
	unknownCommandText = "Unknown command. See /help."
	busyText           = "⏳ Still working on your previous request."
	screenGoneText     = "This page is out of date, open it again."

	labelOverridden = "Overridden"
	labelInherited  = "Using global setting"

	notificationsPageSize = 8
)

// mainMenuKeyboard is the reply keyboard shown after /start.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/prefs"),
			tgbotapi.NewKeyboardButton("/sites"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/notifications"),
			tgbotapi.NewKeyboardButton("/me"),
		),
	)
}

func esc(s string) string { return html.EscapeString(s) }

func onOff(v bool) string {
	if v {
		return "✅ On"
	}
	return "❌ Off"
}

func provenance(v domain.ChannelValue) string {
	if v.Overridden() {
		return labelOverridden
	}
	return labelInherited
}

func overrideLabel(t domain.TriState) string {
	switch t {
	case domain.On:
		return "on"
	case domain.Off:
		return "off"
	}
	return "global"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

// --- Global preferences ---

func renderGlobal(st async.State[domain.GlobalPreferences]) (string, *tgbotapi.InlineKeyboardMarkup) {
	if !st.HasData {
		return renderFailure("global preferences", st.Err, "g:r")
	}
	g := st.Data
	var b strings.Builder
	b.WriteString("<b>🌐 Global preferences</b>\nThese apply to every site unless a site overrides them.\n\n")
	for _, ch := range domain.AllChannels() {
		fmt.Fprintf(&b, "%s %s: %s\n", ch.Icon(), ch.Label(), onOff(g.Channels[ch]))
	}
	fmt.Fprintf(&b, "\nDiscord user ID: <code>%s</code>\nWebhook URL: <code>%s</code>", esc(orDash(g.DiscordUserID)), esc(orDash(g.WebhookURL)))
	if st.Err != nil {
		fmt.Fprintf(&b, "\n\n⚠️ %s", esc(api.Message(st.Err)))
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(domain.AllChannels())+2)
	for _, ch := range domain.AllChannels() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s: %s", ch.Icon(), ch.Label(), onOff(g.Channels[ch])), "g:t:"+string(ch)),
			tgbotapi.NewInlineKeyboardButtonData("🧪 Test", "g:x:"+string(ch)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔗 Webhook URL", "g:w"),
			tgbotapi.NewInlineKeyboardButtonData("💬 Discord ID", "g:d"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧪 Test all", "g:x:"+api.TestChannelAll),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "g:r"),
		),
	)
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &kb
}

// renderFailure is the page shown when a load failed and no data is cached.
func renderFailure(what string, err error, retry string) (string, *tgbotapi.InlineKeyboardMarkup) {
	msg := "unknown error"
	if err != nil {
		msg = api.Message(err)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Retry", retry),
	))
	return fmt.Sprintf("⚠️ Could not load %s: %s", what, esc(msg)), &kb
}

// --- Sites ---

func renderSites(sites []domain.Site) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(sites) == 0 {
		return "No sites are available yet.", nil
	}
	var b strings.Builder
	b.WriteString("<b>🧩 Sites</b>\nPick a site to adjust how it reaches you.\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(sites))
	for _, s := range sites {
		fmt.Fprintf(&b, "\n• <b>%s</b> <code>%s</code>", esc(s.Name), esc(s.SiteID))
		if s.Description != "" {
			fmt.Fprintf(&b, "\n  %s", esc(s.Description))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Name, "p:"+s.SiteID),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &kb
}

func renderSite(st async.State[preferences.SiteView], d *preferences.Draft, now time.Time) (string, *tgbotapi.InlineKeyboardMarkup) {
	if !st.HasData {
		return renderFailure("this site", st.Err, "s:r")
	}
	view := st.Data
	eff := d.Effective(view)

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", esc(orDash(view.Info.Name)))
	if view.Info.Description != "" {
		fmt.Fprintf(&b, "\n%s", esc(view.Info.Description))
	}
	b.WriteString("\n\n<b>Channels</b>\n")
	for _, ch := range domain.AllChannels() {
		v := eff.Channels[ch]
		fmt.Fprintf(&b, "%s %s: %s · <i>%s</i>\n", ch.Icon(), ch.Label(), onOff(v.Value), provenance(v))
	}
	sched := d.Schedule()
	fmt.Fprintf(&b, "\n<b>Default schedule</b>\n%s", esc(sched.Describe()))
	if sched.Frequency != domain.FrequencyInstant {
		if next, err := domain.LocalizeTime(domain.NextDelivery(now, sched), sched.Timezone); err == nil {
			fmt.Fprintf(&b, "\nNext digest: %s", next)
		}
	}
	if len(view.Categories) > 0 {
		b.WriteString("\n\n<b>Categories</b>")
		for _, e := range view.Categories {
			ec := eff.Categories[e.Category.Key]
			state := "✅"
			if !ec.Enabled {
				state = "🚫"
			}
			fmt.Fprintf(&b, "\n%s %s · %s", state, esc(e.Category.Name), esc(ec.Schedule.Describe()))
		}
	}
	if d.Dirty() {
		b.WriteString("\n\n✏️ <i>Unsaved changes</i>")
	}
	if st.Err != nil {
		fmt.Fprintf(&b, "\n\n⚠️ %s", esc(api.Message(st.Err)))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	chans := domain.AllChannels()
	for i := 0; i < len(chans); i += 2 {
		row := tgbotapi.NewInlineKeyboardRow()
		for _, ch := range chans[i:min(i+2, len(chans))] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s %s: %s", ch.Icon(), ch.Label(), overrideLabel(d.Override(ch))), "s:c:"+string(ch)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗓 Default schedule", "s:sch"),
	))
	for i, e := range view.Categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📂 "+e.Category.Name, "c:"+strconv.Itoa(i)),
		))
	}
	last := tgbotapi.NewInlineKeyboardRow()
	if d.Dirty() {
		last = append(last,
			tgbotapi.NewInlineKeyboardButtonData("💾 Save", "s:save"),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Discard", "s:undo"),
		)
	}
	last = append(last,
		tgbotapi.NewInlineKeyboardButtonData("♻️ Reset", "s:reset"),
		tgbotapi.NewInlineKeyboardButtonData("🔄", "s:r"),
	)
	rows = append(rows, last)
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &kb
}

// scheduleRows builds the frequency, weekday and time/timezone controls.
// prefix is the callback prefix of the page owning the schedule.
func scheduleRows(prefix string, s domain.Schedule) [][]tgbotapi.InlineKeyboardButton {
	freq := tgbotapi.NewInlineKeyboardRow()
	for _, f := range domain.Frequencies() {
		label := f.Label()
		if f == s.Frequency {
			label = "• " + label
		}
		freq = append(freq, tgbotapi.NewInlineKeyboardButtonData(label, prefix+":f:"+string(f)))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{freq}

	if s.Frequency == domain.FrequencyWeekly {
		days := []int{0, 1, 2, 3, 4, 5, 6}
		for _, chunk := range [][]int{days[:4], days[4:]} {
			row := tgbotapi.NewInlineKeyboardRow()
			for _, d := range chunk {
				label := domain.WeekdayName(d)[:3]
				if d == s.WeeklyDay {
					label = "• " + label
				}
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, prefix+":d:"+strconv.Itoa(d)))
			}
			rows = append(rows, row)
		}
	}
	if s.Frequency != domain.FrequencyInstant {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🕘 "+orDash(s.TimeOfDay), prefix+":time"),
			tgbotapi.NewInlineKeyboardButtonData("🌍 "+orDash(s.Timezone), prefix+":tz"),
		))
	}
	return rows
}

func renderSiteSchedule(view preferences.SiteView, d *preferences.Draft, now time.Time) (string, *tgbotapi.InlineKeyboardMarkup) {
	s := d.Schedule()
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s · default schedule</b>\nUsed by categories that have no schedule of their own.\n\n%s",
		esc(orDash(view.Info.Name)), esc(s.Describe()))
	if s.Frequency != domain.FrequencyInstant {
		if next, err := domain.LocalizeTime(domain.NextDelivery(now, s), s.Timezone); err == nil {
			fmt.Fprintf(&b, "\nNext digest: %s", next)
		}
	}
	if d.Dirty() {
		b.WriteString("\n\n✏️ <i>Unsaved changes, save them from the site page.</i>")
	}
	rows := scheduleRows("s", s)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "s:back"),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &kb
}

func renderCategory(view preferences.SiteView, idx int, now time.Time) (string, *tgbotapi.InlineKeyboardMarkup) {
	e := view.Categories[idx]
	ec := view.Effective.Categories[e.Category.Key]
	custom := e.UserPreference != nil && e.UserPreference.Schedule.Usable()

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> <code>%s</code>", esc(e.Category.Name), esc(e.Category.Key))
	if e.Category.Description != "" {
		fmt.Fprintf(&b, "\n%s", esc(e.Category.Description))
	}
	status := "✅ Enabled"
	if !ec.Enabled {
		status = "🚫 Disabled"
	}
	source := "site default"
	switch {
	case custom:
		source = "your schedule"
	case e.Category.DefaultSchedule.Usable():
		source = "category default"
	}
	fmt.Fprintf(&b, "\n\nStatus: %s\nSchedule: %s <i>(%s)</i>", status, esc(ec.Schedule.Describe()), source)
	if ec.Enabled && ec.Schedule.Frequency != domain.FrequencyInstant {
		if next, err := domain.LocalizeTime(domain.NextDelivery(now, ec.Schedule), ec.Schedule.Timezone); err == nil {
			fmt.Fprintf(&b, "\nNext digest: %s", next)
		}
	}

	prefix := "c:" + strconv.Itoa(idx)
	toggle := tgbotapi.NewInlineKeyboardButtonData("🚫 Disable", prefix+":en:0")
	if !ec.Enabled {
		toggle = tgbotapi.NewInlineKeyboardButtonData("✅ Enable", prefix+":en:1")
	}
	rows := [][]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardRow(toggle)}
	rows = append(rows, scheduleRows(prefix, ec.Schedule)...)
	last := tgbotapi.NewInlineKeyboardRow()
	if custom {
		last = append(last, tgbotapi.NewInlineKeyboardButtonData("↩️ Use default", prefix+":clear"))
	}
	last = append(last, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "s:back"))
	rows = append(rows, last)
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &kb
}

// --- Notifications ---

func renderNotifications(page domain.NotificationPage, siteFilter string, now time.Time) (string, *tgbotapi.InlineKeyboardMarkup) {
	var b strings.Builder
	b.WriteString("<b>📬 Notifications</b>")
	if siteFilter != "" {
		fmt.Fprintf(&b, " · <code>%s</code>", esc(siteFilter))
	}
	if len(page.Notifications) == 0 {
		b.WriteString("\n\nNothing here yet.")
		return b.String(), nil
	}
	fmt.Fprintf(&b, "\n%d–%d of %d\n", page.Offset+1, page.Offset+len(page.Notifications), page.Total)

	var readRow []tgbotapi.InlineKeyboardButton
	for _, n := range page.Notifications {
		marker := "🔵"
		if n.IsRead {
			marker = "⚪"
		}
		fmt.Fprintf(&b, "\n%s %s <b>%s</b>\n%s\n<i>%s · %s</i>",
			marker, domain.TypeIcon(n.Type), esc(n.Title), esc(n.Message),
			esc(orDash(n.SiteName)), domain.FormatAgo(now, n.Created()))
		if via := n.DeliveredVia(); len(via) > 0 {
			icons := make([]string, len(via))
			for i, c := range via {
				icons[i] = c.Icon()
			}
			fmt.Fprintf(&b, " · %s", strings.Join(icons, ""))
		}
		b.WriteString("\n")
		if !n.IsRead && len(readRow) < 4 {
			readRow = append(readRow, tgbotapi.NewInlineKeyboardButtonData("✓ "+trim(n.Title, 12), "n:r:"+strconv.FormatInt(n.ID, 10)))
		}
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if len(readRow) > 0 {
		rows = append(rows, readRow)
	}
	nav := tgbotapi.NewInlineKeyboardRow()
	if page.Offset > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("‹ Newer", "n:p:"+strconv.Itoa(max(page.Offset-notificationsPageSize, 0))))
	}
	nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("✓ All read", "n:all"))
	if page.Offset+len(page.Notifications) < page.Total {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Older ›", "n:p:"+strconv.Itoa(page.Offset+len(page.Notifications))))
	}
	rows = append(rows, nav)
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &kb
}

func trim(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// --- Account ---

func renderUser(u domain.User, hookURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>👤 %s</b>\nEmail: %s\nKeyN ID: <code>%s</code>",
		esc(orDash(u.Username)), esc(orDash(u.Email)), esc(orDash(u.KeynUserID)))
	if u.IsAdmin() {
		b.WriteString("\nRole: administrator")
	}
	if t, err := domain.ParseTimestamp(u.CreatedAt); err == nil {
		fmt.Fprintf(&b, "\nMember since %s", t.Format("Jan 2, 2006"))
	}
	if hookURL != "" {
		fmt.Fprintf(&b, "\n\nChat webhook: <code>%s</code>", esc(hookURL))
	}
	return b.String()
}
