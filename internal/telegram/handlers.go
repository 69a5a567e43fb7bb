package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/byNolo/nolofication/assets"
	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/async"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/session"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendHTML(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

// show edits msgID in place, or sends a new message when msgID is 0.
func (r *Router) show(chatID int64, msgID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if msgID == 0 {
		r.sendHTML(chatID, text, kb)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = kb
	if _, err := r.bot.Send(edit); err != nil {
		// Telegram rejects edits that change nothing; that is harmless.
		r.log.Debug("edit failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Router) answerCallback(id, text string) error {
	if id == "" {
		return nil
	}
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// requireSession loads the chat's session or tells the user to sign in.
func (r *Router) requireSession(ctx context.Context, chatID int64) (*domain.Session, bool) {
	s, err := r.sessions.Load(ctx, chatID)
	switch {
	case err == nil:
		return s, true
	case errors.Is(err, session.ErrNoSession):
		r.sendText(chatID, notSignedInText)
	default:
		r.log.Error("load session failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, internalErrorText)
	}
	return nil, false
}

// requireAdmin hides admin commands from regular users. The backend checks again.
func (r *Router) requireAdmin(ctx context.Context, chatID int64) (*domain.Session, bool) {
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		return nil, false
	}
	if !s.User.IsAdmin() {
		r.sendText(chatID, adminOnlyText)
		return nil, false
	}
	return s, true
}

// report explains a failed call to the user. A rejected token ends the session.
func (r *Router) report(ctx context.Context, chatID int64, what string, err error) {
	switch {
	case errors.Is(err, async.ErrBusy):
		r.sendText(chatID, busyText)
	case r.sessions.DropIfUnauthorized(ctx, chatID, err):
		r.forget(chatID)
		r.sendText(chatID, sessionEndedText)
	case api.IsForbidden(err):
		r.sendText(chatID, "⛔ "+what+": "+api.Message(err))
	default:
		if api.StatusOf(err) >= 500 {
			r.log.Warn(what, zap.Error(err), zap.Int64("chatID", chatID))
		}
		r.sendText(chatID, "⚠️ "+what+": "+api.Message(err))
	}
}

// --- Account ---

func (r *Router) handleStart(ctx context.Context, chatID int64, args string) {
	if args == "login" {
		r.handleLogin(ctx, chatID, "")
		return
	}
	text := startText
	if s, err := r.sessions.Load(ctx, chatID); err == nil {
		text += fmt.Sprintf("\n\nSigned in as <b>%s</b>.", esc(orDash(s.User.Username)))
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleHelp(chatID int64) {
	r.sendHTML(chatID, assets.Help(), nil)
}

// handleLogin starts the KeyN sign-in. "/login <token>" signs in with an
// existing access token instead.
func (r *Router) handleLogin(ctx context.Context, chatID int64, token string) {
	if token != "" {
		s, err := r.sessions.Login(ctx, chatID, token)
		if err != nil {
			if api.IsUnauthorized(err) {
				r.sendText(chatID, "That token was rejected.")
				return
			}
			r.report(ctx, chatID, "Sign-in failed", err)
			return
		}
		r.forget(chatID)
		r.sendHTML(chatID, fmt.Sprintf("✅ Signed in as <b>%s</b>.", esc(orDash(s.User.Username))), nil)
		return
	}

	link, err := r.flow.Begin(ctx, chatID)
	if err != nil {
		r.log.Error("begin sign-in failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, internalErrorText)
		return
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("🔐 Sign in with KeyN", link),
	))
	r.sendHTML(chatID, "Open the link below to sign in. It works once and expires shortly.", &kb)
}

func (r *Router) handleLogout(ctx context.Context, chatID int64) {
	if err := r.sessions.Clear(ctx, chatID); err != nil {
		r.log.Error("logout failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, internalErrorText)
		return
	}
	r.forget(chatID)
	r.sendText(chatID, "👋 Signed out.")
}

func (r *Router) handleMe(ctx context.Context, chatID int64) {
	s, err := r.sessions.Refresh(ctx, chatID)
	switch {
	case errors.Is(err, session.ErrNoSession):
		r.forget(chatID)
		r.sendText(chatID, notSignedInText)
		return
	case err != nil:
		r.report(ctx, chatID, "Could not load your account", err)
		return
	}
	r.sendHTML(chatID, renderUser(s.User, r.hookURL(s.HookID)), nil)
}

// handleWebhook shows the chat's relay URL. Payloads posted there are shown in the chat.
func (r *Router) handleWebhook(ctx context.Context, chatID int64) {
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		return
	}
	url := r.hookURL(s.HookID)
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔗 Use as my webhook", "g:hook"),
	))
	r.sendHTML(chatID, fmt.Sprintf(
		"Anything POSTed to this URL is shown here:\n<code>%s</code>\n\n"+
			"Set it as your webhook URL to receive webhook-channel notifications in this chat.", esc(url)), &kb)
}

// handleDiscord shows the Discord linking links, or links the account when
// a code is given.
func (r *Router) handleDiscord(ctx context.Context, chatID int64, code string) {
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		return
	}
	if code != "" {
		r.linkDiscord(ctx, chatID, s, code)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if link, err := r.api.DiscordAuthorizeURL(ctx); err == nil && link != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("💬 Link Discord", link)))
	} else if err != nil {
		r.log.Warn("discord authorize url", zap.Error(err))
	}
	if link, err := r.api.DiscordBotAuthorizeURL(ctx); err == nil && link != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🤖 Allow bot DMs", link)))
	} else if err != nil {
		r.log.Warn("discord bot authorize url", zap.Error(err))
	}
	if len(rows) == 0 {
		r.sendText(chatID, "⚠️ Discord linking is unavailable right now.")
		return
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	r.setPending(chatID, pendingDiscordTok, 0)
	r.sendHTML(chatID, "Authorize with Discord, then paste the <code>code</code> from the page you land on (or send /discord &lt;code&gt;).", &kb)
}

func (r *Router) linkDiscord(ctx context.Context, chatID int64, s *domain.Session, code string) {
	res, err := r.api.LinkDiscord(ctx, s, code)
	if err != nil {
		r.report(ctx, chatID, "Discord linking failed", err)
		return
	}
	text := "✅ Discord linked"
	if res.DiscordUsername != "" {
		text += " as " + res.DiscordUsername
	}
	r.sendText(chatID, text+".")
}

// --- Free-form dispatcher (for all "Custom" inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	p := r.takePending(chatID)
	switch p.kind {
	case pendingSiteTime, pendingCatTime:
		t, err := domain.NormalizeTimeOfDay(text)
		if err != nil {
			r.setPending(chatID, p.kind, p.arg)
			r.sendText(chatID, "Invalid time. Use 24h HH:MM, e.g. 08:30.")
			return
		}
		r.applyScheduleInput(ctx, chatID, p, func(s *domain.Schedule) { s.TimeOfDay = t })

	case pendingSiteTZ, pendingCatTZ:
		tz, err := domain.ValidateTZ(text)
		if err != nil {
			r.setPending(chatID, p.kind, p.arg)
			r.sendText(chatID, "Invalid timezone. Example: Europe/Berlin")
			return
		}
		r.applyScheduleInput(ctx, chatID, p, func(s *domain.Schedule) { s.Timezone = tz })

	case pendingWebhookURL:
		r.updateGlobal(ctx, chatID, 0, func(g *domain.GlobalPreferences) {
			if text == "-" {
				text = ""
			}
			g.WebhookURL = text
		})

	case pendingDiscordID:
		r.updateGlobal(ctx, chatID, 0, func(g *domain.GlobalPreferences) {
			if text == "-" {
				text = ""
			}
			g.DiscordUserID = text
		})

	case pendingDiscordTok:
		if s, ok := r.requireSession(ctx, chatID); ok {
			r.linkDiscord(ctx, chatID, s, text)
		}

	default:
		// No pending flow: ignore free-form message
	}
}

// --- Notifications ---

func (r *Router) handleNotifications(ctx context.Context, chatID int64, msgID int, siteFilter string, offset int) {
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		return
	}
	sc := r.screenFor(chatID)
	r.mu.Lock()
	sc.notifSite = siteFilter
	sc.notifOffset = offset
	r.mu.Unlock()

	page, err := r.api.Notifications(ctx, s, api.ListOptions{SiteID: siteFilter, Limit: notificationsPageSize, Offset: offset})
	if err != nil {
		r.report(ctx, chatID, "Could not load notifications", err)
		return
	}
	if page.Offset == 0 && offset > 0 {
		page.Offset = offset
	}
	text, kb := renderNotifications(page, siteFilter, time.Now().UTC())
	r.show(chatID, msgID, text, kb)
}

func (r *Router) handleNotificationsCallback(ctx context.Context, chatID int64, msgID int, cbID string, args []string) {
	if len(args) == 0 {
		_ = r.answerCallback(cbID, "")
		return
	}
	s, ok := r.requireSession(ctx, chatID)
	if !ok {
		_ = r.answerCallback(cbID, "")
		return
	}
	sc := r.screenFor(chatID)
	r.mu.Lock()
	filter, offset := sc.notifSite, sc.notifOffset
	r.mu.Unlock()

	switch args[0] {
	case "r":
		id, err := strconv.ParseInt(argAt(args, 1), 10, 64)
		if err != nil {
			_ = r.answerCallback(cbID, "")
			return
		}
		if err := r.api.MarkRead(ctx, s, id); err != nil {
			_ = r.answerCallback(cbID, "")
			r.report(ctx, chatID, "Could not mark as read", err)
			return
		}
		_ = r.answerCallback(cbID, "Marked as read")
	case "all":
		if err := r.api.MarkAllRead(ctx, s); err != nil {
			_ = r.answerCallback(cbID, "")
			r.report(ctx, chatID, "Could not mark all as read", err)
			return
		}
		_ = r.answerCallback(cbID, "All marked as read")
	case "p":
		offset, _ = strconv.Atoi(argAt(args, 1))
		_ = r.answerCallback(cbID, "")
	default:
		_ = r.answerCallback(cbID, "")
		return
	}
	r.handleNotifications(ctx, chatID, msgID, filter, offset)
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// splitArgs splits "a b rest of text" into at most n fields.
func splitArgs(s string, n int) []string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return fields
	}
	return append(fields[:n-1], strings.Join(fields[n-1:], " "))
}
