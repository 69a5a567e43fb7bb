package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/metrics"
	"github.com/byNolo/nolofication/internal/preferences"
	"github.com/byNolo/nolofication/internal/session"
)

// Pending state keys used in conversational flows.
const (
	pendingSiteTime   = "await_site_time"
	pendingSiteTZ     = "await_site_tz"
	pendingCatTime    = "await_category_time"
	pendingCatTZ      = "await_category_tz"
	pendingWebhookURL = "await_webhook_url"
	pendingDiscordID  = "await_discord_id"
	pendingDiscordTok = "await_discord_code"
)

// Bot is the part of tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Backend is the part of the API client used directly by chat screens.
type Backend interface {
	PublicSites(ctx context.Context) ([]domain.Site, error)
	Notifications(ctx context.Context, ts api.TokenSource, opts api.ListOptions) (domain.NotificationPage, error)
	MarkRead(ctx context.Context, ts api.TokenSource, id int64) error
	MarkAllRead(ctx context.Context, ts api.TokenSource) error
	SendTest(ctx context.Context, ts api.TokenSource, channel string) (string, error)

	DiscordAuthorizeURL(ctx context.Context) (string, error)
	DiscordBotAuthorizeURL(ctx context.Context) (string, error)
	LinkDiscord(ctx context.Context, ts api.TokenSource, code string) (api.DiscordLink, error)

	AdminDashboard(ctx context.Context, ts api.TokenSource) (domain.Dashboard, error)
	AdminSites(ctx context.Context, ts api.TokenSource) ([]domain.AdminSite, error)
	AdminCreateSite(ctx context.Context, ts api.TokenSource, in api.NewSite) (api.CreatedSite, error)
	AdminUpdateSite(ctx context.Context, ts api.TokenSource, siteID string, in api.SiteUpdate) error
	AdminDeleteSite(ctx context.Context, ts api.TokenSource, siteID string) error
	AdminSiteAction(ctx context.Context, ts api.TokenSource, siteID string, action api.SiteAction) (string, error)
	AdminRegenerateKey(ctx context.Context, ts api.TokenSource, siteID string) (string, error)
	AdminCreateCategory(ctx context.Context, ts api.TokenSource, siteID string, in api.NewCategory) (domain.Category, error)
	AdminUsers(ctx context.Context, ts api.TokenSource, limit, offset int) (api.UserPage, error)
	AdminNotifications(ctx context.Context, ts api.TokenSource, opts api.ListOptions) (domain.NotificationPage, error)
	AdminBroadcast(ctx context.Context, ts api.TokenSource, in api.Broadcast) (string, error)
}

// Deps are the router's collaborators.
type Deps struct {
	Bot      Bot
	Log      *zap.Logger
	Sessions *session.Manager
	Flow     *session.Flow
	Prefs    *preferences.Service
	API      Backend
	HookURL  func(hookID string) string
}

type pending struct {
	kind string
	arg  int // category index for category flows
}

// Router wires Telegram updates to handlers and holds per-chat UI state in memory.
type Router struct {
	bot      Bot
	log      *zap.Logger
	sessions *session.Manager
	flow     *session.Flow
	prefs    *preferences.Service
	api      Backend
	hookURL  func(hookID string) string

	mu      sync.Mutex
	state   map[int64]pending // chatID -> pending free-form input
	screens map[int64]*screen // chatID -> open pages
}

// NewRouter creates a new Telegram router.
func NewRouter(d Deps) *Router {
	return &Router{
		bot:      d.Bot,
		log:      d.Log,
		sessions: d.Sessions,
		flow:     d.Flow,
		prefs:    d.Prefs,
		api:      d.API,
		hookURL:  d.HookURL,
		state:    make(map[int64]pending),
		screens:  make(map[int64]*screen),
	}
}

func (r *Router) setPending(chatID int64, kind string, arg int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = pending{kind: kind, arg: arg}
}

// takePending returns and clears the pending state for a chat.
func (r *Router) takePending(chatID int64) pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.state[chatID]
	delete(r.state, chatID)
	return p
}

func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// forget drops every in-memory page of a chat, e.g. after sign-out.
func (r *Router) forget(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
	delete(r.screens, chatID)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		if !msg.IsCommand() {
			metrics.Updates.WithLabelValues("text").Inc()
			r.handleFreeForm(ctx, chatID, strings.TrimSpace(msg.Text))
			return
		}
		metrics.Updates.WithLabelValues("command").Inc()
		r.clearPending(chatID)
		args := strings.TrimSpace(msg.CommandArguments())

		switch msg.Command() {
		case "start":
			r.handleStart(ctx, chatID, args)
		case "help":
			r.handleHelp(chatID)
		case "login":
			r.handleLogin(ctx, chatID, args)
		case "logout":
			r.handleLogout(ctx, chatID)
		case "me":
			r.handleMe(ctx, chatID)
		case "prefs":
			r.handlePrefs(ctx, chatID, 0)
		case "sites":
			r.handleSites(ctx, chatID)
		case "site":
			r.handleSite(ctx, chatID, 0, args)
		case "notifications":
			r.handleNotifications(ctx, chatID, 0, args, 0)
		case "webhook":
			r.handleWebhook(ctx, chatID)
		case "discord":
			r.handleDiscord(ctx, chatID, args)
		case "admin":
			r.handleAdminDashboard(ctx, chatID)
		case "admin_sites":
			r.handleAdminSites(ctx, chatID)
		case "admin_users":
			r.handleAdminUsers(ctx, chatID, args)
		case "admin_notifications":
			r.handleAdminNotifications(ctx, chatID, args)
		case "approve":
			r.handleSiteAction(ctx, chatID, api.ActionApprove, args)
		case "activate":
			r.handleSiteAction(ctx, chatID, api.ActionActivate, args)
		case "deactivate":
			r.handleSiteAction(ctx, chatID, api.ActionDeactivate, args)
		case "regenkey":
			r.handleRegenerateKey(ctx, chatID, args)
		case "delsite":
			r.handleDeleteSite(ctx, chatID, args)
		case "newsite":
			r.handleNewSite(ctx, chatID, args)
		case "editsite":
			r.handleEditSite(ctx, chatID, args)
		case "newcategory":
			r.handleNewCategory(ctx, chatID, args)
		case "broadcast":
			r.handleBroadcast(ctx, chatID, args)
		case "cancel":
			r.sendText(chatID, "Cancelled.")
		default:
			r.sendText(chatID, unknownCommandText)
		}
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			_ = r.answerCallback(cb.ID, "")
			return
		}
		metrics.Updates.WithLabelValues("callback").Inc()
		r.handleCallback(ctx, cb.Message.Chat.ID, cb.Message.MessageID, cb.ID, cb.Data)
		return
	}

	metrics.Updates.WithLabelValues("other").Inc()
}

// handleCallback dispatches on the first segment of the callback data.
func (r *Router) handleCallback(ctx context.Context, chatID int64, msgID int, cbID, data string) {
	parts := strings.Split(data, ":")
	switch parts[0] {
	case "g":
		r.handleGlobalCallback(ctx, chatID, msgID, cbID, parts[1:])
	case "s":
		r.handleSiteCallback(ctx, chatID, msgID, cbID, parts[1:])
	case "c":
		r.handleCategoryCallback(ctx, chatID, msgID, cbID, parts[1:])
	case "n":
		r.handleNotificationsCallback(ctx, chatID, msgID, cbID, parts[1:])
	case "p":
		_ = r.answerCallback(cbID, "")
		r.handleSite(ctx, chatID, 0, strings.TrimPrefix(data, "p:"))
	default:
		// Unknown callback, ignore silently
		_ = r.answerCallback(cbID, "")
	}
}

// SendHTML sends an HTML-formatted message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := r.bot.Send(msg)
	return err
}

// Forget drops the chat's open pages. Used when its session changes outside
// the update loop.
func (r *Router) Forget(chatID int64) { r.forget(chatID) }
