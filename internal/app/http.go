package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/metrics"
	"github.com/byNolo/nolofication/internal/pushdisplay"
	"github.com/byNolo/nolofication/internal/session"
	"github.com/byNolo/nolofication/internal/store"
)

const maxHookBody = 64 << 10

// Completer finishes a sign-in started from a chat.
type Completer interface {
	Complete(ctx context.Context, state, code string) (int64, *domain.Session, error)
}

// HookLookup resolves a relay URL to its chat.
type HookLookup interface {
	GetSessionByHook(ctx context.Context, hookID string) (*domain.Session, error)
}

// Chat is what the HTTP side needs from the chat UI.
type Chat interface {
	SendHTML(chatID int64, text string) error
	Forget(chatID int64)
}

type handlers struct {
	flow  Completer
	hooks HookLookup
	chat  Chat
	log   *zap.Logger
}

// newMux builds the HTTP surface: health, metrics, the OAuth redirect target
// and the per-chat webhook relay.
func newMux(flow Completer, hooks HookLookup, chat Chat, log *zap.Logger) *http.ServeMux {
	h := &handlers{flow: flow, hooks: hooks, chat: chat, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("GET /auth/callback", h.authCallback)
	mux.HandleFunc("POST /hooks/{hookID}", h.hook)
	return mux
}

func (h *handlers) authCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.log.Info("sign-in declined at provider", zap.String("error", e))
		writePage(w, http.StatusBadRequest, "Sign-in was cancelled. You can close this page.")
		return
	}

	chatID, s, err := h.flow.Complete(r.Context(), q.Get("state"), q.Get("code"))
	switch {
	case errors.Is(err, session.ErrStateExpired):
		writePage(w, http.StatusBadRequest, "This sign-in link has expired or was already used. Send /login in Telegram again.")
		return
	case err != nil:
		h.log.Warn("sign-in failed", zap.Error(err), zap.Int64("chatID", chatID))
		if chatID != 0 {
			_ = h.chat.SendHTML(chatID, "⚠️ Sign-in failed: "+html.EscapeString(api.Message(err))+". Use /login to try again.")
		}
		writePage(w, http.StatusBadGateway, "Sign-in failed. Please try again from Telegram.")
		return
	}

	h.chat.Forget(chatID)
	name := s.User.Username
	if name == "" {
		name = s.User.Email
	}
	if err := h.chat.SendHTML(chatID, fmt.Sprintf("✅ Signed in as <b>%s</b>. Try /prefs or /sites.", html.EscapeString(name))); err != nil {
		h.log.Warn("sign-in notice failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
	writePage(w, http.StatusOK, "Signed in. You can close this page and return to Telegram.")
}

// hook relays a webhook-channel delivery into the owning chat.
func (h *handlers) hook(w http.ResponseWriter, r *http.Request) {
	s, err := h.hooks.GetSessionByHook(r.Context(), r.PathValue("hookID"))
	if errors.Is(err, store.ErrNotFound) {
		metrics.HookPayloads.WithLabelValues("unknown_hook").Inc()
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.log.Error("hook lookup failed", zap.Error(err))
		metrics.HookPayloads.WithLabelValues("failed").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxHookBody+1))
	if err != nil {
		metrics.HookPayloads.WithLabelValues("failed").Inc()
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	if len(body) > maxHookBody {
		metrics.HookPayloads.WithLabelValues("too_large").Inc()
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	d := pushdisplay.Parse(body)
	if err := h.chat.SendHTML(s.ChatID, d.HTML()); err != nil {
		h.log.Warn("hook relay failed", zap.Error(err), zap.Int64("chatID", s.ChatID))
		metrics.HookPayloads.WithLabelValues("failed").Inc()
		http.Error(w, "relay failed", http.StatusBadGateway)
		return
	}
	metrics.HookPayloads.WithLabelValues("relayed").Inc()
	w.WriteHeader(http.StatusAccepted)
}

func writePage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "<!doctype html><title>NoloFication</title><p>%s</p>", html.EscapeString(msg))
}
