// Package session owns the lifecycle of a chat's sign-in: loading, creating,
// validating and clearing the stored access token.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/store"
)

var (
	ErrNoSession    = errors.New("not signed in")
	ErrStateExpired = errors.New("sign-in link expired or already used")
)

// Backend is the part of the API client sessions depend on.
type Backend interface {
	Me(ctx context.Context, ts api.TokenSource) (domain.User, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (api.LoginResult, error)
	Notifications(ctx context.Context, ts api.TokenSource, opts api.ListOptions) (domain.NotificationPage, error)
}

// Manager loads and persists chat sessions.
type Manager struct {
	repo    store.Repo
	backend Backend
	log     *zap.Logger
	now     func() time.Time
}

func NewManager(repo store.Repo, backend Backend, log *zap.Logger) *Manager {
	return &Manager{repo: repo, backend: backend, log: log, now: time.Now}
}

// Load returns the chat's session. Missing or expired sessions yield
// ErrNoSession; an expired one is removed.
func (m *Manager) Load(ctx context.Context, chatID int64) (*domain.Session, error) {
	s, err := m.repo.GetSession(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.Expired(m.now()) {
		m.log.Info("session expired", zap.Int64("chatID", chatID))
		if err := m.repo.DeleteSession(ctx, chatID); err != nil {
			m.log.Warn("delete expired session failed", zap.Error(err), zap.Int64("chatID", chatID))
		}
		return nil, ErrNoSession
	}
	return s, nil
}

// Login validates token against the backend and stores it for the chat.
func (m *Manager) Login(ctx context.Context, chatID int64, token string) (*domain.Session, error) {
	user, err := m.backend.Me(ctx, api.StaticToken(token))
	if err != nil {
		return nil, err
	}
	return m.store(ctx, chatID, token, user)
}

func (m *Manager) store(ctx context.Context, chatID int64, token string, user domain.User) (*domain.Session, error) {
	now := m.now().UTC()
	claims := inspectToken(token)

	s := &domain.Session{
		ChatID:      chatID,
		AccessToken: token,
		User:        user,
		ExpiresAt:   claims.expiresAt,
		CreatedAt:   now,
		NextPollAt:  &now,
	}
	prev, err := m.repo.GetSession(ctx, chatID)
	switch {
	case err == nil:
		s.HookID = prev.HookID
		s.CreatedAt = prev.CreatedAt
		s.LastSeenID = prev.LastSeenID
	case errors.Is(err, store.ErrNotFound):
		s.HookID = uuid.NewString()
		s.LastSeenID = m.newestNotificationID(ctx, s)
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}

	if err := m.repo.UpsertSession(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.log.Info("chat signed in",
		zap.Int64("chatID", chatID),
		zap.Int64("userID", user.ID),
		zap.Bool("admin", user.IsAdmin()),
	)
	return s, nil
}

// newestNotificationID marks existing history as seen so the inbox poller
// only relays notifications that arrive after sign-in. When the backend
// cannot answer, the poller measures it later instead.
func (m *Manager) newestNotificationID(ctx context.Context, s *domain.Session) int64 {
	page, err := m.backend.Notifications(ctx, s, api.ListOptions{Limit: 1})
	if err != nil {
		m.log.Warn("history baseline unavailable", zap.Error(err), zap.Int64("chatID", s.ChatID))
		return domain.CursorUnknown
	}
	var newest int64
	for _, n := range page.Notifications {
		if n.ID > newest {
			newest = n.ID
		}
	}
	return newest
}

// Refresh re-reads the user from the backend. A rejected token clears the session.
func (m *Manager) Refresh(ctx context.Context, chatID int64) (*domain.Session, error) {
	s, err := m.Load(ctx, chatID)
	if err != nil {
		return nil, err
	}
	user, err := m.backend.Me(ctx, s)
	if err != nil {
		if m.DropIfUnauthorized(ctx, chatID, err) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	s.User = user
	if err := m.repo.UpsertSession(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Clear signs the chat out.
func (m *Manager) Clear(ctx context.Context, chatID int64) error {
	if err := m.repo.DeleteSession(ctx, chatID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.log.Info("chat signed out", zap.Int64("chatID", chatID))
	return nil
}

// DropIfUnauthorized clears the session when err is a 401 from the backend
// and reports whether it did.
func (m *Manager) DropIfUnauthorized(ctx context.Context, chatID int64, err error) bool {
	if !api.IsUnauthorized(err) {
		return false
	}
	if cerr := m.Clear(ctx, chatID); cerr != nil {
		m.log.Warn("clear rejected session failed", zap.Error(cerr), zap.Int64("chatID", chatID))
	}
	return true
}

type tokenClaims struct {
	expiresAt *time.Time
}

// inspectToken reads exp from a JWT access token without verifying it, only
// to end chat sessions on time. Roles come from /auth/me. Opaque tokens
// yield empty claims.
func inspectToken(token string) tokenClaims {
	var out tokenClaims
	if strings.Count(token, ".") != 2 {
		return out
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return out
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.UTC()
		out.expiresAt = &t
	}
	return out
}
