package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/byNolo/nolofication/internal/domain"
	"github.com/byNolo/nolofication/internal/store"
)

// FlowConfig describes the identity provider.
type FlowConfig struct {
	ProviderURL string // e.g. https://auth-keyn.bynolo.ca
	ClientID    string
	Scopes      []string
	RedirectURL string
	StateTTL    time.Duration
}

// Flow runs the OAuth redirect dance for chats: Begin hands out a sign-in
// link bound to the chat, Complete finishes it from the redirect.
type Flow struct {
	oauth   *oauth2.Config
	repo    store.Repo
	backend Backend
	mgr     *Manager
	ttl     time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func NewFlow(cfg FlowConfig, repo store.Repo, backend Backend, mgr *Manager, log *zap.Logger) *Flow {
	base := strings.TrimRight(cfg.ProviderURL, "/")
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	var scopes []string
	if len(cfg.Scopes) > 0 {
		// The provider expects one comma-separated scope parameter.
		scopes = []string{strings.Join(cfg.Scopes, ",")}
	}
	return &Flow{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/oauth/authorize",
				TokenURL: base + "/oauth/token",
			},
		},
		repo:    repo,
		backend: backend,
		mgr:     mgr,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
	}
}

// Begin returns the provider URL the user should open to sign in.
func (f *Flow) Begin(ctx context.Context, chatID int64) (string, error) {
	state := uuid.NewString()
	if err := f.repo.SaveAuthState(ctx, state, chatID, f.now().Add(f.ttl)); err != nil {
		return "", fmt.Errorf("save auth state: %w", err)
	}
	return f.oauth.AuthCodeURL(state), nil
}

// Complete consumes state, exchanges code through the backend and stores the
// resulting session for the chat that started the flow. chatID is 0 when the
// state was unknown.
func (f *Flow) Complete(ctx context.Context, state, code string) (chatID int64, s *domain.Session, err error) {
	if state == "" {
		return 0, nil, ErrStateExpired
	}
	chatID, err = f.repo.ConsumeAuthState(ctx, state, f.now())
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil, ErrStateExpired
	}
	if err != nil {
		return 0, nil, fmt.Errorf("consume auth state: %w", err)
	}

	res, err := f.backend.ExchangeCode(ctx, code, f.oauth.RedirectURL)
	if err != nil {
		f.log.Warn("code exchange failed", zap.Error(err), zap.Int64("chatID", chatID))
		return chatID, nil, err
	}
	s, err = f.mgr.store(ctx, chatID, res.Token, res.User)
	return chatID, s, err
}

// Purge drops expired sign-in links.
func (f *Flow) Purge(ctx context.Context) {
	n, err := f.repo.PurgeAuthStates(ctx, f.now())
	if err != nil {
		f.log.Warn("purge auth states failed", zap.Error(err))
		return
	}
	if n > 0 {
		f.log.Debug("purged auth states", zap.Int64("count", n))
	}
}
