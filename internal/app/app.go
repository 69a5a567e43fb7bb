package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/byNolo/nolofication/internal/api"
	"github.com/byNolo/nolofication/internal/config"
	"github.com/byNolo/nolofication/internal/preferences"
	"github.com/byNolo/nolofication/internal/scheduler"
	"github.com/byNolo/nolofication/internal/session"
	"github.com/byNolo/nolofication/internal/store"
	"github.com/byNolo/nolofication/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	client  *api.Client
	httpSrv *http.Server
	repo    store.Repo
	router  *telegram.Router
	poller  *scheduler.Scheduler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	return &App{
		cfg:     cfg,
		log:     log,
		bot:     bot,
		client:  api.New(cfg.APIBaseURL, cfg.APITimeout, log),
		httpSrv: srv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting nolofication bot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("api", a.client.BaseURL()),
		zap.String("http", a.cfg.HTTPAddr),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	sessions := session.NewManager(repo, a.client, a.log)
	flow := session.NewFlow(session.FlowConfig{
		ProviderURL: a.cfg.KeynBaseURL,
		ClientID:    a.cfg.KeynClientID,
		Scopes:      a.cfg.KeynScopes,
		RedirectURL: a.cfg.RedirectURL(),
		StateTTL:    a.cfg.AuthStateTTL,
	}, repo, a.client, sessions, a.log)

	a.router = telegram.NewRouter(telegram.Deps{
		Bot:      a.bot,
		Log:      a.log,
		Sessions: sessions,
		Flow:     flow,
		Prefs:    preferences.NewService(a.client, a.log, a.cfg.DefaultTZ),
		API:      a.client,
		HookURL:  a.cfg.HookURL,
	})
	a.poller = scheduler.New(repo, a.client, sessions, flow, a.router, a.log, scheduler.Options{
		Interval: a.cfg.PollInterval,
		Batch:    a.cfg.PollBatch,
		SendRate: a.cfg.SendRate,
	})
	a.httpSrv.Handler = newMux(flow, repo, a.router, a.log)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		a.poller.Run(ctx)
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()

			// Create a short-lived shutdown context and cancel it immediately after use.
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			<-pollerDone
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
