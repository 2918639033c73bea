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

	"github.com/mandoo180/telegram-note-bot/internal/clock"
	"github.com/mandoo180/telegram-note-bot/internal/config"
	"github.com/mandoo180/telegram-note-bot/internal/httpapi"
	"github.com/mandoo180/telegram-note-bot/internal/reminder"
	"github.com/mandoo180/telegram-note-bot/internal/scheduler"
	"github.com/mandoo180/telegram-note-bot/internal/store"
	"github.com/mandoo180/telegram-note-bot/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	loc     *time.Location
	httpSrv *http.Server
	repo    store.Repo
	jobs    *scheduler.Scheduler
	svc     *reminder.Service
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.RequireBotToken(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	return &App{cfg: cfg, log: log, bot: bot, loc: loc}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting telegram-note-bot",
		zap.String("bot", a.bot.Self.UserName),
		zap.String("db_driver", a.cfg.DBDriver),
		zap.String("tz", a.loc.String()),
		zap.String("http", a.cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := OpenStore(ctx, a.cfg)
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	a.repo = repo
	defer func() { _ = a.repo.Close() }()
	a.log.Info("store ready")

	clk := clock.System{}
	sender := telegram.NewSender(a.bot, a.cfg.SendRate, a.cfg.SendBurst)
	a.jobs = scheduler.New(clk, a.log, a.cfg.ReminderWorkers)
	a.svc = reminder.NewService(repo, a.jobs, sender, clk, a.loc, a.log)
	a.router = telegram.NewRouter(sender, a.log, repo, a.svc, a.loc, clk)

	// Reminders are re-armed before any update can create new ones.
	if err := a.svc.Start(ctx); err != nil {
		a.log.Error("reminder service start failed", zap.Error(err))
		return err
	}

	a.httpSrv = &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(repo, a.svc, a.jobs, a.log),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			a.bot.StopReceivingUpdates()
			a.svc.Stop()

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
