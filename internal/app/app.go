package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Bottswana/BullyBot/internal/config"
	"github.com/Bottswana/BullyBot/internal/datasource"
	"github.com/Bottswana/BullyBot/internal/domain"
	"github.com/Bottswana/BullyBot/internal/scheduler"
	"github.com/Bottswana/BullyBot/internal/store"
	"github.com/Bottswana/BullyBot/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	loc     *time.Location
	dir     *config.Directory
	reg     *store.Registry
	router  *telegram.Router
	sched   *scheduler.Scheduler
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := domain.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.TZ, err)
	}

	dir, err := config.LoadDirectory(cfg.UsersFile, log)
	if err != nil {
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv, loc: loc, dir: dir}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting bullybot",
		zap.String("module", a.cfg.Module),
		zap.String("tz", a.loc.String()),
		zap.String("http", a.cfg.HTTPAddr),
	)

	// Load subscriptions; a broken notifications file must stop startup.
	a.reg = store.NewRegistry(a.cfg.Module, store.NewFileStore(a.cfg.NotificationsPath), a.log)
	if err := a.reg.Load(ctx); err != nil {
		a.log.Error("load notifications failed", zap.Error(err))
		return err
	}
	tokens, err := store.OpenTokenFile(a.cfg.TokensPath)
	if err != nil {
		a.log.Error("open token file failed", zap.Error(err))
		return err
	}

	resolver := datasource.NewResolver(datasource.Deps{
		HTTP:   &http.Client{Timeout: a.cfg.FetchTimeout},
		Tokens: tokens,
		Log:    a.log,
	})
	a.router = telegram.NewRouter(a.bot, a.log, a.reg, a.dir, resolver, telegram.Options{
		Module:       a.cfg.Module,
		Location:     a.loc,
		FetchTimeout: a.cfg.FetchTimeout,
		DispatchRPS:  a.cfg.DispatchRPS,
	})
	orch := scheduler.NewOrchestrator(scheduler.Options{
		Module:       a.cfg.Module,
		ChatID:       a.cfg.NotifyChatID,
		Directory:    a.dir,
		Resolver:     resolver,
		Subs:         a.reg,
		Sender:       a.router,
		Log:          a.log,
		Location:     a.loc,
		FetchTimeout: a.cfg.FetchTimeout,
		Workers:      a.cfg.Workers,
	})
	if a.sched, err = scheduler.New(orch, a.log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.reg.Start(ctx)
	if err := a.dir.Watch(ctx); err != nil {
		a.log.Warn("users file watch disabled", zap.Error(err))
	}
	a.sched.Start()

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
			return a.shutdown()

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

// shutdown lets a running tick finish, then drains pending notification writes.
func (a *App) shutdown() error {
	a.bot.StopReceivingUpdates()

	shCtx, cancel := context.WithTimeout(context.Background(), a.cfg.FetchTimeout+30*time.Second)
	defer cancel()

	if err := a.sched.Stop(shCtx); err != nil {
		a.log.Warn("scheduler stop timed out", zap.Error(err))
	}
	if err := a.httpSrv.Shutdown(shCtx); err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	if err := a.reg.Close(shCtx); err != nil {
		a.log.Error("final notifications flush failed", zap.Error(err))
		return err
	}
	return nil
}
