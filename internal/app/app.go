// Package app assembles the bot from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/ledger-bot/internal/bot"
	"github.com/Proton-105/ledger-bot/internal/conversation"
	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
	"github.com/Proton-105/ledger-bot/internal/health"
	"github.com/Proton-105/ledger-bot/internal/i18n"
	"github.com/Proton-105/ledger-bot/internal/idempotency"
	"github.com/Proton-105/ledger-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/ledger-bot/internal/jobs/handlers"
	"github.com/Proton-105/ledger-bot/internal/ledger"
	"github.com/Proton-105/ledger-bot/internal/lifecycle"
	"github.com/Proton-105/ledger-bot/internal/middleware"
	"github.com/Proton-105/ledger-bot/internal/state"
	"github.com/Proton-105/ledger-bot/pkg/config"
	"github.com/Proton-105/ledger-bot/pkg/graceful"
	"github.com/Proton-105/ledger-bot/pkg/logger"
	"github.com/Proton-105/ledger-bot/pkg/metrics"
)

const (
	idempotencyPrefix = "ledger:idempotency"
	sentryFlushWait   = 2 * time.Second
)

// App is the assembled bot process.
type App struct {
	cfg       *config.Config
	log       *slog.Logger
	resources *Resources
	bot       *bot.Bot
	checker   *health.Checker
	shutdown  *lifecycle.Shutdown
	handler   http.Handler
	cleaner   *state.Cleaner
	collector *metrics.StateCollector
	worker    jobs.Worker
}

// New wires every component selected by cfg. Nothing runs until Run is called.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		checker:  health.NewChecker(log),
		shutdown: lifecycle.NewShutdown(log),
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.AppEnv}); err != nil {
			return nil, fmt.Errorf("init sentry: %w", err)
		}
		a.shutdown.Register("sentry", func(context.Context) error {
			sentry.Flush(sentryFlushWait)
			return nil
		})
	}

	resources, err := OpenResources(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.resources = resources
	a.shutdown.Register("resources", lifecycle.Closer(resources.Close))
	resources.AddChecks(a.checker)

	translator, err := LoadTranslator(cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	backend := NewLedgerBackend(cfg, log)

	engineOpts, err := engineOptions(cfg, log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	if cfg.Outbox.Enabled {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}

		outbox := jobs.NewOutbox(jobs.NewManager(redisOpt, log), cfg.Outbox.MaxRetry, log)
		a.shutdown.Register("outbox", lifecycle.Closer(outbox.Close))
		engineOpts = append(engineOpts, conversation.WithOutbox(outbox))

		a.worker = jobs.NewWorker(redisOpt, cfg.Outbox.Concurrency, log)
		a.worker.RegisterHandler(jobs.TaskTypeLedgerSubmit, jobhandlers.NewLedgerSubmitHandler(backend, log))
	}

	engine := conversation.NewEngine(backend, conversation.NewRenderer(translator), engineOpts...)

	deps := bot.Deps{
		Storage:        resources.Storage,
		Engine:         engine,
		Translator:     translator,
		ErrHandler:     apperrors.NewHandler(log, cfg.Sentry.Enabled),
		IdempotencyTTL: cfg.Idempotency.TTL,
	}
	if cfg.Idempotency.Enabled {
		store := idempotency.NewRedisStore(resources.Redis.Client, idempotencyPrefix, log)
		deps.Idempotency = idempotency.NewManager(store, 0, log)
	}

	b, err := bot.New(cfg.Bot, deps, log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.bot = b
	a.checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))

	// Redis expires keys natively; other backends are swept.
	if cfg.State.Backend != "redis" {
		a.cleaner = state.NewCleaner(resources.Storage, log, cfg.State.TTL, cfg.State.CleanupInterval)
	}
	if lister, ok := resources.Storage.(state.Enumerator); ok && cfg.Metrics.Enabled {
		a.collector = metrics.NewStateCollector(lister, 0, log)
	}

	a.handler = a.routes()

	return a, nil
}

// Handler returns the HTTP surface: webhook, health and metrics.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves until ctx is canceled and then shuts every component down.
func (a *App) Run(ctx context.Context) error {
	if err := a.bot.Setup(); err != nil {
		return err
	}

	if a.worker != nil {
		if err := a.worker.Start(); err != nil {
			return fmt.Errorf("start outbox worker: %w", err)
		}
		a.shutdown.Register("outbox worker", func(context.Context) error {
			a.worker.Shutdown()
			return nil
		})
	}

	if a.cleaner != nil {
		go a.cleaner.Run(ctx)
	}
	if a.collector != nil {
		go a.collector.Run(ctx)
	}

	go a.bot.Run(ctx)
	a.shutdown.Register("telegram bot", func(context.Context) error {
		a.bot.Stop()
		return nil
	})

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.Info("ledger bot started",
		slog.String("mode", a.cfg.Bot.Mode),
		slog.String("state_backend", a.cfg.State.Backend),
		slog.String("addr", srv.Addr),
	)

	serveErr := graceful.NewServer(a.log, srv, a.cfg.Server.ShutdownTimeout).ListenAndServe(ctx)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	return errors.Join(serveErr, a.Close(closeCtx))
}

// Close runs the shutdown hooks registered so far.
func (a *App) Close(ctx context.Context) error {
	return a.shutdown.Execute(ctx)
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Bot.WebhookPath, a.bot.WebhookHandler())
	mux.Handle("/healthz", a.checker.Handler())
	if a.cfg.Metrics.Enabled {
		mux.Handle(a.cfg.Metrics.Path, promhttp.Handler())
	}

	return logger.Middleware(middleware.New(a.log)(mux))
}

// LoadTranslator loads the catalogs (embedded or from i18n.dir) for bot.language.
func LoadTranslator(cfg *config.Config) (i18n.Translator, error) {
	var (
		catalogs *i18n.Manager
		err      error
	)
	if cfg.I18n.Dir != "" {
		catalogs, err = i18n.LoadFromDir(cfg.I18n.Dir, cfg.Bot.Language)
	} else {
		catalogs, err = i18n.Load(cfg.Bot.Language)
	}
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	return catalogs.Translator(cfg.Bot.Language), nil
}

// NewLedgerBackend builds the ledger client with the optional circuit breaker and metrics.
func NewLedgerBackend(cfg *config.Config, log *slog.Logger) ledger.Backend {
	opts := []ledger.Option{ledger.WithLogger(log)}

	if cfg.Ledger.CircuitBreaker {
		breaker := apperrors.NewCircuitBreaker(apperrors.CircuitBreakerSettings{})
		breaker.OnStateChange(func(from, to apperrors.State) {
			log.Warn("ledger circuit breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		})
		opts = append(opts, ledger.WithBreaker(breaker))
	}

	var backend ledger.Backend = ledger.NewClient(cfg.Ledger.URL, cfg.Ledger.Timeout, opts...)
	if cfg.Metrics.Enabled {
		backend = ledger.NewMetricsBackend(backend)
	}

	return backend
}

func engineOptions(cfg *config.Config, log *slog.Logger) ([]conversation.Option, error) {
	mode, err := state.ParseMode(cfg.Conversation.Transitions)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Conversation.Location()
	if err != nil {
		return nil, err
	}

	return []conversation.Option{
		conversation.WithMode(mode),
		conversation.WithLocation(loc),
		conversation.WithLogger(log),
	}, nil
}
