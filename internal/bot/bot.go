package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/bot/keyboard"
	"github.com/Proton-105/ledger-bot/internal/conversation"
	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
	"github.com/Proton-105/ledger-bot/internal/i18n"
	"github.com/Proton-105/ledger-bot/internal/idempotency"
	"github.com/Proton-105/ledger-bot/internal/middleware"
	"github.com/Proton-105/ledger-bot/internal/state"
	"github.com/Proton-105/ledger-bot/pkg/config"
)

const (
	ModeWebhook  = "webhook"
	ModeLongPoll = "longpoll"
)

// Deps are the collaborators the bot routes updates through.
type Deps struct {
	Storage    state.Storage
	Engine     Engine
	Translator i18n.Translator
	ErrHandler *apperrors.Handler
	// Idempotency is optional; nil disables duplicate-update suppression.
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
}

// Bot wraps telebot.Bot with the conversation pipeline.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.BotConfig
	router     *Router
	dispatcher *Dispatcher
	translator i18n.Translator
	stopOnce   sync.Once
}

// New builds a telegram bot configured according to the application settings.
// In webhook mode no request is made to Telegram until a reply is sent.
func New(cfg config.BotConfig, deps Deps, log *slog.Logger) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token:       cfg.Token,
		URL:         cfg.APIURL,
		Synchronous: true,
		Offline:     cfg.Mode != ModeLongPoll,
		OnError: func(err error, c telebot.Context) {
			log.Error("telebot error", slog.Any("error", err))
		},
	}

	if cfg.Mode == ModeLongPoll {
		settings.Poller = &telebot.LongPoller{
			Timeout:        cfg.PollTimeout,
			AllowedUpdates: []string{"message", "callback_query"},
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	notifier := NewTelebotNotifier(tb, keyboard.NewBuilder(log), log)
	dispatcher := NewDispatcher(deps.Storage, deps.Engine, notifier, log)
	router := NewRouter(dispatcher, log)

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		router:     router,
		dispatcher: dispatcher,
		translator: deps.Translator,
	}

	router.Use(RecoveryMiddleware(log, deps.ErrHandler, deps.Translator))
	router.Use(middleware.Idempotency(deps.Idempotency, deps.IdempotencyTTL, log))
	router.Use(ErrorHandlingMiddleware(deps.ErrHandler, deps.Translator, log))
	router.Use(LoggingMiddleware(log))
	router.Use(middleware.Metrics)

	tb.Handle(telebot.OnText, router.Route)
	tb.Handle(telebot.OnCallback, router.Route)

	return b, nil
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Router exposes the update router.
func (b *Bot) Router() *Router {
	return b.router
}

// WebhookHandler returns the HTTP handler for Telegram webhook deliveries.
func (b *Bot) WebhookHandler() http.Handler {
	return NewWebhookHandler(b.telebot, b.router.Route, b.cfg.WebhookSecret, b.log)
}

// Setup registers the command menu and, depending on the mode, the webhook.
// A long-polling bot removes any webhook left behind, since Telegram refuses
// getUpdates while one is set.
func (b *Bot) Setup() error {
	if err := b.telebot.SetCommands(b.commandMenu()); err != nil {
		b.log.Warn("failed to register command menu", slog.Any("error", err))
	}

	switch b.cfg.Mode {
	case ModeLongPoll:
		if err := b.telebot.RemoveWebhook(); err != nil {
			return fmt.Errorf("remove webhook: %w", err)
		}
	default:
		if b.cfg.WebhookURL == "" {
			return nil
		}

		webhook := &telebot.Webhook{
			Endpoint:       &telebot.WebhookEndpoint{PublicURL: b.cfg.WebhookURL},
			SecretToken:    b.cfg.WebhookSecret,
			AllowedUpdates: []string{"message", "callback_query"},
		}
		if err := b.telebot.SetWebhook(webhook); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		b.log.Info("webhook registered", slog.String("url", b.cfg.WebhookURL))
	}

	return nil
}

// Run polls Telegram for updates until ctx is cancelled. It is a no-op in webhook mode.
func (b *Bot) Run(ctx context.Context) {
	if b.cfg.Mode != ModeLongPoll {
		return
	}

	go func() {
		<-ctx.Done()
		b.Stop()
	}()

	b.log.Info("long polling started")
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil || b.cfg.Mode != ModeLongPoll {
		return
	}

	b.stopOnce.Do(func() {
		b.log.Info("stopping telegram bot...")
		b.telebot.Stop()
	})
}

func (b *Bot) commandMenu() []telebot.Command {
	commands := make([]telebot.Command, 0, len(conversation.Commands))
	for _, cmd := range conversation.Commands {
		commands = append(commands, telebot.Command{
			Text:        string(cmd),
			Description: translate(b.translator, "command."+string(cmd)),
		})
	}
	return commands
}
