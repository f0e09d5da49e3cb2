package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/bot/handlers"
	"github.com/Proton-105/ledger-bot/internal/conversation"
	"github.com/Proton-105/ledger-bot/internal/idempotency"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Idempotency ensures each Telegram update is handled at most once.
// A nil manager disables the check.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			ev, ok := handlers.EventFrom(c)
			if !ok {
				return next(c)
			}

			key := UpdateKey(ev)
			if key == "" {
				return next(c)
			}

			result, err := manager.Execute(handlers.RequestContext(c), key, ttl, func(ctx context.Context) error {
				return next(c)
			})
			if err != nil {
				if errors.Is(err, idempotency.ErrRequestInProgress) {
					log.Info("update already in progress", slog.Int("update_id", ev.UpdateID))
					handlers.SetLabel(c, "duplicate")
					return nil
				}
				return err
			}

			if result != nil && result.Duplicate {
				log.Info("duplicate update skipped", slog.Int("update_id", ev.UpdateID))
				handlers.SetLabel(c, "duplicate")
			}

			return nil
		}
	}
}

// UpdateKey derives the idempotency key for an event, preferring the update id.
func UpdateKey(ev conversation.Event) string {
	switch {
	case ev.UpdateID != 0:
		return idempotency.GenerateKey("update", ev.UpdateID)
	case ev.CallbackID != "":
		return idempotency.GenerateKey("cb", ev.CallbackID)
	case ev.MessageID != 0:
		return idempotency.GenerateKey("msg", ev.ChatID, ev.MessageID)
	default:
		return ""
	}
}
