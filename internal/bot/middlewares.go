package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
	"github.com/Proton-105/ledger-bot/internal/i18n"
	"github.com/Proton-105/ledger-bot/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler, tr i18n.Translator) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					key := apperrors.MessageKeyGeneric
					if errHandler != nil {
						appErr := &apperrors.AppError{
							Code:       "E900",
							Message:    fmt.Sprintf("panic recovered: %v", r),
							MessageKey: apperrors.MessageKeyGeneric,
							Severity:   apperrors.SeverityCritical,
						}
						key, _ = errHandler.Handle(handlers.RequestContext(c), appErr)
					}
					metrics.RecordError("panic", string(apperrors.SeverityCritical))

					notifyFailure(c, log, translate(tr, key))
					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler, tr i18n.Translator, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			key := apperrors.MessageKeyGeneric
			if errHandler != nil {
				key, _ = errHandler.Handle(handlers.RequestContext(c), err)
			}

			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				metrics.RecordError(appErr.Code, string(appErr.Severity))
			} else {
				metrics.RecordError("unknown", string(apperrors.SeverityHigh))
			}

			notifyFailure(c, log, translate(tr, key))
			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates. Message text is never logged.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ev, _ := handlers.EventFrom(c)

			err := next(c)

			attrs := []any{
				slog.String("conversation", ev.ConversationKey),
				slog.String("kind", ev.Kind.String()),
				slog.Int("update_id", ev.UpdateID),
				slog.String("branch", handlers.Label(c)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				log.Warn("update failed", append(attrs, slog.Any("error", err))...)
				return err
			}

			log.Info("handled update", attrs...)
			return nil
		}
	}
}

func translate(tr i18n.Translator, key string) string {
	if tr == nil {
		return key
	}
	return tr.T(key)
}

func notifyFailure(c telebot.Context, log *slog.Logger, text string) {
	if c == nil {
		return
	}

	if c.Callback() != nil {
		if err := c.Respond(); err != nil {
			log.Error("failed to answer callback after error", slog.Any("error", err))
		}
	}

	if c.Chat() == nil && c.Sender() == nil {
		return
	}

	if err := c.Send(text); err != nil {
		log.Error("failed to notify user about error", slog.Any("error", err))
	}
}
