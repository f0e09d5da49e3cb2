package middleware

import (
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/bot/handlers"
	"github.com/Proton-105/ledger-bot/pkg/metrics"
)

// Metrics measures execution time and status for each update, labelled by the
// conversation branch that handled it.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(handlers.Label(c), status, time.Since(start))

		return err
	}
}
