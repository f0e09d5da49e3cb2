package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/ledger-bot/internal/jobs"
	"github.com/Proton-105/ledger-bot/internal/ledger"
)

// LedgerSubmitHandler delivers queued ledger rows to the backend.
type LedgerSubmitHandler struct {
	backend ledger.Backend
	log     *slog.Logger
}

func NewLedgerSubmitHandler(backend ledger.Backend, log *slog.Logger) *LedgerSubmitHandler {
	if log == nil {
		log = slog.Default()
	}

	return &LedgerSubmitHandler{backend: backend, log: log}
}

// ProcessTask submits the record. A malformed payload is not retried.
func (h *LedgerSubmitHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.DecodeLedgerSubmit(t)
	if err != nil {
		h.log.ErrorContext(ctx, "ledger submit: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := h.backend.Submit(ctx, payload.Record); err != nil {
		return fmt.Errorf("submit queued record: %w", err)
	}

	h.log.InfoContext(ctx, "ledger submit: queued record delivered",
		slog.String("activity", payload.Record.Activity),
		slog.String("date", payload.Record.Date),
	)

	return nil
}
